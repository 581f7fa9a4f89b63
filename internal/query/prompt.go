package query

import (
	"strings"
	"text/template"

	"github.com/frahmantamala/iam-copilot/internal/conversation"
	"github.com/frahmantamala/iam-copilot/internal/risk"
)

type topicLine struct {
	Name        string
	Description string
}

type promptData struct {
	Topics     []topicLine
	Schema     string
	History    []conversation.Message
	Question   string
	PriorError string
}

var promptTemplate = template.Must(template.New("generate").Parse(`You write SQLite queries for an identity risk database.
Reply with exactly one SELECT statement in a ` + "```sql" + ` code block. Never write statements that modify data.

Every user carries at most one risk in Users.risk_topic. UserRiskView lists only users with a risk.
Stored risk_topic values:
{{- range .Topics}}
- {{.Name}}: {{.Description}}
{{- end}}

Database schema:
{{.Schema}}
{{- if .History}}

Conversation so far:
{{- range .History}}
{{.Role}}: {{.Content}}
{{- end}}
{{- end}}
{{- if .PriorError}}

The previous attempt failed with: {{.PriorError}}
Write a corrected query.
{{- end}}

Question: {{.Question}}
`))

// BuildPrompt renders the generation prompt for st. The previous error is included
// only on retries.
func BuildPrompt(st *State) (string, error) {
	data := promptData{
		Schema:   st.SchemaMetadata,
		History:  st.History,
		Question: st.Question,
	}
	for _, t := range risk.Priority() {
		data.Topics = append(data.Topics, topicLine{Name: t.String(), Description: t.Description()})
	}
	if st.RetryCount > 0 && st.Err != nil {
		data.PriorError = st.Err.Error()
	}

	var b strings.Builder
	if err := promptTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
