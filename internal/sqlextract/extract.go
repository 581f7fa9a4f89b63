// Package sqlextract pulls a single read-only SELECT statement out of free-form model output.
package sqlextract

import (
	"errors"
	"regexp"

	"github.com/xwb1989/sqlparser"

	"github.com/frahmantamala/iam-copilot/internal"
)

var (
	fencedBlock   = regexp.MustCompile("(?is)```sql\\s+(.*?)\\s*```")
	selectKeyword = regexp.MustCompile(`(?i)\bSELECT\b`)
	fromKeyword   = regexp.MustCompile(`(?i)\bFROM\b`)

	errNoCandidate = errors.New("no candidate")
)

// Extract returns the statement the text most plausibly asks to run. Candidates are
// tried in order and the first one that yields a SELECT wins:
//
//  1. fenced sql blocks, in document order
//  2. the whole text, when it already is one SELECT statement
//  3. text from each SELECT keyword to the end, last keyword first
//  4. the first candidate of steps 1 to 3 that starts with SELECT but did not parse
//  5. the text itself, normalized
//  6. fallback, normalized
//
// Step 2 keeps a compound statement such as a UNION from being cut at its last SELECT.
// Step 4 covers SQLite syntax that the MySQL grammar of the parser rejects.
// The result has comments removed, whitespace collapsed and no trailing semicolon.
// Anything that does not start with SELECT is never returned.
func Extract(text, fallback string) (string, error) {
	var e extraction
	candidates := []func() (string, error){
		func() (string, error) { return e.fromFencedBlocks(text) },
		func() (string, error) { return e.wholeStatement(text) },
		func() (string, error) { return e.fromSelectKeywords(text) },
		func() (string, error) { return e.unparsedCandidate() },
		func() (string, error) { return verbatim(text) },
		func() (string, error) { return verbatim(fallback) },
	}
	for _, next := range candidates {
		if sql, err := next(); err == nil {
			return sql, nil
		}
	}
	return "", internal.ErrNoQueryFound
}

// SingleSelect normalizes sql and checks that it holds exactly one statement starting
// with SELECT. It does not require the statement to parse.
func SingleSelect(sql string) (string, error) {
	stmts := splitStatements(normalize(sql))
	if len(stmts) != 1 || !hasSelectPrefix(stmts[0]) {
		return "", internal.ErrNotReadOnly
	}
	return stmts[0], nil
}

type extraction struct {
	unparsed string
}

// consider parses stmt and otherwise remembers the first one that still looks like a
// query. A keyword candidate must have a FROM clause and must not close a parenthesis
// it never opened, which rules out prose mentioning SELECT and cut out subqueries.
func (e *extraction) consider(stmt string, fromKeywordScan bool) (string, bool) {
	sql, err := parsedSelect(stmt)
	if err == nil {
		return sql, true
	}
	if e.unparsed != "" || !hasSelectPrefix(stmt) {
		return "", false
	}
	if fromKeywordScan && (!fromKeyword.MatchString(stmt) || !closesOnlyOpened(stmt)) {
		return "", false
	}
	e.unparsed = stmt
	return "", false
}

func (e *extraction) unparsedCandidate() (string, error) {
	if e.unparsed == "" {
		return "", errNoCandidate
	}
	return e.unparsed, nil
}

func (e *extraction) fromFencedBlocks(text string) (string, error) {
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		stmts := splitStatements(normalize(m[1]))
		if len(stmts) != 1 {
			continue
		}
		if sql, ok := e.consider(stmts[0], false); ok {
			return sql, nil
		}
	}
	return "", errNoCandidate
}

func (e *extraction) wholeStatement(text string) (string, error) {
	stmts := splitStatements(normalize(text))
	if len(stmts) != 1 {
		return "", errNoCandidate
	}
	if sql, ok := e.consider(stmts[0], false); ok {
		return sql, nil
	}
	return "", errNoCandidate
}

func (e *extraction) fromSelectKeywords(text string) (string, error) {
	offsets := selectKeyword.FindAllStringIndex(text, -1)
	for i := len(offsets) - 1; i >= 0; i-- {
		stmts := splitStatements(normalize(text[offsets[i][0]:]))
		if len(stmts) == 0 {
			continue
		}
		if sql, ok := e.consider(stmts[0], true); ok {
			return sql, nil
		}
	}
	return "", errNoCandidate
}

func verbatim(text string) (string, error) {
	if !selectKeyword.MatchString(text) {
		return "", errNoCandidate
	}
	stmts := splitStatements(normalize(text))
	if len(stmts) == 0 || !hasSelectPrefix(stmts[0]) {
		return "", errNoCandidate
	}
	return stmts[0], nil
}

// parsedSelect accepts stmt only if it parses as a SELECT or a UNION of SELECTs.
// The caller's text is returned, not the parser's rendering, to keep SQLite syntax intact.
func parsedSelect(stmt string) (string, error) {
	if !hasSelectPrefix(stmt) {
		return "", errNoCandidate
	}
	parsed, err := sqlparser.Parse(backtickIdentifiers(stmt))
	if err != nil {
		return "", err
	}
	switch parsed.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return stmt, nil
	default:
		return "", errNoCandidate
	}
}
