package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/core/datamodel/identity"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/sqlextract"
)

const defaultMaxRows = 500

// Executor runs read-only statements against a built risk database.
type Executor struct {
	db         *sqlx.DB
	path       string
	sampleRows int
	maxRows    int
	logger     *slog.Logger
}

type ExecutorOption func(*Executor)

func WithSampleRows(n int) ExecutorOption {
	return func(e *Executor) {
		if n >= 0 {
			e.sampleRows = n
		}
	}
}

func WithMaxRows(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxRows = n
		}
	}
}

// OpenExecutor opens path in read-only mode. It fails with ErrStoreMissing when the
// database has not been built yet.
func OpenExecutor(ctx context.Context, path string, logger *slog.Logger, opts ...ExecutorOption) (*Executor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, internal.ErrStoreMissing.WithCause(err)
	}

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, internal.NewExecutionError("cannot open risk database", internal.ErrCodeQueryFailed, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, internal.NewExecutionError("cannot open risk database", internal.ErrCodeQueryFailed, err)
	}

	e := &Executor{db: db, path: path, sampleRows: 3, maxRows: defaultMaxRows, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Executor) Close() error {
	return e.db.Close()
}

func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Execute runs one SELECT and renders the rows as pipe separated text with a header line.
// A query that returns no rows fails with ErrEmptyResult.
func (e *Executor) Execute(ctx context.Context, query string) (string, error) {
	stmt, err := sqlextract.SingleSelect(query)
	if err != nil {
		return "", err
	}

	rows, err := e.db.QueryxContext(ctx, stmt)
	if err != nil {
		return "", internal.NewExecutionError("query failed", internal.ErrCodeQueryFailed, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", internal.NewExecutionError("query failed", internal.ErrCodeQueryFailed, err)
	}

	var (
		b         strings.Builder
		count     int
		truncated bool
	)
	b.WriteString(strings.Join(columns, " | "))
	b.WriteByte('\n')

	for rows.Next() {
		if count == e.maxRows {
			truncated = true
			break
		}
		values, err := rows.SliceScan()
		if err != nil {
			return "", internal.NewExecutionError("query failed", internal.ErrCodeQueryFailed, err)
		}
		b.WriteString(formatRow(values))
		b.WriteByte('\n')
		count++
	}
	if err := rows.Err(); err != nil {
		return "", internal.NewExecutionError("query failed", internal.ErrCodeQueryFailed, err)
	}

	if count == 0 {
		return "", internal.ErrEmptyResult
	}

	if truncated {
		fmt.Fprintf(&b, "(first %d rows shown)", count)
	} else {
		fmt.Fprintf(&b, "(%d row(s) returned)", count)
	}

	e.logger.Debug("query executed", "rows", count, "truncated", truncated)
	return b.String(), nil
}

type masterEntry struct {
	Type string `db:"type"`
	Name string `db:"name"`
	SQL  string `db:"sql"`
}

// SchemaMetadata describes every table and view with its DDL and a few sample rows,
// in the form handed to the text generator.
func (e *Executor) SchemaMetadata(ctx context.Context) (string, error) {
	var entries []masterEntry
	err := e.db.SelectContext(ctx, &entries,
		`SELECT type, name, sql FROM sqlite_master
		 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL
		 ORDER BY CASE type WHEN 'table' THEN 0 ELSE 1 END, rowid`)
	if err != nil {
		return "", internal.NewExecutionError("cannot read schema", internal.ErrCodeQueryFailed, err)
	}

	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(entry.SQL))

		if e.sampleRows == 0 {
			continue
		}
		sample, err := e.sample(ctx, entry.Name)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n\n/*\n%d rows from %s %s:\n%s*/", e.sampleRows, entry.Name, entry.Type, sample)
	}
	return b.String(), nil
}

func (e *Executor) sample(ctx context.Context, name string) (string, error) {
	rows, err := e.db.QueryxContext(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, name, e.sampleRows))
	if err != nil {
		return "", internal.NewExecutionError("cannot sample "+name, internal.ErrCodeQueryFailed, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", internal.NewExecutionError("cannot sample "+name, internal.ErrCodeQueryFailed, err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, "\t"))
	b.WriteByte('\n')
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return "", internal.NewExecutionError("cannot sample "+name, internal.ErrCodeQueryFailed, err)
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = formatValue(v)
		}
		b.WriteString(strings.Join(parts, "\t"))
		b.WriteByte('\n')
	}
	return b.String(), rows.Err()
}

// TopicCounts reads the number of users per topic from UserRiskView.
func (e *Executor) TopicCounts(ctx context.Context) (map[risk.Topic]int, error) {
	var rows []identity.RiskCount
	err := e.db.SelectContext(ctx, &rows,
		`SELECT risk_topic, COUNT(*) AS total FROM UserRiskView GROUP BY risk_topic`)
	if err != nil {
		return nil, internal.NewExecutionError("cannot count risk topics", internal.ErrCodeQueryFailed, err)
	}

	counts := make(map[risk.Topic]int, len(risk.All()))
	for _, t := range risk.All() {
		counts[t] = 0
	}
	for _, row := range rows {
		if row.RiskTopic == nil {
			continue
		}
		if t, ok := risk.ParseTopic(*row.RiskTopic); ok {
			counts[t] = int(row.Total)
		}
	}
	return counts, nil
}

func formatRow(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, " | ")
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
