package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scout-dashboard/internal/store"
)

const (
	DefaultMaxRows      = 1000
	DefaultQueryTimeout = 30 * time.Second

	previewFetch = 100
	previewShow  = 5
)

// QueryResult is a console result set rendered as text.
type QueryResult struct {
	SQL       string        `json:"sql"`
	Columns   []string      `json:"columns"`
	Rows      [][]string    `json:"rows"`
	RowCount  int           `json:"row_count"`
	Truncated bool          `json:"truncated"`
	Elapsed   time.Duration `json:"elapsed"`
	Message   string        `json:"message"`
}

func (r QueryResult) Empty() bool { return r.RowCount == 0 }

// Console runs validated SELECT statements.
type Console struct {
	q       store.Querier
	timeout time.Duration
	maxRows int
	logger  *slog.Logger
}

type ConsoleOption func(*Console)

func WithQueryTimeout(d time.Duration) ConsoleOption {
	return func(c *Console) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMaxRows(n int) ConsoleOption {
	return func(c *Console) {
		if n > 0 {
			c.maxRows = n
		}
	}
}

func NewConsole(q store.Querier, logger *slog.Logger, opts ...ConsoleOption) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Console{q: q, timeout: DefaultQueryTimeout, maxRows: DefaultMaxRows, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run validates and executes query. Validation failures are
// *ValidationError; database failures are returned wrapped.
func (c *Console) Run(ctx context.Context, query string) (QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryResult{}, &ValidationError{Reason: msgEmptyQuery}
	}
	if err := ValidateSelect(query); err != nil {
		return QueryResult{SQL: query}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	rows, err := store.Query(ctx, c.q, query, c.maxRows)
	if err != nil {
		c.logger.Warn("console query failed", "error", err)
		return QueryResult{SQL: query}, fmt.Errorf("database error: %w", err)
	}

	res := newResult(query, rows, time.Since(start))
	c.logger.Debug("console query",
		"rows", res.RowCount,
		"truncated", res.Truncated,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// Preview fetches a page of a base table and keeps its first rows.
func (c *Console) Preview(ctx context.Context, table string) (QueryResult, error) {
	if !store.KnownTable(table) {
		return QueryResult{}, fmt.Errorf("%w: %q", store.ErrUnknownTable, table)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, previewFetch)
	start := time.Now()
	rows, err := store.Query(ctx, c.q, query, 0)
	if err != nil {
		return QueryResult{SQL: query}, fmt.Errorf("load %s preview: %w", table, err)
	}
	if len(rows.Records) > previewShow {
		rows.Records = rows.Records[:previewShow]
	}
	res := newResult(query, rows, time.Since(start))
	res.Message = fmt.Sprintf("Showing %d row(s) of %s.", res.RowCount, table)
	return res, nil
}

func newResult(query string, rows store.Rows, elapsed time.Duration) QueryResult {
	res := QueryResult{
		SQL:       query,
		Columns:   rows.Columns,
		Rows:      rows.Records,
		RowCount:  len(rows.Records),
		Truncated: rows.Truncated,
		Elapsed:   elapsed,
	}
	if res.Empty() {
		res.Message = "Query executed successfully but returned no results."
	} else {
		res.Message = fmt.Sprintf("Query executed successfully. Returned %d row(s) with %d column(s).",
			res.RowCount, len(res.Columns))
	}
	return res
}
