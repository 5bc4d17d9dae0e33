package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// NullText is how a SQL NULL is rendered. The dataset decoders read it back
// as a missing value.
const NullText = "NULL"

// Rows is a result set read into memory and rendered as text.
type Rows struct {
	Columns   []string
	Records   [][]string
	Truncated bool
}

func (r Rows) Len() int { return len(r.Records) }

// Query runs query on q and reads at most limit rows; limit <= 0 reads all.
func Query(ctx context.Context, q Querier, query string, limit int, args ...any) (Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return Rows{}, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()
	return ReadRows(rows, limit)
}

// ReadRows drains rows. Truncated is set when more rows were available past
// limit.
func ReadRows(rows *sql.Rows, limit int) (Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Rows{}, fmt.Errorf("read columns: %w", err)
	}

	out := Rows{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if limit > 0 && len(out.Records) == limit {
			out.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Rows{}, fmt.Errorf("scan row: %w", err)
		}
		rec := make([]string, len(cols))
		for i, v := range values {
			rec[i] = FormatValue(v)
		}
		out.Records = append(out.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return Rows{}, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// FormatValue renders a scanned driver value. Times in UTC are written
// without an offset so that naive timestamp columns stay naive.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return NullText
	case []byte:
		return string(v)
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		if v.Location() == time.UTC {
			return v.Format("2006-01-02 15:04:05.999999999")
		}
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Preview fetches up to fetch rows of a base table.
func (s *Store) Preview(ctx context.Context, table string, fetch int) (Rows, error) {
	if !KnownTable(table) {
		return Rows{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	// table is one of the fixed names above.
	return Query(ctx, s, fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, table, fetch), 0)
}
