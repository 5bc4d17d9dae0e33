package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"scout-dashboard/internal/dataset"
)

// tableColumns are the columns created by the migrations, in table order.
var tableColumns = map[string][]string{
	TransactionsTable: {
		"InteractionID", "TransactionDate", "txn_date", "txn_month", "txn_weekday", "txn_hour",
		"timeofday_segment", "Gender", "gender_clean", "Age", "age_bucket", "payment_method", "basket_total",
	},
	ItemsTable: {
		"InteractionID", "TransactionDate", "gender_clean", "age_bucket", "Age",
		"transactionContext_paymentMethod_voice", "totals_totalAmount_voice", "totalPrice", "unitPrice",
		"quantity", "category", "brandName", "productName", "sku", "timeofday_segment", "txn_weekday",
		"round_price_flag",
	},
}

// SeedFiles loads both CSV exports into the SQLite tables.
func (s *Store) SeedFiles(ctx context.Context, transactionsPath, itemsPath string) (map[string]int, error) {
	paths := map[string]string{TransactionsTable: transactionsPath, ItemsTable: itemsPath}
	counts := make(map[string]int, len(paths))
	for _, table := range Tables {
		path := paths[table]
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		n, err := s.Seed(ctx, table, f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("seed %s from %s: %w", table, path, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Seed inserts the CSV rows read from r into table inside one transaction.
// Header columns the table does not have are ignored; missing-value markers
// become NULL.
func (s *Store) Seed(ctx context.Context, table string, r io.Reader) (int, error) {
	known, ok := tableColumns[table]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var cols []string
	var idx []int
	for i, h := range header {
		name, ok := matchColumn(known, h)
		if !ok {
			s.logger.Debug("ignoring csv column", "table", table, "column", h)
			continue
		}
		cols = append(cols, `"`+name+`"`)
		idx = append(idx, i)
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("no %s columns in header", table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	args := make([]any, len(cols))
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read record %d: %w", n+1, err)
		}
		for j, i := range idx {
			args[j] = nil
			if i < len(rec) {
				if v := dataset.Text(rec[i]); v != "" {
					args[j] = v
				}
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert record %d: %w", n+1, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("seeded table", "table", table, "rows", n)
	return n, nil
}

func matchColumn(known []string, name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, k := range known {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}
