package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"scout-dashboard/internal/dataset"
)

// Load reads both base tables concurrently and left-joins basket total and
// payment method onto the items.
func (s *Store) Load(ctx context.Context) (dataset.Snapshot, error) {
	var txnRows, itemRows Rows

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := Query(ctx, s, "SELECT * FROM "+TransactionsTable, 0)
		if err != nil {
			return fmt.Errorf("load %s: %w", TransactionsTable, err)
		}
		txnRows = r
		return nil
	})
	g.Go(func() error {
		r, err := Query(ctx, s, "SELECT * FROM "+ItemsTable, 0)
		if err != nil {
			return fmt.Errorf("load %s: %w", ItemsTable, err)
		}
		itemRows = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return dataset.Snapshot{}, err
	}

	txns, txnStats := dataset.DecodeTransactions(txnRows.Columns, txnRows.Records)
	items, itemStats := dataset.DecodeItems(itemRows.Columns, itemRows.Records)
	if txnStats.Skipped > 0 || itemStats.Skipped > 0 {
		s.logger.Warn("skipped rows without InteractionID",
			"transactions", txnStats.Skipped,
			"items", itemStats.Skipped,
		)
	}

	return dataset.Snapshot{
		Transactions: txns,
		Items:        dataset.JoinTransactions(items, txns),
		Source:       s.Source(),
		LoadedAt:     time.Now(),
	}, nil
}
