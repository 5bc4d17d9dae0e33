package dataset

import (
	"context"
	"encoding/csv"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	batchSize    = 10000
	maxWorkers   = 10
	cacheVersion = "v1"
)

// CSVLoader reads the two base tables from CSV exports. Parsed snapshots can
// be cached as gob files next to each other under CacheDir; a cache entry is
// used only while both CSV files are older than it.
type CSVLoader struct {
	CacheDir string
	logger   *slog.Logger

	recordsProcessed atomic.Int64
}

func NewCSVLoader(cacheDir string, logger *slog.Logger) *CSVLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVLoader{CacheDir: cacheDir, logger: logger}
}

// RecordsProcessed is the number of data rows decoded by the last Load that
// did not hit the cache.
func (l *CSVLoader) RecordsProcessed() int64 {
	return l.recordsProcessed.Load()
}

func (l *CSVLoader) Load(ctx context.Context, transactionsPath, itemsPath string) (Snapshot, error) {
	if cached, err := l.loadFromCache(transactionsPath, itemsPath); err == nil {
		l.logger.Info("loaded snapshot from cache",
			"transactions", cached.Transactions.Len(),
			"items", cached.Items.Len(),
		)
		return cached, nil
	}

	start := time.Now()
	l.recordsProcessed.Store(0)

	var (
		txns  TransactionTable
		items ItemTable
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = l.loadTransactions(gctx, transactionsPath)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = l.loadItems(gctx, itemsPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Transactions: txns,
		Items:        JoinTransactions(items, txns),
		Source:       "csv",
		LoadedAt:     time.Now(),
	}

	if l.CacheDir != "" {
		if err := l.saveToCache(transactionsPath, itemsPath, snap); err != nil {
			l.logger.Warn("failed to save snapshot cache", "error", err)
		}
	}

	duration := time.Since(start)
	count := l.recordsProcessed.Load()
	l.logger.Info("csv load complete",
		"records", count,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(count)/duration.Seconds()),
	)
	return snap, nil
}

func (l *CSVLoader) loadTransactions(ctx context.Context, path string) (TransactionTable, error) {
	rows, d, zoned, err := decodeCSV(ctx, l, path, (*Decoder).Transaction)
	if err != nil {
		return TransactionTable{}, fmt.Errorf("load transactions: %w", err)
	}
	schema := d.Schema()
	schema.Zoned = zoned
	return TransactionTable{Schema: schema, Rows: rows}, nil
}

func (l *CSVLoader) loadItems(ctx context.Context, path string) (ItemTable, error) {
	rows, d, zoned, err := decodeCSV(ctx, l, path, (*Decoder).Item)
	if err != nil {
		return ItemTable{}, fmt.Errorf("load items: %w", err)
	}
	schema := d.ItemSchema()
	schema.Zoned = zoned
	return ItemTable{Schema: schema, Rows: rows}, nil
}

// decodeCSV streams path in batches and decodes each batch on a bounded
// worker pool. Output order matches file order.
func decodeCSV[R any](ctx context.Context, l *CSVLoader, path string, decode func(*Decoder, []string) (R, bool, error)) ([]R, *Decoder, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, false, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, false, fmt.Errorf("empty file %s", path)
		}
		return nil, nil, false, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	d := NewDecoder(header)
	if !d.Schema().Has(ColInteractionID) {
		return nil, nil, false, fmt.Errorf("%s: header has no InteractionID column", path)
	}

	type part struct {
		rows    []R
		zoned   bool
		skipped int
	}
	var parts []*part

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	flush := func(batch [][]string) {
		p := &part{}
		parts = append(parts, p)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.rows = make([]R, 0, len(batch))
			for _, rec := range batch {
				row, zoned, err := decode(d, rec)
				if err != nil {
					p.skipped++
					continue
				}
				p.zoned = p.zoned || zoned
				p.rows = append(p.rows, row)
			}
			l.recordsProcessed.Add(int64(len(p.rows)))
			return nil
		})
	}

	batch := make([][]string, 0, batchSize)
	for {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return nil, nil, false, err
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = g.Wait()
			return nil, nil, false, fmt.Errorf("read %s: %w", path, err)
		}
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			flush(batch)
			batch = make([][]string, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		flush(batch)
	}

	if err := g.Wait(); err != nil {
		return nil, nil, false, err
	}

	var (
		rows    []R
		zoned   bool
		skipped int
	)
	for _, p := range parts {
		rows = append(rows, p.rows...)
		zoned = zoned || p.zoned
		skipped += p.skipped
	}
	if skipped > 0 {
		l.logger.Warn("skipped rows without identifier", "file", path, "skipped", skipped)
	}
	if len(rows) == 0 {
		return nil, nil, false, fmt.Errorf("%s: no valid records found", path)
	}
	return rows, d, zoned, nil
}

func (l *CSVLoader) cacheFilename(transactionsPath, itemsPath string) string {
	key := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(transactionsPath + "+" + itemsPath)
	return filepath.Join(l.CacheDir, fmt.Sprintf("%s_%s.gob", key, cacheVersion))
}

func (l *CSVLoader) saveToCache(transactionsPath, itemsPath string, snap Snapshot) error {
	if err := os.MkdirAll(l.CacheDir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(l.cacheFilename(transactionsPath, itemsPath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(snap)
}

func (l *CSVLoader) loadFromCache(transactionsPath, itemsPath string) (Snapshot, error) {
	if l.CacheDir == "" {
		return Snapshot{}, errors.New("cache disabled")
	}

	file, err := os.Open(l.cacheFilename(transactionsPath, itemsPath))
	if err != nil {
		return Snapshot{}, err
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return Snapshot{}, err
	}

	for _, p := range []string{transactionsPath, itemsPath} {
		info, err := os.Stat(p)
		if err != nil {
			return Snapshot{}, err
		}
		if !info.ModTime().Before(snap.LoadedAt) {
			return Snapshot{}, fmt.Errorf("cache stale for %s", p)
		}
	}
	return snap, nil
}
