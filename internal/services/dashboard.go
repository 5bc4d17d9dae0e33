package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scout-dashboard/internal/analytics"
	"scout-dashboard/internal/dataset"
	"scout-dashboard/internal/filter"
)

const maxWorkers = 10

var (
	ErrUnknownChart = errors.New("unknown chart")
	ErrUnknownTab   = errors.New("unknown tab")
)

// Loader produces a fresh snapshot of both base tables.
type Loader interface {
	Load(ctx context.Context) (dataset.Snapshot, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (dataset.Snapshot, error)

func (f LoaderFunc) Load(ctx context.Context) (dataset.Snapshot, error) { return f(ctx) }

// Dashboard holds the current snapshot and answers chart requests against
// it. Every request recomputes from the snapshot; nothing is cached.
type Dashboard struct {
	mu     sync.RWMutex
	snap   dataset.Snapshot
	engine *filter.Engine
	logger *slog.Logger
}

func NewDashboard(logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		engine: filter.NewEngine(dataset.ItemTable{}, logger),
		logger: logger,
	}
}

// SetSnapshot replaces the snapshot and rebuilds the category index.
func (d *Dashboard) SetSnapshot(snap dataset.Snapshot) {
	if snap.LoadedAt.IsZero() {
		snap.LoadedAt = time.Now()
	}
	engine := filter.NewEngine(snap.Items, d.logger)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap = snap
	d.engine = engine
}

// Load replaces the snapshot with one read from l. On error the current
// snapshot stays in place.
func (d *Dashboard) Load(ctx context.Context, l Loader) error {
	start := time.Now()
	snap, err := l.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	d.SetSnapshot(snap)

	d.logger.Info("snapshot loaded",
		"source", snap.Source,
		"transactions", snap.Transactions.Len(),
		"items", snap.Items.Len(),
		"duration", time.Since(start),
	)
	return nil
}

func (d *Dashboard) Snapshot() dataset.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

func (d *Dashboard) input(c filter.Criteria) analytics.Input {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return analytics.Input{Snapshot: d.snap, Engine: d.engine, Criteria: c.Normalize()}
}

// Chart computes one catalog chart under c.
func (d *Dashboard) Chart(id string, c filter.Criteria) (analytics.Summary, error) {
	chart, ok := analytics.Lookup(id)
	if !ok {
		return analytics.Summary{}, fmt.Errorf("%w: %q", ErrUnknownChart, id)
	}
	return chart.Run(d.input(c)), nil
}

// Tab computes every chart of a tab concurrently. Results keep catalog
// order.
func (d *Dashboard) Tab(ctx context.Context, tab string, c filter.Criteria) ([]analytics.Summary, error) {
	charts := analytics.TabCharts(tab)
	if len(charts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}

	in := d.input(c)
	out := make([]analytics.Summary, len(charts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i, chart := range charts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = chart.Run(in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterOptions are the distinct values that populate the filter controls.
type FilterOptions struct {
	Genders        []string `json:"genders"`
	AgeBuckets     []string `json:"age_buckets"`
	PaymentMethods []string `json:"payment_methods"`
	Months         []string `json:"months"`
	Categories     []string `json:"categories"`
	MinDate        string   `json:"min_date,omitempty"`
	MaxDate        string   `json:"max_date,omitempty"`
	DayTypes       []string `json:"day_types"`
}

func (d *Dashboard) FilterOptions() FilterOptions {
	snap := d.Snapshot()

	genders := map[string]struct{}{}
	ages := map[string]struct{}{}
	payments := map[string]struct{}{}
	months := map[string]struct{}{}
	var lo, hi time.Time
	for _, tx := range snap.Transactions.Rows {
		addNonEmpty(genders, tx.Gender)
		addNonEmpty(ages, tx.AgeBucket)
		addNonEmpty(payments, tx.PaymentMethod)
		switch {
		case !tx.Month.IsZero():
			months[tx.Month.Format("2006-01")] = struct{}{}
		case !tx.Timestamp.IsZero():
			months[tx.Timestamp.Format("2006-01")] = struct{}{}
		}
		if tx.Timestamp.IsZero() {
			continue
		}
		if lo.IsZero() || tx.Timestamp.Before(lo) {
			lo = tx.Timestamp
		}
		if hi.IsZero() || tx.Timestamp.After(hi) {
			hi = tx.Timestamp
		}
	}

	categories := map[string]struct{}{}
	for _, it := range snap.Items.Rows {
		addNonEmpty(categories, it.Category)
	}

	opts := FilterOptions{
		Genders:        sortedSet(genders),
		AgeBuckets:     dataset.SortByOrder(keys(ages), dataset.AgeBuckets),
		PaymentMethods: sortedSet(payments),
		Months:         sortedSet(months),
		Categories:     sortedSet(categories),
		DayTypes:       []string{dataset.DayTypeWeekday, dataset.DayTypeWeekend},
	}
	if !lo.IsZero() {
		opts.MinDate = lo.Format(time.DateOnly)
		opts.MaxDate = hi.Format(time.DateOnly)
	}
	return opts
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := keys(set)
	slices.SortFunc(out, cmp.Compare[string])
	return out
}

// Stats is a monitoring summary of the loaded snapshot.
func (d *Dashboard) Stats() map[string]any {
	snap := d.Snapshot()
	return map[string]any{
		"source":              snap.Source,
		"loaded_at":           snap.LoadedAt,
		"transactions":        snap.Transactions.Len(),
		"items":               snap.Items.Len(),
		"transaction_columns": snap.Transactions.Schema.Names(),
		"item_columns":        snap.Items.Schema.Names(),
		"charts":              len(analytics.Catalog()),
	}
}
