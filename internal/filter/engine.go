// Package filter applies the dashboard's shared filter criteria to the base
// tables. Filtering never mutates its input: each call returns a new table
// with the same schema over a subset of the input rows, in input order.
package filter

import (
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"scout-dashboard/internal/dataset"
)

// OutlierThreshold is the basket total below which a transaction is treated
// as noise by the default filter path.
const OutlierThreshold = 500.0

type options struct {
	includeOutliers bool
}

type Option func(*options)

// IncludeOutliers disables the basket-total outlier step, for views that
// show the full basket value distribution.
func IncludeOutliers() Option {
	return func(o *options) { o.includeOutliers = true }
}

// Engine filters transaction and item tables. Category filters on
// transactions are resolved through the item table the engine was built
// with.
type Engine struct {
	logger     *slog.Logger
	categories map[string][]string
	hasItems   bool
}

func NewEngine(items dataset.ItemTable, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:     logger,
		categories: make(map[string][]string),
		hasItems:   items.Schema.Has(dataset.ColInteractionID, dataset.ColCategory),
	}
	if !e.hasItems {
		return e
	}
	seen := make(map[string]map[string]bool)
	for _, it := range items.Rows {
		if it.Category == "" {
			continue
		}
		ids := seen[it.Category]
		if ids == nil {
			ids = make(map[string]bool)
			seen[it.Category] = ids
		}
		if !ids[it.TransactionID] {
			ids[it.TransactionID] = true
			e.categories[it.Category] = append(e.categories[it.Category], it.TransactionID)
		}
	}
	return e
}

// Transactions filters a transaction table.
func (e *Engine) Transactions(t dataset.TransactionTable, c Criteria, opts ...Option) dataset.TransactionTable {
	acc := accessors[dataset.Transaction]{
		id:        func(r *dataset.Transaction) string { return r.ID },
		timestamp: func(r *dataset.Transaction) time.Time { return r.Timestamp },
		basket:    func(r *dataset.Transaction) sql.NullFloat64 { return r.BasketTotal },
		gender:    func(r *dataset.Transaction) string { return r.Gender },
		ageBucket: func(r *dataset.Transaction) string { return r.AgeBucket },
		payment:   func(r *dataset.Transaction) string { return r.PaymentMethod },
	}
	return t.WithRows(apply(e, t.Rows, t.Schema, c, acc, opts))
}

// Items filters an item table.
func (e *Engine) Items(t dataset.ItemTable, c Criteria, opts ...Option) dataset.ItemTable {
	acc := accessors[dataset.Item]{
		id:        func(r *dataset.Item) string { return r.TransactionID },
		timestamp: func(r *dataset.Item) time.Time { return r.Timestamp },
		basket:    func(r *dataset.Item) sql.NullFloat64 { return r.BasketTotal },
		gender:    func(r *dataset.Item) string { return r.Gender },
		ageBucket: func(r *dataset.Item) string { return r.AgeBucket },
		payment:   func(r *dataset.Item) string { return r.PaymentMethod },
		category:  func(r *dataset.Item) string { return r.Category },
	}
	return t.WithRows(apply(e, t.Rows, t.Schema, c, acc, opts))
}

type accessors[R any] struct {
	id        func(*R) string
	timestamp func(*R) time.Time
	basket    func(*R) sql.NullFloat64
	gender    func(*R) string
	ageBucket func(*R) string
	payment   func(*R) string
	category  func(*R) string // nil for tables without their own category
}

type predicate[R any] func(*R) bool

func apply[R any](e *Engine, rows []R, schema dataset.Schema, c Criteria, acc accessors[R], opts []Option) []R {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c = c.Normalize()

	var preds []predicate[R]

	if !o.includeOutliers && schema.Has(dataset.ColBasketTotal) {
		preds = append(preds, func(r *R) bool {
			b := acc.basket(r)
			return b.Valid && b.Float64 >= OutlierThreshold
		})
	}

	if c.DateRange != nil && schema.Has(dataset.ColTransactionDate) {
		if start, end, ok := e.dateBounds(*c.DateRange, schema.Zoned); ok {
			preds = append(preds, func(r *R) bool {
				ts := acc.timestamp(r)
				return !ts.IsZero() && !ts.Before(start) && !ts.After(end)
			})
		}
	}

	if len(c.Genders) > 0 && schema.Has(dataset.ColGender) {
		preds = append(preds, memberOf(c.Genders, acc.gender))
	}
	if len(c.AgeBuckets) > 0 && schema.Has(dataset.ColAgeBucket) {
		preds = append(preds, memberOf(c.AgeBuckets, acc.ageBucket))
	}
	if len(c.PaymentMethods) > 0 && schema.Has(dataset.ColPaymentMethod) {
		preds = append(preds, memberOf(c.PaymentMethods, acc.payment))
	}

	if len(c.MonthYears) > 0 && schema.Has(dataset.ColTransactionDate) {
		if periods := e.monthPeriods(c.MonthYears); len(periods) > 0 {
			preds = append(preds, func(r *R) bool {
				ts := acc.timestamp(r)
				return !ts.IsZero() && periods[periodOf(ts)]
			})
		}
	}

	if c.WeekdayWeekend != "" && schema.Has(dataset.ColTransactionDate) {
		if want, ok := e.dayType(c.WeekdayWeekend); ok {
			preds = append(preds, func(r *R) bool {
				ts := acc.timestamp(r)
				return !ts.IsZero() && dataset.DayType(ts) == want
			})
		}
	}

	if len(c.Categories) > 0 {
		switch {
		case acc.category != nil && schema.Has(dataset.ColCategory):
			preds = append(preds, memberOf(c.Categories, acc.category))
		case acc.category == nil && schema.Has(dataset.ColInteractionID):
			if ids, ok := e.transactionsInCategories(c.Categories); ok {
				preds = append(preds, func(r *R) bool { return ids[acc.id(r)] })
			}
		}
	}

	out := make([]R, 0, len(rows))
	for i := range rows {
		keep := true
		for _, p := range preds {
			if !p(&rows[i]) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, rows[i])
		}
	}
	return out
}

func memberOf[R any](values []string, get func(*R) string) predicate[R] {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return func(r *R) bool { return set[get(r)] }
}

// dateBounds resolves a user date range to inclusive instants: the start of
// the first day through the last second of the last day. Naive bounds are
// read as UTC for zoned tables; zoned bounds lose their zone (keeping wall
// time) for naive tables.
func (e *Engine) dateBounds(dr DateRange, tableZoned bool) (time.Time, time.Time, bool) {
	start, startZoned, ok1 := dataset.ParseTimestamp(dr.Start)
	end, endZoned, ok2 := dataset.ParseTimestamp(dr.End)
	if !ok1 || !ok2 {
		e.logger.Warn("date range filter skipped: unparseable bound",
			"start", dr.Start,
			"end", dr.End,
		)
		return time.Time{}, time.Time{}, false
	}

	start = startOfDay(start)
	end = startOfDay(end).AddDate(0, 0, 1).Add(-time.Second)

	if !tableZoned {
		if startZoned {
			start = stripZone(start)
		}
		if endZoned {
			end = stripZone(end)
		}
	}
	return start, end, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func periodOf(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// monthPeriods parses "YYYY-MM" or full date tokens into year-month keys.
// Bad tokens are logged and dropped.
func (e *Engine) monthPeriods(tokens []string) map[int]bool {
	periods := make(map[int]bool, len(tokens))
	for _, tok := range tokens {
		var (
			t  time.Time
			ok bool
		)
		if len(tok) == len("2006-01") {
			var err error
			t, err = time.Parse("2006-01", tok)
			ok = err == nil
		} else {
			t, _, ok = dataset.ParseTimestamp(tok)
		}
		if !ok {
			e.logger.Warn("month filter token ignored", "token", tok)
			continue
		}
		periods[periodOf(t)] = true
	}
	if len(periods) == 0 {
		e.logger.Warn("month filter skipped: no valid tokens", "tokens", tokens)
	}
	return periods
}

func (e *Engine) dayType(v string) (string, bool) {
	switch strings.ToLower(v) {
	case strings.ToLower(dataset.DayTypeWeekday):
		return dataset.DayTypeWeekday, true
	case strings.ToLower(dataset.DayTypeWeekend):
		return dataset.DayTypeWeekend, true
	}
	e.logger.Warn("weekday/weekend filter skipped: unknown value", "value", v)
	return "", false
}

func (e *Engine) transactionsInCategories(categories []string) (map[string]bool, bool) {
	if !e.hasItems {
		e.logger.Warn("category filter skipped: no item table with categories to resolve transactions")
		return nil, false
	}
	ids := make(map[string]bool)
	for _, cat := range categories {
		for _, id := range e.categories[cat] {
			ids[id] = true
		}
	}
	return ids, true
}
