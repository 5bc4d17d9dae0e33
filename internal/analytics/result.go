// Package analytics turns filtered tables into chart-ready summaries. Every
// routine is a pure function of its inputs: it never mutates a table and
// answers empty input or a missing column with a no-data placeholder.
package analytics

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"scout-dashboard/internal/dataset"
)

// DefaultMessage is the placeholder text for empty input.
const DefaultMessage = "No data available"

// Result is a routine's output. When NoData is set, Data is the zero value
// and Message says why.
type Result[T any] struct {
	Title   string `json:"title"`
	Data    T      `json:"data"`
	NoData  bool   `json:"no_data"`
	Message string `json:"message,omitempty"`
}

func withData[T any](title string, data T) Result[T] {
	return Result[T]{Title: title, Data: data}
}

func noData[T any](title, msg string) Result[T] {
	if msg == "" {
		msg = DefaultMessage
	}
	return Result[T]{Title: title, NoData: true, Message: msg}
}

// requireTxn returns the placeholder message for a transaction table that
// cannot feed a routine, or "" when it can.
func requireTxn(t dataset.TransactionTable, cols ...dataset.Column) string {
	return requireCols(t.Empty(), t.Schema, cols)
}

func requireItems(t dataset.ItemTable, cols ...dataset.Column) string {
	return requireCols(t.Empty(), t.Schema, cols)
}

func requireCols(empty bool, s dataset.Schema, cols []dataset.Column) string {
	if missing := s.Missing(cols...); len(missing) > 0 {
		return "Missing columns: " + strings.Join(missing, ", ")
	}
	if empty {
		return DefaultMessage
	}
	return ""
}

// Table is a flat rendering of a summary for terminals and HTML tables.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

type tabular interface {
	table() Table
}

// Summary is a type-erased Result plus its table rendering, as served by the
// chart catalog.
type Summary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	NoData  bool   `json:"no_data"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Table   Table  `json:"table"`
}

func summarize[T tabular](id string, r Result[T]) Summary {
	s := Summary{ID: id, Title: r.Title, NoData: r.NoData, Message: r.Message}
	if !r.NoData {
		s.Data = r.Data
		s.Table = r.Data.table()
	}
	return s
}

var printer = message.NewPrinter(language.English)

// FormatPeso renders an amount with thousands separators and two decimals.
func FormatPeso(v float64) string {
	return printer.Sprintf("₱%.2f", v)
}

func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

func formatUnits(v float64) string {
	if v == float64(int64(v)) {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v float64) {
	m.sum += v
	m.n++
}

func (m meanAcc) mean() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// pct is part's share of total in percent, 0 when total is 0.
func pct(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}
