package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"scout-dashboard/internal/analytics"
	"scout-dashboard/internal/assistant"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var formats = []string{formatTable, formatJSON, formatYAML}

var printer = message.NewPrinter(language.English)

func checkFormat(f string) error {
	if !slices.Contains(formats, f) {
		return fmt.Errorf("invalid output format %q, must be one of: %s", f, strings.Join(formats, ", "))
	}
	return nil
}

// document is the serialized form of one table, shared by charts and query
// results.
type document struct {
	ID        string     `json:"id,omitempty" yaml:"id,omitempty"`
	Title     string     `json:"title,omitempty" yaml:"title,omitempty"`
	SQL       string     `json:"sql,omitempty" yaml:"sql,omitempty"`
	Message   string     `json:"message,omitempty" yaml:"message,omitempty"`
	Columns   []string   `json:"columns" yaml:"columns"`
	Rows      [][]string `json:"rows" yaml:"rows"`
	Truncated bool       `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

func summaryDocument(s analytics.Summary) document {
	return document{
		ID:      s.ID,
		Title:   s.Title,
		Message: s.Message,
		Columns: s.Table.Columns,
		Rows:    s.Table.Rows,
	}
}

func resultDocument(r assistant.QueryResult) document {
	return document{
		SQL:       r.SQL,
		Message:   r.Message,
		Columns:   r.Columns,
		Rows:      r.Rows,
		Truncated: r.Truncated,
	}
}

func render(w io.Writer, doc document, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		renderTable(w, doc)
		return nil
	}
}

func renderTable(w io.Writer, doc document) {
	if doc.Title != "" {
		_, _ = fmt.Fprintln(w, doc.Title)
	}
	if len(doc.Columns) == 0 {
		if doc.Message != "" {
			_, _ = fmt.Fprintln(w, doc.Message)
		}
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(doc.Columns))
	for i, col := range doc.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, rec := range doc.Rows {
		row := make(table.Row, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		t.AppendRow(row)
	}

	t.Render()

	footer := printer.Sprintf("(%d rows)", len(doc.Rows))
	if doc.Truncated {
		footer += " truncated"
	}
	_, _ = fmt.Fprintln(w, footer)
	if doc.Message != "" {
		_, _ = fmt.Fprintln(w, doc.Message)
	}
}

// renderCatalog lists chart ids grouped by tab.
func renderCatalog(w io.Writer, charts []analytics.Chart) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Tab", "Chart", "Title"})
	for _, c := range charts {
		t.AppendRow(table.Row{c.Tab, c.ID, c.Title})
	}
	t.Render()
}
