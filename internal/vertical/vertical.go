// Package vertical narrows item tables to a named product vertical by
// matching category or brand text.
package vertical

import (
	"regexp"
	"strings"

	"scout-dashboard/internal/dataset"
)

// Vertical is a fixed product family. An item belongs to it when its
// category matches the keyword pattern or its brand matches the brand
// pattern. Missing text never matches.
type Vertical struct {
	Name         string
	Title        string
	Anchor       string
	EmptyMessage string

	category *regexp.Regexp
	brand    *regexp.Regexp
}

var (
	Tobacco = Vertical{
		Name:         "tobacco",
		Title:        "Tobacco",
		Anchor:       "marlboro",
		EmptyMessage: "No tobacco data",
		category:     regexp.MustCompile(`(?i)tobacco|cigarette`),
		brand:        regexp.MustCompile(`(?i)marlboro|camel|chesterfield|fortune|winston|mighty`),
	}
	Laundry = Vertical{
		Name:         "laundry",
		Title:        "Laundry",
		Anchor:       "surf",
		EmptyMessage: "No laundry data",
		category:     regexp.MustCompile(`(?i)laundry|detergent|fabric|softener|conditioner`),
		brand:        regexp.MustCompile(`(?i)surf|ariel|tide|downy|breeze|perla`),
	}
)

// All lists the verticals in tab order.
var All = []Vertical{Tobacco, Laundry}

func ByName(name string) (Vertical, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, v := range All {
		if v.Name == name {
			return v, true
		}
	}
	return Vertical{}, false
}

// Matches reports whether the item's category or brand names the vertical.
func (v Vertical) Matches(it dataset.Item) bool {
	return (it.Category != "" && v.category.MatchString(it.Category)) ||
		(it.Brand != "" && v.brand.MatchString(it.Brand))
}

// Filter returns the items of t that belong to v. A column missing from the
// schema never matches. The schema is unchanged.
func (v Vertical) Filter(t dataset.ItemTable) dataset.ItemTable {
	useCategory := t.Schema.Has(dataset.ColCategory)
	useBrand := t.Schema.Has(dataset.ColBrand)

	rows := make([]dataset.Item, 0)
	for _, it := range t.Rows {
		seen := it
		if !useCategory {
			seen.Category = ""
		}
		if !useBrand {
			seen.Brand = ""
		}
		if v.Matches(seen) {
			rows = append(rows, it)
		}
	}
	return t.WithRows(rows)
}

// IsAnchor reports whether an item is of the vertical's anchor brand.
func (v Vertical) IsAnchor(it dataset.Item) bool {
	return it.Brand != "" && strings.Contains(strings.ToLower(it.Brand), v.Anchor)
}
