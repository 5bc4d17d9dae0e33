package analytics

import (
	"cmp"
	"slices"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scout-dashboard/internal/dataset"
	"scout-dashboard/internal/vertical"
)

const (
	verticalBrandLimit   = 10
	verticalTopBrands    = 8
	companionCategoryTop = 12
	companionBrandLimit  = 10
)

var titleCase = cases.Title(language.English)

// VerticalStat is the distinct transaction count and mean line quantity of
// one group within a vertical.
type VerticalStat struct {
	Label        string  `json:"label"`
	Transactions int     `json:"transactions"`
	AvgQuantity  float64 `json:"avg_quantity"`
}

type VerticalStats []VerticalStat

func (v VerticalStats) table() Table {
	t := Table{Columns: []string{"Group", "Transactions", "Average Quantity"}}
	for _, s := range v {
		t.Rows = append(t.Rows, []string{s.Label, formatCount(s.Transactions), printer.Sprintf("%.2f", s.AvgQuantity)})
	}
	return t
}

type verticalAcc struct {
	ids map[string]struct{}
	qty meanAcc
}

func groupVertical(rows []dataset.Item, key func(*dataset.Item) string) map[string]*verticalAcc {
	groups := make(map[string]*verticalAcc)
	for i := range rows {
		it := &rows[i]
		k := key(it)
		if k == "" {
			continue
		}
		g := groups[k]
		if g == nil {
			g = &verticalAcc{ids: make(map[string]struct{})}
			groups[k] = g
		}
		g.ids[it.TransactionID] = struct{}{}
		if it.Quantity.Valid {
			g.qty.add(it.Quantity.Float64)
		}
	}
	return groups
}

func verticalStats(groups map[string]*verticalAcc, order []string) VerticalStats {
	out := make(VerticalStats, 0, len(groups))
	for _, k := range order {
		if g, found := groups[k]; found {
			out = append(out, VerticalStat{Label: k, Transactions: len(g.ids), AvgQuantity: g.qty.mean()})
		}
	}
	return out
}

// subset applies the vertical and reports the placeholder message when the
// result cannot feed a routine.
func subset(v vertical.Vertical, t dataset.ItemTable, cols ...dataset.Column) (dataset.ItemTable, string) {
	if missing := t.Schema.Missing(cols...); len(missing) > 0 {
		return dataset.ItemTable{}, requireItems(t, cols...)
	}
	sub := v.Filter(t)
	if sub.Empty() {
		return sub, v.EmptyMessage
	}
	return sub, ""
}

func verticalTitle(v vertical.Vertical, what string) string {
	return v.Title + " " + what
}

// VerticalTimeOfDay counts distinct transactions and averages quantity per
// time segment, in day order.
func VerticalTimeOfDay(v vertical.Vertical, t dataset.ItemTable) Result[VerticalStats] {
	title := verticalTitle(v, "Transactions & Average Quantity by Time of Day")
	sub, msg := subset(v, t, dataset.ColInteractionID, dataset.ColTimeSegment, dataset.ColQuantity)
	if msg != "" {
		return noData[VerticalStats](title, msg)
	}
	groups := groupVertical(sub.Rows, func(it *dataset.Item) string { return it.TimeSegment })
	if len(groups) == 0 {
		return noData[VerticalStats](title, v.EmptyMessage)
	}
	return withData(title, verticalStats(groups, dataset.SortSegments(sortedKeys(groups))))
}

// VerticalDayOfWeek groups by the txn_weekday label, Sunday first. Labels
// that are not weekday names are dropped.
func VerticalDayOfWeek(v vertical.Vertical, t dataset.ItemTable) Result[VerticalStats] {
	title := verticalTitle(v, "Transactions & Average Quantity by Day of Week")
	sub, msg := subset(v, t, dataset.ColInteractionID, dataset.ColTxnWeekday, dataset.ColQuantity)
	if msg != "" {
		return noData[VerticalStats](title, msg)
	}
	groups := groupVertical(sub.Rows, func(it *dataset.Item) string {
		if slices.Contains(dataset.WeekdaysSundayFirst, it.Weekday) {
			return it.Weekday
		}
		return ""
	})
	if len(groups) == 0 {
		return noData[VerticalStats](title, v.EmptyMessage)
	}
	return withData(title, verticalStats(groups, dataset.WeekdaysSundayFirst))
}

// VerticalBrands ranks brands by distinct transactions and keeps the top 10.
func VerticalBrands(v vertical.Vertical, t dataset.ItemTable) Result[VerticalStats] {
	title := verticalTitle(v, "Top Brands")
	sub, msg := subset(v, t, dataset.ColInteractionID, dataset.ColBrand, dataset.ColQuantity)
	if msg != "" {
		return noData[VerticalStats](title, msg)
	}
	groups := groupVertical(sub.Rows, func(it *dataset.Item) string { return it.Brand })
	if len(groups) == 0 {
		return noData[VerticalStats](title, v.EmptyMessage)
	}
	stats := verticalStats(groups, sortedKeys(groups))
	slices.SortStableFunc(stats, func(a, b VerticalStat) int { return cmp.Compare(b.Transactions, a.Transactions) })
	if len(stats) > verticalBrandLimit {
		stats = stats[:verticalBrandLimit]
	}
	return withData(title, stats)
}

// VerticalBrandsByDay sums units per brand and weekday for the eight
// best-selling brands.
func VerticalBrandsByDay(v vertical.Vertical, t dataset.ItemTable) Result[Matrix] {
	title := verticalTitle(v, "Brand Units by Day of Week")
	sub, msg := subset(v, t, dataset.ColBrand, dataset.ColTxnWeekday, dataset.ColQuantity)
	if msg != "" {
		return noData[Matrix](title, msg)
	}
	c := cells{}
	brandUnits := make(map[string]float64)
	for i := range sub.Rows {
		it := &sub.Rows[i]
		if it.Brand == "" || !it.Quantity.Valid || !slices.Contains(dataset.WeekdaysSundayFirst, it.Weekday) {
			continue
		}
		c.add(it.Brand, it.Weekday, it.Quantity.Float64)
		brandUnits[it.Brand] += it.Quantity.Float64
	}
	if len(c) == 0 {
		return noData[Matrix](title, v.EmptyMessage)
	}
	brands := labels(topByValue(brandUnits, verticalTopBrands))
	return withData(title, c.matrix("Brand", brands, dataset.WeekdaysSundayFirst))
}

// VerticalGenderShare sums units per gender.
func VerticalGenderShare(v vertical.Vertical, t dataset.ItemTable) Result[LabelValues] {
	title := verticalTitle(v, "Purchases by Gender")
	sub, msg := subset(v, t, dataset.ColGender, dataset.ColQuantity)
	if msg != "" {
		return noData[LabelValues](title, msg)
	}
	units := sumUnits(sub.Rows, func(it *dataset.Item) string { return it.Gender })
	if len(units) == 0 {
		return noData[LabelValues](title, v.EmptyMessage)
	}
	out := make(LabelValues, 0, len(units))
	for _, g := range sortedKeys(units) {
		out = append(out, LabelValue{Label: g, Value: units[g]})
	}
	return withData(title, out)
}

// VerticalAgeShare sums units per age bucket, in age order.
func VerticalAgeShare(v vertical.Vertical, t dataset.ItemTable) Result[LabelValues] {
	title := verticalTitle(v, "Purchases by Age Group")
	sub, msg := subset(v, t, dataset.ColAgeBucket, dataset.ColQuantity)
	if msg != "" {
		return noData[LabelValues](title, msg)
	}
	units := sumUnits(sub.Rows, func(it *dataset.Item) string { return it.AgeBucket })
	if len(units) == 0 {
		return noData[LabelValues](title, v.EmptyMessage)
	}
	out := make(LabelValues, 0, len(units))
	for _, a := range dataset.SortByOrder(sortedKeys(units), dataset.AgeBuckets) {
		out = append(out, LabelValue{Label: a, Value: units[a]})
	}
	return withData(title, out)
}

// VerticalGenderByBrand gives the gender split of units for the eight
// best-selling brands, best seller first.
func VerticalGenderByBrand(v vertical.Vertical, t dataset.ItemTable) Result[GenderShares] {
	title := verticalTitle(v, "Gender Split by Brand")
	sub, msg := subset(v, t, dataset.ColBrand, dataset.ColGender, dataset.ColQuantity)
	if msg != "" {
		return noData[GenderShares](title, msg)
	}
	tallies := make(map[string]*genderTally)
	brandUnits := make(map[string]float64)
	for i := range sub.Rows {
		it := &sub.Rows[i]
		if it.Brand == "" || it.Gender == "" || !it.Quantity.Valid {
			continue
		}
		g := tallies[it.Brand]
		if g == nil {
			g = &genderTally{}
			tallies[it.Brand] = g
		}
		g.add(it.Gender, it.Quantity.Float64)
		brandUnits[it.Brand] += it.Quantity.Float64
	}
	if len(tallies) == 0 {
		return noData[GenderShares](title, v.EmptyMessage)
	}
	var out GenderShares
	for _, b := range labels(topByValue(brandUnits, verticalTopBrands)) {
		out = append(out, tallies[b].share(b))
	}
	return withData(title, out)
}

// BasketSizeFreq is how many anchor transactions had a given number of item
// lines.
type BasketSizeFreq struct {
	Items        int `json:"items"`
	Transactions int `json:"transactions"`
}

type BasketSizes []BasketSizeFreq

func (b BasketSizes) table() Table {
	t := Table{Columns: []string{"Items in Basket", "Transactions"}}
	for _, f := range b {
		t.Rows = append(t.Rows, []string{strconv.Itoa(f.Items), formatCount(f.Transactions)})
	}
	return t
}

// anchorTransactions returns the identifiers of transactions holding an
// anchor-brand item.
func anchorTransactions(v vertical.Vertical, rows []dataset.Item) map[string]bool {
	ids := make(map[string]bool)
	for i := range rows {
		if v.IsAnchor(rows[i]) {
			ids[rows[i].TransactionID] = true
		}
	}
	return ids
}

func anchorTitle(v vertical.Vertical, format string) string {
	return printer.Sprintf(format, titleCase.String(v.Anchor))
}

func anchorEmpty(v vertical.Vertical) string {
	return "No " + titleCase.String(v.Anchor) + " data"
}

// AnchorBasketSize counts the item lines of every transaction containing the
// anchor brand and returns how often each line count occurs. Input is the
// generally filtered item table, not the vertical subset.
func AnchorBasketSize(v vertical.Vertical, t dataset.ItemTable) Result[BasketSizes] {
	title := anchorTitle(v, "Number of Items Purchased with %s")
	if msg := requireItems(t, dataset.ColInteractionID, dataset.ColBrand); msg != "" {
		return noData[BasketSizes](title, msg)
	}
	ids := anchorTransactions(v, t.Rows)
	if len(ids) == 0 {
		return noData[BasketSizes](title, anchorEmpty(v))
	}
	lines := make(map[string]int, len(ids))
	for i := range t.Rows {
		if id := t.Rows[i].TransactionID; ids[id] {
			lines[id]++
		}
	}
	freq := make(map[int]int)
	for _, n := range lines {
		freq[n]++
	}
	out := make(BasketSizes, 0, len(freq))
	for n, c := range freq {
		out = append(out, BasketSizeFreq{Items: n, Transactions: c})
	}
	slices.SortFunc(out, func(a, b BasketSizeFreq) int { return cmp.Compare(a.Items, b.Items) })
	return withData(title, out)
}

// AnchorCompanionCategories sums units per category across every line of
// the anchor transactions, anchor lines included, and keeps the top 12.
func AnchorCompanionCategories(v vertical.Vertical, t dataset.ItemTable) Result[LabelValues] {
	title := anchorTitle(v, "Categories Purchased with %s")
	if msg := requireItems(t, dataset.ColInteractionID, dataset.ColBrand, dataset.ColCategory, dataset.ColQuantity); msg != "" {
		return noData[LabelValues](title, msg)
	}
	ids := anchorTransactions(v, t.Rows)
	if len(ids) == 0 {
		return noData[LabelValues](title, anchorEmpty(v))
	}
	units := sumUnits(t.Rows, func(it *dataset.Item) string {
		if !ids[it.TransactionID] {
			return ""
		}
		return it.Category
	})
	if len(units) == 0 {
		return noData[LabelValues](title, anchorEmpty(v))
	}
	return withData(title, topByValue(units, companionCategoryTop))
}

// AnchorCompanionBrands sums units per brand across the anchor transactions,
// leaving out the anchor brand itself, and keeps the top 10.
func AnchorCompanionBrands(v vertical.Vertical, t dataset.ItemTable) Result[LabelValues] {
	title := anchorTitle(v, "Top 10 Brands Purchased with %s")
	if msg := requireItems(t, dataset.ColInteractionID, dataset.ColBrand, dataset.ColQuantity); msg != "" {
		return noData[LabelValues](title, msg)
	}
	ids := anchorTransactions(v, t.Rows)
	if len(ids) == 0 {
		return noData[LabelValues](title, anchorEmpty(v))
	}
	units := sumUnits(t.Rows, func(it *dataset.Item) string {
		if !ids[it.TransactionID] || v.IsAnchor(*it) {
			return ""
		}
		return it.Brand
	})
	if len(units) == 0 {
		return noData[LabelValues](title, "No companion brands found")
	}
	return withData(title, topByValue(units, companionBrandLimit))
}
