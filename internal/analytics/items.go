package analytics

import (
	"cmp"
	"slices"

	"scout-dashboard/internal/dataset"
)

// Matrix is a dense two-dimensional summary: Values[i][j] belongs to
// Rows[i] and Columns[j].
type Matrix struct {
	Corner  string      `json:"corner"`
	Rows    []string    `json:"rows"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

func (m Matrix) table() Table {
	t := Table{Columns: append([]string{m.Corner}, m.Columns...)}
	for i, r := range m.Rows {
		row := []string{r}
		for _, v := range m.Values[i] {
			row = append(row, formatUnits(v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// cells sums values per (row, column) label pair.
type cells map[[2]string]float64

func (c cells) add(row, col string, v float64) {
	c[[2]string{row, col}] += v
}

func (c cells) matrix(corner string, rows, cols []string) Matrix {
	m := Matrix{Corner: corner, Rows: rows, Columns: cols, Values: make([][]float64, len(rows))}
	for i, r := range rows {
		m.Values[i] = make([]float64, len(cols))
		for j, col := range cols {
			m.Values[i][j] = c[[2]string{r, col}]
		}
	}
	return m
}

func (c cells) rowLabels() []string {
	seen := map[string]bool{}
	for k := range c {
		seen[k[0]] = true
	}
	return sortedKeys(seen)
}

func (c cells) columnLabels() []string {
	seen := map[string]bool{}
	for k := range c {
		seen[k[1]] = true
	}
	return sortedKeys(seen)
}

func itemWeekday(it *dataset.Item) string {
	if it.Timestamp.IsZero() {
		return ""
	}
	return it.Timestamp.Weekday().String()
}

// LabelValue is a single labelled measure.
type LabelValue struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type LabelValues []LabelValue

func (l LabelValues) table() Table {
	t := Table{Columns: []string{"Label", "Units"}}
	for _, v := range l {
		t.Rows = append(t.Rows, []string{v.Label, formatUnits(v.Value)})
	}
	return t
}

// sumUnits sums quantities per key, skipping rows without a key or a
// quantity.
func sumUnits(rows []dataset.Item, key func(*dataset.Item) string) map[string]float64 {
	out := make(map[string]float64)
	for i := range rows {
		it := &rows[i]
		k := key(it)
		if k == "" || !it.Quantity.Valid {
			continue
		}
		out[k] += it.Quantity.Float64
	}
	return out
}

// topByValue orders labels by value descending, ties by label, and keeps
// at most n of them.
func topByValue(values map[string]float64, n int) LabelValues {
	out := make(LabelValues, 0, len(values))
	for k, v := range values {
		out = append(out, LabelValue{Label: k, Value: v})
	}
	slices.SortFunc(out, func(a, b LabelValue) int {
		return cmp.Or(cmp.Compare(b.Value, a.Value), cmp.Compare(a.Label, b.Label))
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func labels(values LabelValues) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Label
	}
	return out
}

const (
	titleCategoryPerformance = "Category Performance: Revenue & Units"
	titleCategoryDay         = "Category Performance by Day of Week"
	titleCategoryGender      = "Gender Distribution by Category"
	titleCategoryAge         = "Age Group Distribution by Category"
	titlePriceTier           = "Category Composition by Price Tier"
	titleCategoryRanking     = "Category Ranking & Strategic Tiers"
	titleTopProducts         = "Top Products by Time of Day"
	titleBoughtTogether      = "Products Frequently Bought Together"

	categoryPerformanceLimit = 15
	topProductsLimit         = 5
	pairLimit                = 20
)

// CategoryStat is one category's units and revenue.
type CategoryStat struct {
	Category string  `json:"category"`
	Units    float64 `json:"units"`
	Revenue  float64 `json:"revenue"`
}

type CategoryStats []CategoryStat

func (c CategoryStats) table() Table {
	t := Table{Columns: []string{"Category", "Units", "Revenue"}}
	for _, s := range c {
		t.Rows = append(t.Rows, []string{s.Category, formatUnits(s.Units), FormatPeso(s.Revenue)})
	}
	return t
}

func categoryTotals(rows []dataset.Item) CategoryStats {
	byCat := make(map[string]*CategoryStat)
	for i := range rows {
		it := &rows[i]
		if it.Category == "" {
			continue
		}
		s := byCat[it.Category]
		if s == nil {
			s = &CategoryStat{Category: it.Category}
			byCat[it.Category] = s
		}
		if it.Quantity.Valid {
			s.Units += it.Quantity.Float64
		}
		if rev, ok := it.Revenue(); ok {
			s.Revenue += rev
		}
	}
	out := make(CategoryStats, 0, len(byCat))
	for _, k := range sortedKeys(byCat) {
		out = append(out, *byCat[k])
	}
	return out
}

// CategoryPerformance ranks categories by revenue, then units, and keeps
// the top 15.
func CategoryPerformance(t dataset.ItemTable) Result[CategoryStats] {
	if msg := requireItems(t, dataset.ColCategory, dataset.ColQuantity); msg != "" {
		return noData[CategoryStats](titleCategoryPerformance, msg)
	}
	stats := categoryTotals(t.Rows)
	if len(stats) == 0 {
		return noData[CategoryStats](titleCategoryPerformance, "No category data available")
	}
	slices.SortStableFunc(stats, func(a, b CategoryStat) int {
		return cmp.Or(cmp.Compare(b.Revenue, a.Revenue), cmp.Compare(b.Units, a.Units))
	})
	if len(stats) > categoryPerformanceLimit {
		stats = stats[:categoryPerformanceLimit]
	}
	return withData(titleCategoryPerformance, stats)
}

// CategoryByDay sums units per category and weekday, Sunday first.
func CategoryByDay(t dataset.ItemTable) Result[Matrix] {
	if msg := requireItems(t, dataset.ColCategory, dataset.ColTransactionDate, dataset.ColQuantity); msg != "" {
		return noData[Matrix](titleCategoryDay, msg)
	}
	c := cells{}
	for i := range t.Rows {
		it := &t.Rows[i]
		day := itemWeekday(it)
		if it.Category == "" || day == "" || !it.Quantity.Valid {
			continue
		}
		c.add(it.Category, day, it.Quantity.Float64)
	}
	if len(c) == 0 {
		return noData[Matrix](titleCategoryDay, "")
	}
	return withData(titleCategoryDay, c.matrix("Category", c.rowLabels(), dataset.WeekdaysSundayFirst))
}

// CategoryByGender gives the gender split of each category's units.
func CategoryByGender(t dataset.ItemTable) Result[GenderShares] {
	if msg := requireItems(t, dataset.ColCategory, dataset.ColGender, dataset.ColQuantity); msg != "" {
		return noData[GenderShares](titleCategoryGender, msg)
	}
	tallies := make(map[string]*genderTally)
	for i := range t.Rows {
		it := &t.Rows[i]
		if it.Category == "" || it.Gender == "" || !it.Quantity.Valid {
			continue
		}
		g := tallies[it.Category]
		if g == nil {
			g = &genderTally{}
			tallies[it.Category] = g
		}
		g.add(it.Gender, it.Quantity.Float64)
	}
	if len(tallies) == 0 {
		return noData[GenderShares](titleCategoryGender, "")
	}
	out := make(GenderShares, 0, len(tallies))
	for _, cat := range sortedKeys(tallies) {
		out = append(out, tallies[cat].share(cat))
	}
	return withData(titleCategoryGender, out)
}

// CategoryByAge sums units per category and age bucket. Every bucket is a
// column, in age order.
func CategoryByAge(t dataset.ItemTable) Result[Matrix] {
	if msg := requireItems(t, dataset.ColCategory, dataset.ColAgeBucket, dataset.ColQuantity); msg != "" {
		return noData[Matrix](titleCategoryAge, msg)
	}
	c := cells{}
	for i := range t.Rows {
		it := &t.Rows[i]
		if it.Category == "" || it.AgeBucket == "" || !it.Quantity.Valid {
			continue
		}
		c.add(it.Category, it.AgeBucket, it.Quantity.Float64)
	}
	if len(c) == 0 {
		return noData[Matrix](titleCategoryAge, "")
	}
	cols := dataset.SortByOrder(append(slices.Clone(dataset.AgeBuckets), c.columnLabels()...), dataset.AgeBuckets)
	return withData(titleCategoryAge, c.matrix("Category", c.rowLabels(), slices.Compact(cols)))
}

// CategoryByPriceTier sums units per price tier and category. Tiers follow
// price order; categories are alphabetical.
func CategoryByPriceTier(t dataset.ItemTable) Result[Matrix] {
	if msg := requireItems(t, dataset.ColCategory, dataset.ColQuantity); msg != "" {
		return noData[Matrix](titlePriceTier, msg)
	}
	if !t.Schema.Has(dataset.ColUnitPrice) && !t.Schema.Has(dataset.ColTotalPrice) {
		return noData[Matrix](titlePriceTier, "No price data available to build price tiers.")
	}
	c := cells{}
	for i := range t.Rows {
		it := &t.Rows[i]
		if it.Category == "" || !it.Quantity.Valid {
			continue
		}
		price, ok := it.PricePerUnit()
		if !ok {
			continue
		}
		tier, ok := PriceTier(price)
		if !ok {
			continue
		}
		c.add(tier, it.Category, it.Quantity.Float64)
	}
	if len(c) == 0 {
		return noData[Matrix](titlePriceTier, "")
	}
	rows := dataset.SortByOrder(c.rowLabels(), PriceTierOrder)
	return withData(titlePriceTier, c.matrix("Price Tier", rows, c.columnLabels()))
}

// RankedCategory is a category's place in the units ranking.
type RankedCategory struct {
	Rank     int     `json:"rank"`
	Category string  `json:"category"`
	Units    float64 `json:"units"`
	Revenue  float64 `json:"revenue"`
	Share    float64 `json:"share_pct"`
	Tier     string  `json:"strategic_tier"`
}

type RankedCategories []RankedCategory

func (r RankedCategories) table() Table {
	t := Table{Columns: []string{"Rank", "Category", "Units", "Revenue", "Share", "Strategic Tier"}}
	for _, c := range r {
		t.Rows = append(t.Rows, []string{
			formatCount(c.Rank), c.Category, formatUnits(c.Units), FormatPeso(c.Revenue), formatPct(c.Share), c.Tier,
		})
	}
	return t
}

// CategoryRanking ranks categories by units sold and labels each with its
// strategic tier.
func CategoryRanking(t dataset.ItemTable) Result[RankedCategories] {
	if msg := requireItems(t, dataset.ColCategory, dataset.ColQuantity); msg != "" {
		return noData[RankedCategories](titleCategoryRanking, msg)
	}
	stats := categoryTotals(t.Rows)
	if len(stats) == 0 {
		return noData[RankedCategories](titleCategoryRanking, "No data available for ranking.")
	}
	slices.SortStableFunc(stats, func(a, b CategoryStat) int { return cmp.Compare(b.Units, a.Units) })

	var total float64
	for _, s := range stats {
		total += s.Units
	}
	out := make(RankedCategories, len(stats))
	for i, s := range stats {
		share := pct(s.Units, total)
		out[i] = RankedCategory{
			Rank:     i + 1,
			Category: s.Category,
			Units:    s.Units,
			Revenue:  s.Revenue,
			Share:    share,
			Tier:     StrategicTier(i+1, share, s.Revenue),
		}
	}
	return withData(titleCategoryRanking, out)
}

// SegmentProducts is the best-selling products of one time segment.
type SegmentProducts struct {
	Segment  string      `json:"segment"`
	Products LabelValues `json:"products"`
}

type SegmentProductsList []SegmentProducts

func (s SegmentProductsList) table() Table {
	t := Table{Columns: []string{"Time of Day", "Product", "Units"}}
	for _, seg := range s {
		for _, p := range seg.Products {
			t.Rows = append(t.Rows, []string{seg.Segment, p.Label, formatUnits(p.Value)})
		}
	}
	return t
}

// TopProductsByTimeOfDay lists the five best-selling products by units in
// each time segment, in day order. Segments without sales are left out.
func TopProductsByTimeOfDay(t dataset.ItemTable) Result[SegmentProductsList] {
	if msg := requireItems(t, dataset.ColTimeSegment, dataset.ColProduct, dataset.ColQuantity); msg != "" {
		return noData[SegmentProductsList](titleTopProducts, msg)
	}
	bySegment := make([]map[string]float64, len(dataset.TimeSegments))
	for i := range t.Rows {
		it := &t.Rows[i]
		seg := dataset.SegmentRank(it.TimeSegment)
		if seg >= len(dataset.TimeSegments) || it.Product == "" || !it.Quantity.Valid {
			continue
		}
		if bySegment[seg] == nil {
			bySegment[seg] = make(map[string]float64)
		}
		bySegment[seg][it.Product] += it.Quantity.Float64
	}
	var out SegmentProductsList
	for i, units := range bySegment {
		if len(units) == 0 {
			continue
		}
		out = append(out, SegmentProducts{Segment: dataset.TimeSegments[i], Products: topByValue(units, topProductsLimit)})
	}
	if len(out) == 0 {
		return noData[SegmentProductsList](titleTopProducts, "")
	}
	return withData(titleTopProducts, out)
}

// PairCount is how many transactions contained both products.
type PairCount struct {
	Pair   string `json:"pair"`
	First  string `json:"first"`
	Second string `json:"second"`
	Count  int    `json:"count"`
}

type PairCounts []PairCount

func (p PairCounts) table() Table {
	t := Table{Columns: []string{"Product Pair", "Frequency"}}
	for _, c := range p {
		t.Rows = append(t.Rows, []string{c.Pair, formatCount(c.Count)})
	}
	return t
}

// ProductsBoughtTogether counts unordered pairs of distinct product names
// per transaction and returns the 20 most frequent. Each pair counts at
// most once per transaction. The cost is quadratic in a basket's distinct
// products.
func ProductsBoughtTogether(t dataset.ItemTable) Result[PairCounts] {
	if msg := requireItems(t, dataset.ColInteractionID, dataset.ColProduct); msg != "" {
		return noData[PairCounts](titleBoughtTogether, "No data available for products bought together")
	}
	counts := CoOccurrence(t.Rows)
	if len(counts) == 0 {
		return noData[PairCounts](titleBoughtTogether, "No product pairs found (transactions need at least 2 products)")
	}
	out := make(PairCounts, 0, len(counts))
	for pair, n := range counts {
		out = append(out, PairCount{Pair: pair[0] + " & " + pair[1], First: pair[0], Second: pair[1], Count: n})
	}
	slices.SortFunc(out, func(a, b PairCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Pair, b.Pair))
	})
	if len(out) > pairLimit {
		out = out[:pairLimit]
	}
	return withData(titleBoughtTogether, out)
}

// CoOccurrence counts, for every unordered pair of distinct product names,
// the transactions containing both. Keys are ordered so that key[0] < key[1].
func CoOccurrence(rows []dataset.Item) map[[2]string]int {
	baskets := make(map[string][]string)
	var order []string
	for i := range rows {
		it := &rows[i]
		if it.Product == "" {
			continue
		}
		b, seen := baskets[it.TransactionID]
		if !seen {
			order = append(order, it.TransactionID)
		}
		if !slices.Contains(b, it.Product) {
			baskets[it.TransactionID] = append(b, it.Product)
		}
	}

	counts := make(map[[2]string]int)
	for _, id := range order {
		products := baskets[id]
		if len(products) < 2 {
			continue
		}
		slices.Sort(products)
		for i := 0; i < len(products); i++ {
			for j := i + 1; j < len(products); j++ {
				counts[[2]string{products[i], products[j]}]++
			}
		}
	}
	return counts
}
