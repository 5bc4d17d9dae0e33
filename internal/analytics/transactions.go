package analytics

import (
	"cmp"
	"slices"
	"strconv"

	"scout-dashboard/internal/dataset"
)

// GroupStat is the transaction count and mean basket of one group.
type GroupStat struct {
	Label        string  `json:"label"`
	Transactions int     `json:"transactions"`
	AvgBasket    float64 `json:"avg_basket"`
}

type GroupStats []GroupStat

func (g GroupStats) table() Table {
	t := Table{Columns: []string{"Group", "Transactions", "Average Spend"}}
	for _, s := range g {
		t.Rows = append(t.Rows, []string{s.Label, formatCount(s.Transactions), FormatPeso(s.AvgBasket)})
	}
	return t
}

// groupBaskets accumulates basket totals per key. Rows without a key or a
// basket total are skipped.
func groupBaskets(rows []dataset.Transaction, key func(*dataset.Transaction) string) map[string]*meanAcc {
	groups := make(map[string]*meanAcc)
	for i := range rows {
		r := &rows[i]
		k := key(r)
		if k == "" || !r.BasketTotal.Valid {
			continue
		}
		acc := groups[k]
		if acc == nil {
			acc = &meanAcc{}
			groups[k] = acc
		}
		acc.add(r.BasketTotal.Float64)
	}
	return groups
}

func groupStats(groups map[string]*meanAcc, labels []string) GroupStats {
	out := make(GroupStats, 0, len(labels))
	for _, l := range labels {
		if acc, ok := groups[l]; ok {
			out = append(out, GroupStat{Label: l, Transactions: acc.n, AvgBasket: acc.mean()})
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func weekdayName(r *dataset.Transaction) string {
	if r.Timestamp.IsZero() {
		return ""
	}
	return r.Timestamp.Weekday().String()
}

func dayType(r *dataset.Transaction) string {
	if r.Timestamp.IsZero() {
		return ""
	}
	return dataset.DayType(r.Timestamp)
}

const (
	titleGender        = "Gender Demographics: Transactions & Average Spend"
	titleGenderMonthly = "Month-on-Month Transactions by Gender"
	titleAge           = "Age Group Demographics: Transactions & Average Spend"
	titlePayment       = "Payment Method: Transactions & Average Spend"
	titleDayType       = "Weekday vs Weekend: Transactions & Average Spend"
	titleTimeOfDay     = "Time of Day: Transactions & Average Spend"
	titleDayOfWeek     = "Day of Week: Transactions & Average Spend"
	titleGenderTime    = "Gender Distribution by Time of Day"
	titlePayday        = "Average Daily Sales: Payday vs Petsa de Peligro"
	titleBasketBands   = "Basket Value Distribution"
)

// GenderSummary counts transactions and averages basket totals per gender.
func GenderSummary(t dataset.TransactionTable) Result[GroupStats] {
	if msg := requireTxn(t, dataset.ColGender, dataset.ColBasketTotal); msg != "" {
		return noData[GroupStats](titleGender, msg)
	}
	groups := groupBaskets(t.Rows, func(r *dataset.Transaction) string { return r.Gender })
	if len(groups) == 0 {
		return noData[GroupStats](titleGender, "")
	}
	return withData(titleGender, groupStats(groups, sortedKeys(groups)))
}

// MonthlyCount is the transaction count of one gender in one month.
type MonthlyCount struct {
	Month        string `json:"month"`
	Gender       string `json:"gender"`
	Transactions int    `json:"transactions"`
}

type MonthlyCounts []MonthlyCount

func (m MonthlyCounts) table() Table {
	t := Table{Columns: []string{"Month", "Gender", "Transactions"}}
	for _, c := range m {
		t.Rows = append(t.Rows, []string{c.Month, c.Gender, formatCount(c.Transactions)})
	}
	return t
}

// GenderMonthly counts transactions per month and gender, ordered by month
// then gender.
func GenderMonthly(t dataset.TransactionTable) Result[MonthlyCounts] {
	if msg := requireTxn(t, dataset.ColTxnMonth, dataset.ColGender); msg != "" {
		return noData[MonthlyCounts](titleGenderMonthly, msg)
	}
	type key struct{ month, gender string }
	counts := make(map[key]int)
	for _, r := range t.Rows {
		if r.Month.IsZero() || r.Gender == "" {
			continue
		}
		counts[key{r.Month.Format("2006-01"), r.Gender}]++
	}
	if len(counts) == 0 {
		return noData[MonthlyCounts](titleGenderMonthly, "")
	}
	out := make(MonthlyCounts, 0, len(counts))
	for k, n := range counts {
		out = append(out, MonthlyCount{Month: k.month, Gender: k.gender, Transactions: n})
	}
	slices.SortFunc(out, func(a, b MonthlyCount) int {
		return cmp.Or(cmp.Compare(a.Month, b.Month), cmp.Compare(a.Gender, b.Gender))
	})
	return withData(titleGenderMonthly, out)
}

// AgeBucketSummary is GenderSummary over age buckets, in age order.
func AgeBucketSummary(t dataset.TransactionTable) Result[GroupStats] {
	if msg := requireTxn(t, dataset.ColAgeBucket, dataset.ColBasketTotal); msg != "" {
		return noData[GroupStats](titleAge, msg)
	}
	groups := groupBaskets(t.Rows, func(r *dataset.Transaction) string { return r.AgeBucket })
	if len(groups) == 0 {
		return noData[GroupStats](titleAge, "")
	}
	return withData(titleAge, groupStats(groups, dataset.SortByOrder(sortedKeys(groups), dataset.AgeBuckets)))
}

// PaymentSummary is GenderSummary over payment methods, most used first.
func PaymentSummary(t dataset.TransactionTable) Result[GroupStats] {
	if msg := requireTxn(t, dataset.ColPaymentMethod, dataset.ColBasketTotal); msg != "" {
		return noData[GroupStats](titlePayment, msg)
	}
	groups := groupBaskets(t.Rows, func(r *dataset.Transaction) string { return r.PaymentMethod })
	if len(groups) == 0 {
		return noData[GroupStats](titlePayment, "")
	}
	stats := groupStats(groups, sortedKeys(groups))
	slices.SortStableFunc(stats, func(a, b GroupStat) int {
		return cmp.Compare(b.Transactions, a.Transactions)
	})
	return withData(titlePayment, stats)
}

// DayTypeSummary compares weekdays with weekends.
func DayTypeSummary(t dataset.TransactionTable) Result[GroupStats] {
	if msg := requireTxn(t, dataset.ColTransactionDate, dataset.ColBasketTotal); msg != "" {
		return noData[GroupStats](titleDayType, msg)
	}
	groups := groupBaskets(t.Rows, dayType)
	if len(groups) == 0 {
		return noData[GroupStats](titleDayType, "")
	}
	return withData(titleDayType, groupStats(groups, []string{dataset.DayTypeWeekday, dataset.DayTypeWeekend}))
}

// TimeOfDayRow splits a segment's transactions by day type and averages
// basket totals across both.
type TimeOfDayRow struct {
	Segment   string  `json:"segment"`
	Weekday   int     `json:"weekday"`
	Weekend   int     `json:"weekend"`
	AvgBasket float64 `json:"avg_basket"`
}

type TimeOfDayRows []TimeOfDayRow

func (rows TimeOfDayRows) table() Table {
	t := Table{Columns: []string{"Time of Day", "Weekday Transactions", "Weekend Transactions", "Average Spend"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Segment, formatCount(r.Weekday), formatCount(r.Weekend), FormatPeso(r.AvgBasket)})
	}
	return t
}

func TimeOfDaySummary(t dataset.TransactionTable) Result[TimeOfDayRows] {
	if msg := requireTxn(t, dataset.ColTransactionDate, dataset.ColTimeSegment, dataset.ColBasketTotal); msg != "" {
		return noData[TimeOfDayRows](titleTimeOfDay, msg)
	}
	rows := make(map[string]*TimeOfDayRow)
	means := make(map[string]*meanAcc)
	for i := range t.Rows {
		r := &t.Rows[i]
		dt := dayType(r)
		if r.TimeSegment == "" || dt == "" || !r.BasketTotal.Valid {
			continue
		}
		row := rows[r.TimeSegment]
		if row == nil {
			row = &TimeOfDayRow{Segment: r.TimeSegment}
			rows[r.TimeSegment] = row
			means[r.TimeSegment] = &meanAcc{}
		}
		if dt == dataset.DayTypeWeekend {
			row.Weekend++
		} else {
			row.Weekday++
		}
		means[r.TimeSegment].add(r.BasketTotal.Float64)
	}
	if len(rows) == 0 {
		return noData[TimeOfDayRows](titleTimeOfDay, "")
	}
	out := make(TimeOfDayRows, 0, len(rows))
	for _, seg := range dataset.SortSegments(sortedKeys(rows)) {
		row := *rows[seg]
		row.AvgBasket = means[seg].mean()
		out = append(out, row)
	}
	return withData(titleTimeOfDay, out)
}

// DayOfWeekSummary groups by the timestamp's weekday, Monday first.
func DayOfWeekSummary(t dataset.TransactionTable) Result[GroupStats] {
	if msg := requireTxn(t, dataset.ColTransactionDate, dataset.ColBasketTotal); msg != "" {
		return noData[GroupStats](titleDayOfWeek, msg)
	}
	groups := groupBaskets(t.Rows, weekdayName)
	if len(groups) == 0 {
		return noData[GroupStats](titleDayOfWeek, "")
	}
	return withData(titleDayOfWeek, groupStats(groups, dataset.WeekdaysMondayFirst))
}

// GenderShare is the female and male percentage of a group's total. Other
// genders count toward Total, so the two shares may sum below 100.
type GenderShare struct {
	Label  string  `json:"label"`
	Female float64 `json:"female_pct"`
	Male   float64 `json:"male_pct"`
	Total  float64 `json:"total"`
}

type GenderShares []GenderShare

func (g GenderShares) table() Table {
	t := Table{Columns: []string{"Group", "Female", "Male", "Total"}}
	for _, s := range g {
		t.Rows = append(t.Rows, []string{s.Label, formatPct(s.Female), formatPct(s.Male), formatUnits(s.Total)})
	}
	return t
}

type genderTally struct {
	female, male, total float64
}

func (g *genderTally) add(gender string, v float64) {
	switch gender {
	case "Female":
		g.female += v
	case "Male":
		g.male += v
	}
	g.total += v
}

func (g genderTally) share(label string) GenderShare {
	return GenderShare{Label: label, Female: pct(g.female, g.total), Male: pct(g.male, g.total), Total: g.total}
}

// GenderByTimeOfDay gives the gender split of each segment's transactions.
func GenderByTimeOfDay(t dataset.TransactionTable) Result[GenderShares] {
	if msg := requireTxn(t, dataset.ColTimeSegment, dataset.ColGender); msg != "" {
		return noData[GenderShares](titleGenderTime, msg)
	}
	tallies := make(map[string]*genderTally)
	for _, r := range t.Rows {
		if r.TimeSegment == "" || r.Gender == "" {
			continue
		}
		g := tallies[r.TimeSegment]
		if g == nil {
			g = &genderTally{}
			tallies[r.TimeSegment] = g
		}
		g.add(r.Gender, 1)
	}
	if len(tallies) == 0 {
		return noData[GenderShares](titleGenderTime, "")
	}
	out := make(GenderShares, 0, len(tallies))
	for _, seg := range dataset.SortSegments(sortedKeys(tallies)) {
		out = append(out, tallies[seg].share(seg))
	}
	return withData(titleGenderTime, out)
}

// DaySales is the mean basket of one day of the month and its window.
type DaySales struct {
	Day          int     `json:"day"`
	Transactions int     `json:"transactions"`
	AvgBasket    float64 `json:"avg_basket"`
	Window       string  `json:"window"`
}

type DailySales []DaySales

func (d DailySales) table() Table {
	t := Table{Columns: []string{"Day", "Transactions", "Average Sales", "Window"}}
	for _, s := range d {
		t.Rows = append(t.Rows, []string{strconv.Itoa(s.Day), formatCount(s.Transactions), FormatPeso(s.AvgBasket), s.Window})
	}
	return t
}

// DailySalesPayday averages basket totals by day of month and labels each
// day with its payday window.
func DailySalesPayday(t dataset.TransactionTable) Result[DailySales] {
	if msg := requireTxn(t, dataset.ColTransactionDate, dataset.ColBasketTotal); msg != "" {
		return noData[DailySales](titlePayday, msg)
	}
	var days [32]meanAcc
	for _, r := range t.Rows {
		if r.Timestamp.IsZero() || !r.BasketTotal.Valid {
			continue
		}
		days[r.Timestamp.Day()].add(r.BasketTotal.Float64)
	}
	var out DailySales
	for d := 1; d <= 31; d++ {
		if days[d].n == 0 {
			continue
		}
		out = append(out, DaySales{Day: d, Transactions: days[d].n, AvgBasket: days[d].mean(), Window: DayWindow(d)})
	}
	if len(out) == 0 {
		return noData[DailySales](titlePayday, "")
	}
	return withData(titlePayday, out)
}

// BandStat is one basket band's count, mean and share of all transactions.
type BandStat struct {
	Band         string  `json:"band"`
	Transactions int     `json:"transactions"`
	AvgBasket    float64 `json:"avg_basket"`
	Share        float64 `json:"share_pct"`
}

type BandStats []BandStat

func (b BandStats) table() Table {
	t := Table{Columns: []string{"Basket Band", "Transactions", "Average Spend", "Share"}}
	for _, s := range b {
		t.Rows = append(t.Rows, []string{s.Band, formatCount(s.Transactions), FormatPeso(s.AvgBasket), formatPct(s.Share)})
	}
	return t
}

// BasketBands distributes transactions over basket bands. Callers pass the
// outlier-inclusive table so that the low bands are populated.
func BasketBands(t dataset.TransactionTable) Result[BandStats] {
	const msg = "No basket data available"
	if m := requireTxn(t, dataset.ColBasketTotal); m != "" {
		if m == DefaultMessage {
			m = msg
		}
		return noData[BandStats](titleBasketBands, m)
	}
	groups := groupBaskets(t.Rows, func(r *dataset.Transaction) string {
		return BasketBand(r.BasketTotal.Float64)
	})
	total := 0
	for _, acc := range groups {
		total += acc.n
	}
	if total == 0 {
		return noData[BandStats](titleBasketBands, msg)
	}
	out := make(BandStats, 0, len(groups))
	for _, band := range BasketBandOrder {
		if acc, ok := groups[band]; ok {
			out = append(out, BandStat{
				Band:         band,
				Transactions: acc.n,
				AvgBasket:    acc.mean(),
				Share:        pct(float64(acc.n), float64(total)),
			})
		}
	}
	return withData(titleBasketBands, out)
}
