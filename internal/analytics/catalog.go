package analytics

import (
	"slices"

	"scout-dashboard/internal/dataset"
	"scout-dashboard/internal/filter"
	"scout-dashboard/internal/vertical"
)

// Tabs, in display order.
const (
	TabGeneral = "general"
	TabTobacco = "tobacco"
	TabLaundry = "laundry"
)

var Tabs = []string{TabGeneral, TabTobacco, TabLaundry}

// Input is what a chart needs: the base snapshot, an engine built over its
// items, and the user's criteria.
type Input struct {
	Snapshot dataset.Snapshot
	Engine   *filter.Engine
	Criteria filter.Criteria
}

func (in Input) transactions(opts ...filter.Option) dataset.TransactionTable {
	return in.Engine.Transactions(in.Snapshot.Transactions, in.Criteria, opts...)
}

func (in Input) items() dataset.ItemTable {
	return in.Engine.Items(in.Snapshot.Items, in.Criteria)
}

// Chart is one catalog entry.
type Chart struct {
	ID    string `json:"id"`
	Tab   string `json:"tab"`
	Title string `json:"title"`

	run func(Input) Summary
}

// Run filters the snapshot and computes the chart.
func (c Chart) Run(in Input) Summary {
	return c.run(in)
}

func txnChart[T tabular](id, title string, fn func(dataset.TransactionTable) Result[T], opts ...filter.Option) Chart {
	return Chart{ID: TabGeneral + "." + id, Tab: TabGeneral, Title: title, run: func(in Input) Summary {
		return summarize(TabGeneral+"."+id, fn(in.transactions(opts...)))
	}}
}

func itemChart[T tabular](id, title string, fn func(dataset.ItemTable) Result[T]) Chart {
	return Chart{ID: TabGeneral + "." + id, Tab: TabGeneral, Title: title, run: func(in Input) Summary {
		return summarize(TabGeneral+"."+id, fn(in.items()))
	}}
}

func verticalChart[T tabular](v vertical.Vertical, id, title string, fn func(vertical.Vertical, dataset.ItemTable) Result[T]) Chart {
	full := v.Name + "." + id
	return Chart{ID: full, Tab: v.Name, Title: title, run: func(in Input) Summary {
		return summarize(full, fn(v, in.items()))
	}}
}

func verticalCharts(v vertical.Vertical) []Chart {
	return []Chart{
		verticalChart(v, "time-of-day", verticalTitle(v, "Transactions & Average Quantity by Time of Day"), VerticalTimeOfDay),
		verticalChart(v, "day-of-week", verticalTitle(v, "Transactions & Average Quantity by Day of Week"), VerticalDayOfWeek),
		verticalChart(v, "brands", verticalTitle(v, "Top Brands"), VerticalBrands),
		verticalChart(v, "brands-day", verticalTitle(v, "Brand Units by Day of Week"), VerticalBrandsByDay),
		verticalChart(v, "gender", verticalTitle(v, "Purchases by Gender"), VerticalGenderShare),
		verticalChart(v, "age", verticalTitle(v, "Purchases by Age Group"), VerticalAgeShare),
		verticalChart(v, "gender-brand", verticalTitle(v, "Gender Split by Brand"), VerticalGenderByBrand),
		verticalChart(v, "anchor-basket", anchorTitle(v, "Number of Items Purchased with %s"), AnchorBasketSize),
		verticalChart(v, "anchor-categories", anchorTitle(v, "Categories Purchased with %s"), AnchorCompanionCategories),
		verticalChart(v, "anchor-brands", anchorTitle(v, "Top 10 Brands Purchased with %s"), AnchorCompanionBrands),
	}
}

var catalog = func() []Chart {
	charts := []Chart{
		txnChart("gender", titleGender, GenderSummary),
		txnChart("gender-monthly", titleGenderMonthly, GenderMonthly),
		txnChart("age", titleAge, AgeBucketSummary),
		txnChart("payment", titlePayment, PaymentSummary),
		txnChart("daytype", titleDayType, DayTypeSummary),
		txnChart("time-of-day", titleTimeOfDay, TimeOfDaySummary),
		txnChart("day-of-week", titleDayOfWeek, DayOfWeekSummary),
		txnChart("gender-time", titleGenderTime, GenderByTimeOfDay),
		txnChart("payday", titlePayday, DailySalesPayday),
		txnChart("basket-bands", titleBasketBands, BasketBands, filter.IncludeOutliers()),
		itemChart("category-performance", titleCategoryPerformance, CategoryPerformance),
		itemChart("category-day", titleCategoryDay, CategoryByDay),
		itemChart("category-gender", titleCategoryGender, CategoryByGender),
		itemChart("category-age", titleCategoryAge, CategoryByAge),
		itemChart("price-tier", titlePriceTier, CategoryByPriceTier),
		itemChart("category-ranking", titleCategoryRanking, CategoryRanking),
		itemChart("top-products", titleTopProducts, TopProductsByTimeOfDay),
		itemChart("bought-together", titleBoughtTogether, ProductsBoughtTogether),
	}
	for _, v := range vertical.All {
		charts = append(charts, verticalCharts(v)...)
	}
	return charts
}()

// Catalog lists every chart in tab order.
func Catalog() []Chart {
	return slices.Clone(catalog)
}

// Lookup finds a chart by ID.
func Lookup(id string) (Chart, bool) {
	i := slices.IndexFunc(catalog, func(c Chart) bool { return c.ID == id })
	if i < 0 {
		return Chart{}, false
	}
	return catalog[i], true
}

// TabCharts lists the charts of one tab, or nil for an unknown tab.
func TabCharts(tab string) []Chart {
	var out []Chart
	for _, c := range catalog {
		if c.Tab == tab {
			out = append(out, c)
		}
	}
	return out
}
