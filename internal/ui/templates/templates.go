// Package templates renders the dashboard's HTML as templ components. The
// markup lives in embedded html/template files.
package templates

import (
	"context"
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/a-h/templ"

	"scout-dashboard/internal/analytics"
	"scout-dashboard/internal/assistant"
	"scout-dashboard/internal/services"
)

// AppTitle is the page title and header text.
const AppTitle = "Project Scout Analytics Dashboard"

//go:embed html/*.html
var files embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"chartKey": ChartKey,
	"join":     strings.Join,
}).ParseFS(files, "html/*.html"))

// ChartKey turns a chart ID into a name usable as a signal key and element
// id suffix.
func ChartKey(id string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(id)
}

// TabID is the element id of a tab's chart panel.
func TabID(tab string) string { return "tab-" + tab }

// ChartID is the element id of a chart card.
func ChartID(chartID string) string { return "chart-" + ChartKey(chartID) }

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

type LoginData struct {
	Title    string
	Next     string
	Username string
	Error    string
}

func Login(data LoginData) templ.Component {
	if data.Title == "" {
		data.Title = AppTitle
	}
	return render("login", data)
}

type TabLink struct {
	ID    string
	Label string
}

// DashboardData feeds the page shell. Charts are filled in over SSE.
type DashboardData struct {
	Title     string
	User      string
	ActiveTab string
	Tabs      []TabLink
	Options   services.FilterOptions
	Tables    []string
	Assistant bool
}

var tabLabels = map[string]string{
	analytics.TabGeneral: "Demographics & Categories",
	analytics.TabTobacco: "Tobacco",
	analytics.TabLaundry: "Laundry",
}

// Tabs lists the chart tabs in display order.
func Tabs() []TabLink {
	out := make([]TabLink, 0, len(analytics.Tabs))
	for _, t := range analytics.Tabs {
		out = append(out, TabLink{ID: t, Label: tabLabels[t]})
	}
	return out
}

func Dashboard(data DashboardData) templ.Component {
	if data.Title == "" {
		data.Title = AppTitle
	}
	if data.Tabs == nil {
		data.Tabs = Tabs()
	}
	if data.ActiveTab == "" {
		data.ActiveTab = analytics.TabGeneral
	}
	return render("dashboard", data)
}

type chartData struct {
	analytics.Summary
	ElementID string
}

// Chart is one chart card: the title plus its table rendering, or the
// no-data message.
func Chart(s analytics.Summary) templ.Component {
	return render("chart", chartData{Summary: s, ElementID: ChartID(s.ID)})
}

type tabData struct {
	ElementID string
	Charts    []chartData
}

// TabPanel renders every chart of a tab into its panel.
func TabPanel(tab string, summaries []analytics.Summary) templ.Component {
	data := tabData{ElementID: TabID(tab), Charts: make([]chartData, 0, len(summaries))}
	for _, s := range summaries {
		data.Charts = append(data.Charts, chartData{Summary: s, ElementID: ChartID(s.ID)})
	}
	return render("tab", data)
}

// QueryView is the console or assistant result panel.
type QueryView struct {
	ElementID string
	Question  string
	SQL       string
	Result    *assistant.QueryResult
	Error     string
}

const (
	ConsoleResultsID   = "sql-results"
	AssistantResultsID = "ask-results"
)

func QueryResults(v QueryView) templ.Component {
	if v.ElementID == "" {
		v.ElementID = ConsoleResultsID
	}
	return render("results", v)
}
