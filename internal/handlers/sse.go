package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"scout-dashboard/internal/analytics"
	"scout-dashboard/internal/assistant"
	"scout-dashboard/internal/filter"
	"scout-dashboard/internal/observability"
	"scout-dashboard/internal/services"
	"scout-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	dashboard *services.Dashboard
	console   *assistant.Console
	assistant *assistant.Assistant
	logger    *slog.Logger
}

func NewSSEHandlers(dashboard *services.Dashboard, console *assistant.Console, asst *assistant.Assistant, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		console:   console,
		assistant: asst,
		logger:    logger,
	}
}

// filterSignals mirrors the filter controls bound on the dashboard page.
type filterSignals struct {
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Gender   []string `json:"gender"`
	Age      []string `json:"age"`
	Payment  []string `json:"payment"`
	Month    []string `json:"month"`
	DayType  string   `json:"daytype"`
	Category []string `json:"category"`
}

func (s filterSignals) criteria() filter.Criteria {
	c := filter.Criteria{
		Genders:        s.Gender,
		AgeBuckets:     s.Age,
		PaymentMethods: s.Payment,
		MonthYears:     s.Month,
		WeekdayWeekend: s.DayType,
		Categories:     s.Category,
	}
	if s.Start != "" && s.End != "" {
		c.DateRange = &filter.DateRange{Start: s.Start, End: s.End}
	}
	return c.Normalize()
}

// readCriteria takes the criteria from datastar signals, or from plain query
// parameters when no filter signal is set. It must run before the SSE
// generator is created.
func readCriteria(r *http.Request) (filter.Criteria, error) {
	var signals filterSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return filter.Criteria{}, fmt.Errorf("read signals: %w", err)
	}
	c := signals.criteria()
	if c.IsZero() {
		c = filter.ParseCriteria(r.URL.Query())
	}
	return c, nil
}

func (h *SSEHandlers) log(r *http.Request) *slog.Logger {
	return observability.LoggerFrom(r.Context(), h.logger)
}

// patchCharts sends the summaries' data as signals keyed by chart.
func (h *SSEHandlers) patchCharts(r *http.Request, sse *datastar.ServerSentEventGenerator, summaries ...analytics.Summary) {
	charts := make(map[string]analytics.Summary, len(summaries))
	for _, s := range summaries {
		charts[templates.ChartKey(s.ID)] = s
	}
	jsonData, err := json.Marshal(map[string]any{"charts": charts})
	if err != nil {
		h.log(r).Error("marshal chart signals", "error", err)
		return
	}
	if err := sse.PatchSignals(jsonData); err != nil {
		h.log(r).Debug("patch chart signals", "error", err)
	}
}

func (h *SSEHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	c, err := readCriteria(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		_ = sse.ConsoleError(err)
		return
	}

	summary, err := h.dashboard.Chart(chi.URLParam(r, "id"), c)
	if err != nil {
		_ = sse.ConsoleError(err)
		return
	}

	if err := sse.PatchElementTempl(templates.Chart(summary)); err != nil {
		h.log(r).Error("render chart", "chart", summary.ID, "error", err)
		_ = sse.ConsoleError(err)
		return
	}
	h.patchCharts(r, sse, summary)
}

// HandleTab recomputes every chart of a tab and replaces its panel.
func (h *SSEHandlers) HandleTab(w http.ResponseWriter, r *http.Request) {
	tab := chi.URLParam(r, "tab")
	c, err := readCriteria(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		_ = sse.ConsoleError(err)
		return
	}

	summaries, err := h.dashboard.Tab(r.Context(), tab, c)
	if err != nil {
		_ = sse.ConsoleError(err)
		return
	}

	if err := sse.PatchElementTempl(templates.TabPanel(tab, summaries)); err != nil {
		h.log(r).Error("render tab", "tab", tab, "error", err)
		_ = sse.ConsoleError(err)
		return
	}
	h.patchCharts(r, sse, summaries...)
}

type consoleSignals struct {
	SQL      string `json:"sql"`
	Question string `json:"question"`
}

func (h *SSEHandlers) patchResults(r *http.Request, sse *datastar.ServerSentEventGenerator, view templates.QueryView) {
	if err := sse.PatchElementTempl(templates.QueryResults(view)); err != nil {
		h.log(r).Error("render query results", "error", err)
		_ = sse.ConsoleError(err)
	}
}

func (h *SSEHandlers) HandleSQL(w http.ResponseWriter, r *http.Request) {
	var signals consoleSignals
	readErr := datastar.ReadSignals(r, &signals)
	sse := datastar.NewSSE(w, r)

	view := templates.QueryView{ElementID: templates.ConsoleResultsID, SQL: signals.SQL}
	switch {
	case readErr != nil:
		view.Error = "Failed to read signals: " + readErr.Error()
	case h.console == nil:
		view.Error = errNoConsole().Message
	default:
		res, err := h.console.Run(r.Context(), signals.SQL)
		if err != nil {
			view.Error = appError(err).Message
		} else {
			view.Result = &res
		}
	}
	h.patchResults(r, sse, view)
}

func (h *SSEHandlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	view := templates.QueryView{ElementID: templates.ConsoleResultsID}
	if h.console == nil {
		view.Error = errNoConsole().Message
		h.patchResults(r, sse, view)
		return
	}

	res, err := h.console.Preview(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		view.Error = appError(err).Message
	} else {
		view.SQL = res.SQL
		view.Result = &res
	}
	h.patchResults(r, sse, view)
}

func (h *SSEHandlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var signals consoleSignals
	readErr := datastar.ReadSignals(r, &signals)
	sse := datastar.NewSSE(w, r)

	view := templates.QueryView{ElementID: templates.AssistantResultsID, Question: signals.Question}
	switch {
	case readErr != nil:
		view.Error = "Failed to read signals: " + readErr.Error()
	case h.assistant == nil:
		view.Error = errNoAssistant().Message
	default:
		ans, err := h.assistant.Ask(r.Context(), signals.Question)
		view.SQL = ans.SQL
		view.Result = ans.Result
		if err != nil {
			view.Error = appError(err).Message
		}
	}
	h.patchResults(r, sse, view)
}
