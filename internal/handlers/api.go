package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scout-dashboard/internal/analytics"
	"scout-dashboard/internal/assistant"
	"scout-dashboard/internal/errors"
	"scout-dashboard/internal/filter"
	"scout-dashboard/internal/observability"
	"scout-dashboard/internal/services"
)

const (
	maxBodyBytes = 64 << 10
	chartCache   = "private, max-age=300"
)

type APIHandlers struct {
	dashboard *services.Dashboard
	console   *assistant.Console
	assistant *assistant.Assistant
	logger    *slog.Logger
}

// NewAPIHandlers wires the JSON endpoints. console and asst may be nil when
// no database or API key is configured; their endpoints then answer 503.
func NewAPIHandlers(dashboard *services.Dashboard, console *assistant.Console, asst *assistant.Assistant, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		console:   console,
		assistant: asst,
		logger:    logger,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) HandleCharts(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, analytics.Catalog(), map[string]string{
		"Cache-Control": "public, max-age=3600",
	})
}

func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	summary, err := h.dashboard.Chart(id, filter.ParseCriteria(r.URL.Query()))
	if err != nil {
		h.fail(w, r, appError(err))
		return
	}

	errors.WriteSuccessWithHeaders(w, summary, map[string]string{
		"Cache-Control": chartCache,
	})
}

func (h *APIHandlers) HandleTab(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.dashboard.Tab(r.Context(), chi.URLParam(r, "tab"), filter.ParseCriteria(r.URL.Query()))
	if err != nil {
		h.fail(w, r, appError(err))
		return
	}

	errors.WriteSuccessWithHeaders(w, summaries, map[string]string{
		"Cache-Control": chartCache,
	})
}

func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.dashboard.FilterOptions(), map[string]string{
		"Cache-Control": chartCache,
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.dashboard.Snapshot()

	healthData := map[string]any{
		"status":       "healthy",
		"timestamp":    time.Now().Format(time.RFC3339),
		"version":      "1.0.0",
		"transactions": snap.Transactions.Len(),
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.dashboard.Stats()
	stats["console"] = h.console != nil
	stats["assistant"] = h.assistant != nil && h.assistant.Configured()

	errors.WriteSuccess(w, stats)
}

type sqlRequest struct {
	SQL string `json:"sql"`
}

func (h *APIHandlers) HandleSQL(w http.ResponseWriter, r *http.Request) {
	if h.console == nil {
		h.fail(w, r, errNoConsole())
		return
	}

	var req sqlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.console.Run(r.Context(), req.SQL)
	if err != nil {
		h.fail(w, r, appError(err))
		return
	}

	errors.WriteSuccessWithHeaders(w, res, map[string]string{"Cache-Control": "no-store"})
}

func (h *APIHandlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if h.console == nil {
		h.fail(w, r, errNoConsole())
		return
	}

	res, err := h.console.Preview(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		h.fail(w, r, appError(err))
		return
	}

	errors.WriteSuccessWithHeaders(w, res, map[string]string{"Cache-Control": "no-store"})
}

type askRequest struct {
	Question string `json:"question"`
}

// HandleAsk answers with the generated SQL in the error details when
// validation or execution of that SQL fails.
func (h *APIHandlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		h.fail(w, r, errNoAssistant())
		return
	}

	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	ans, err := h.assistant.Ask(r.Context(), req.Question)
	if err != nil {
		appErr := appError(err)
		if ans.SQL != "" {
			appErr = appErr.WithDetails(ans.SQL)
		}
		h.fail(w, r, appErr)
		return
	}

	errors.WriteSuccessWithHeaders(w, ans, map[string]string{"Cache-Control": "no-store"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeBadRequest, "Invalid JSON request body")
	}
	return nil
}
