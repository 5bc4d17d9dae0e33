package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"scout-dashboard/internal/errors"
	"scout-dashboard/internal/observability"
	"scout-dashboard/internal/services"
)

// AdminHandlers operate on the loaded snapshot.
type AdminHandlers struct {
	dashboard *services.Dashboard
	loader    services.Loader
	timeout   time.Duration
	logger    *slog.Logger
}

func NewAdminHandlers(dashboard *services.Dashboard, loader services.Loader, timeout time.Duration, logger *slog.Logger) *AdminHandlers {
	return &AdminHandlers{
		dashboard: dashboard,
		loader:    loader,
		timeout:   timeout,
		logger:    logger,
	}
}

// HandleReload re-reads both base tables. The previous snapshot keeps
// serving if the reload fails.
func (h *AdminHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	if h.loader == nil {
		errors.WriteError(w, h.logger, errors.ServiceUnavailable("No data source configured"), requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "snapshot.reload")
	defer span.End(observability.LoggerFrom(ctx, h.logger))

	if err := h.dashboard.Load(ctx, h.loader); err != nil {
		span.SetError(err)
		errors.WriteError(w, h.logger, errors.Upstream(err, "Failed to reload data"), requestID)
		return
	}

	errors.WriteSuccess(w, h.dashboard.Stats())
}
