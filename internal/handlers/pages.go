package handlers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"scout-dashboard/internal/auth"
	"scout-dashboard/internal/observability"
	"scout-dashboard/internal/services"
	"scout-dashboard/internal/store"
	"scout-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

// PageHandlers serve the HTML shell and the login flow.
type PageHandlers struct {
	auth      *auth.Authenticator
	dashboard *services.Dashboard
	assistant bool
	logger    *slog.Logger
}

func NewPageHandlers(a *auth.Authenticator, dashboard *services.Dashboard, assistantEnabled bool, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		auth:      a,
		dashboard: dashboard,
		assistant: assistantEnabled,
		logger:    logger,
	}
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := c.Render(ctx, w); err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Error("render page", "path", r.URL.Path, "error", err)
	}
}

func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := h.auth.User(r)
	h.render(w, r, http.StatusOK, templates.Dashboard(templates.DashboardData{
		User:      user,
		ActiveTab: r.URL.Query().Get("tab"),
		Options:   h.dashboard.FilterOptions(),
		Tables:    store.Tables,
		Assistant: h.assistant,
	}))
}

func (h *PageHandlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := auth.SafeNext(r.URL.Query().Get("next"))
	if _, ok := h.auth.User(r); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, templates.Login(templates.LoginData{Next: next}))
}

func (h *PageHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, templates.Login(templates.LoginData{Error: "Invalid login form"}))
		return
	}

	username := r.PostForm.Get("username")
	next := auth.SafeNext(r.PostForm.Get("next"))

	if err := h.auth.Login(w, r, username, r.PostForm.Get("password")); err != nil {
		data := templates.LoginData{Next: next, Username: username}
		if stderrors.Is(err, auth.ErrInvalidCredentials) {
			data.Error = "Invalid username or password"
			h.render(w, r, http.StatusUnauthorized, templates.Login(data))
			return
		}
		observability.LoggerFrom(r.Context(), h.logger).Error("login failed", "error", err)
		data.Error = "Error loading dashboard. Please try again."
		h.render(w, r, http.StatusInternalServerError, templates.Login(data))
		return
	}

	observability.LoggerFrom(r.Context(), h.logger).Info("user logged in", "username", username)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *PageHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(w, r); err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Warn("logout", "error", err)
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}
