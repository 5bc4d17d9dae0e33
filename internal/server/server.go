package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scout-dashboard/internal/assistant"
	"scout-dashboard/internal/auth"
	"scout-dashboard/internal/config"
	"scout-dashboard/internal/handlers"
	"scout-dashboard/internal/middleware"
	"scout-dashboard/internal/services"
)

// Deps are the services the routes are built over. Console, Assistant and
// Loader may be nil.
type Deps struct {
	Config    *config.Config
	Dashboard *services.Dashboard
	Console   *assistant.Console
	Assistant *assistant.Assistant
	Auth      *auth.Authenticator
	Loader    services.Loader
	Limiter   *middleware.RateLimiter
	Logger    *slog.Logger
}

type Server struct {
	router        chi.Router
	logger        *slog.Logger
	apiHandlers   *handlers.APIHandlers
	sseHandlers   *handlers.SSEHandlers
	pageHandlers  *handlers.PageHandlers
	adminHandlers *handlers.AdminHandlers
}

func NewServer(deps Deps) *Server {
	assistantOn := deps.Assistant != nil && deps.Assistant.Configured()
	s := &Server{
		router:        chi.NewRouter(),
		logger:        deps.Logger,
		apiHandlers:   handlers.NewAPIHandlers(deps.Dashboard, deps.Console, deps.Assistant, deps.Logger),
		sseHandlers:   handlers.NewSSEHandlers(deps.Dashboard, deps.Console, deps.Assistant, deps.Logger),
		pageHandlers:  handlers.NewPageHandlers(deps.Auth, deps.Dashboard, assistantOn, deps.Logger),
		adminHandlers: handlers.NewAdminHandlers(deps.Dashboard, deps.Loader, deps.Config.Server.LoadTimeout, deps.Logger),
	}
	s.setupMiddleware(deps)
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware(deps Deps) {
	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(deps.Config.Security)
	}

	s.router.Use(middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logger(s.logger),
		middleware.Tracing(s.logger),
		middleware.SecurityHeaders(),
		middleware.CORS(deps.Config.Security),
		middleware.TrustedProxy(deps.Config.Security),
		middleware.RateLimit(limiter, s.logger),
		deps.Auth.RequireLogin,
	))
}

func (s *Server) setupRoutes() {
	// Dashboard routes
	s.router.Get("/", s.pageHandlers.HandleDashboard)
	s.router.Get("/login", s.pageHandlers.HandleLoginPage)
	s.router.Post("/login", s.pageHandlers.HandleLogin)
	s.router.Post("/logout", s.pageHandlers.HandleLogout)
	s.router.Get("/health", s.apiHandlers.HandleHealth)
	s.router.Get("/admin/stats", s.apiHandlers.HandleStats)
	s.router.Post("/admin/reload", s.adminHandlers.HandleReload)

	// REST API endpoints
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/charts", s.apiHandlers.HandleCharts)
		r.Get("/charts/{id}", s.apiHandlers.HandleChart)
		r.Get("/tabs/{tab}", s.apiHandlers.HandleTab)
		r.Get("/filters", s.apiHandlers.HandleFilters)
		r.Post("/sql", s.apiHandlers.HandleSQL)
		r.Get("/preview/{table}", s.apiHandlers.HandlePreview)
		r.Post("/ask", s.apiHandlers.HandleAsk)
	})

	// Datastar SSE endpoints
	s.router.Route("/sse", func(r chi.Router) {
		r.Get("/charts/{id}", s.sseHandlers.HandleChart)
		r.Get("/tab/{tab}", s.sseHandlers.HandleTab)
		r.Post("/sql", s.sseHandlers.HandleSQL)
		r.Get("/preview/{table}", s.sseHandlers.HandlePreview)
		r.Post("/ask", s.sseHandlers.HandleAsk)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
