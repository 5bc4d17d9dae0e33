package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scout-dashboard/internal/assistant"
	"scout-dashboard/internal/auth"
	"scout-dashboard/internal/middleware"
	"scout-dashboard/internal/server"
)

const limiterSweepInterval = time.Minute

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		Long: `Load both base tables into memory and serve the dashboard, the JSON API and
the Datastar SSE endpoints until interrupted.`,
		Example: `  # Serve from Postgres
  DB_CONNECTION_STRING=postgres://... DASHBOARD_PASSWORD=... scout serve

  # Serve from local CSV exports on another port
  scout serve --driver csv --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().String("host", "", "interface to listen on")
	cmd.Flags().Int("port", 0, "port to listen on")

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	loader := a.loader(st)

	start := time.Now()
	dashboard, err := a.loadDashboard(ctx, loader)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return err
	}
	a.logger.Info("data loaded", "source", cfg.Database.Driver, "duration", time.Since(start))

	var console *assistant.Console
	if st != nil {
		console = a.console(st)
	}
	asst := a.assistant(console)
	if !asst.Configured() {
		a.logger.Warn("assistant disabled: no API key configured")
	}

	authn := auth.New(auth.Config{
		Username:     cfg.Auth.Username,
		Password:     cfg.Auth.Password,
		Secret:       cfg.Auth.SessionSecret,
		MaxAge:       cfg.Auth.SessionMaxAge,
		SecureCookie: cfg.Auth.SecureCookie,
	}, a.logger)

	limiter := middleware.NewRateLimiter(cfg.Security)
	go limiter.Run(ctx, limiterSweepInterval)

	handler := server.NewServer(server.Deps{
		Config:    cfg,
		Dashboard: dashboard,
		Console:   console,
		Assistant: asst,
		Auth:      authn,
		Loader:    loader,
		Limiter:   limiter,
		Logger:    a.logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gs := server.NewGracefulServer(httpServer, a.logger, cfg)
	if st != nil {
		gs.RegisterShutdownHook(func(context.Context) error {
			return st.Close()
		})
	}

	if err := gs.ListenAndServe(ctx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
