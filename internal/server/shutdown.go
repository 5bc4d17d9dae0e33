package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scout-dashboard/internal/config"
)

const hookTimeout = 10 * time.Second

// GracefulServer runs an http.Server until its context ends and then drains
// it alongside the registered hooks.
type GracefulServer struct {
	server *http.Server
	logger *slog.Logger
	config *config.Config

	mu    sync.Mutex
	hooks []func(ctx context.Context) error
}

func NewGracefulServer(server *http.Server, logger *slog.Logger, config *config.Config) *GracefulServer {
	return &GracefulServer{server: server, logger: logger, config: config}
}

// RegisterShutdownHook adds fn to the hooks run concurrently with the HTTP
// server shutdown.
func (gs *GracefulServer) RegisterShutdownHook(fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, fn)
}

// ListenAndServe serves until ctx is canceled, then shuts down within the
// configured timeout.
func (gs *GracefulServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", gs.server.Addr, err)
	}
	return gs.Serve(ctx, ln)
}

// Serve is ListenAndServe over an existing listener.
func (gs *GracefulServer) Serve(ctx context.Context, ln net.Listener) error {
	served := make(chan error, 1)
	go func() {
		gs.logger.Info("listening",
			"addr", ln.Addr().String(),
			"read_timeout", gs.config.Server.ReadTimeout,
			"write_timeout", gs.config.Server.WriteTimeout,
		)
		served <- gs.server.Serve(ln)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	gs.logger.Info("draining", "cause", context.Cause(ctx), "timeout", gs.config.Server.ShutdownTimeout)
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gs.config.Server.ShutdownTimeout)
	defer cancel()
	return gs.drain(drainCtx)
}

// drain stops the HTTP server and runs every hook. All failures are joined;
// a hook error never stops the others.
func (gs *GracefulServer) drain(ctx context.Context) error {
	gs.mu.Lock()
	hooks := append([]func(context.Context) error(nil), gs.hooks...)
	gs.mu.Unlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g.Go(func() error {
		if err := gs.server.Shutdown(ctx); err != nil {
			gs.logger.Error("http server shutdown failed", "error", err)
			record(fmt.Errorf("http shutdown: %w", err))
		}
		return nil
	})
	for i, hook := range hooks {
		g.Go(func() error {
			hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
			defer cancel()
			if err := hook(hookCtx); err != nil {
				gs.logger.Error("shutdown hook failed", "hook", i, "error", err)
				record(fmt.Errorf("shutdown hook %d: %w", i, err))
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		gs.logger.Info("shutdown complete")
		return errors.Join(errs...)
	case <-ctx.Done():
		gs.logger.Warn("shutdown timed out")
		return ctx.Err()
	}
}
