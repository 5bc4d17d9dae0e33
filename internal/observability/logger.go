package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"scout-dashboard/internal/config"
)

const serviceName = "scout-dashboard"

func NewLogger(cfg config.LoggerConfig) *slog.Logger {
	return NewLoggerTo(os.Stdout, cfg)
}

// NewLoggerTo builds the process logger on an arbitrary writer. The CLI
// points it at stderr so command output on stdout stays parseable.
func NewLoggerTo(w io.Writer, cfg config.LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.Level),
		AddSource: true,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", serviceName)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey string

const RequestIDKey contextKey = "request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggerFrom decorates base with the request and trace identifiers found in
// ctx, if any.
func LoggerFrom(ctx context.Context, base *slog.Logger) *slog.Logger {
	if id := GetRequestID(ctx); id != "" {
		base = base.With("request_id", id)
	}
	if span := GetSpan(ctx); span != nil {
		base = base.With("trace_id", span.TraceID)
	}
	return base
}
