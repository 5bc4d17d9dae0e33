package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-dashboard/internal/config"
)

func TestNewLoggerTo_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggerConfig{Level: "warn", Format: "json"})

	logger.Info("dropped")
	logger.Warn("kept", "chart", "general.gender")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, serviceName, entry["service"])
	assert.Equal(t, "general.gender", entry["chart"])
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestLoggerFrom(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx, span := StartSpan(ctx, "GET /api/charts")
	LoggerFrom(ctx, base).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, span.TraceID, entry["trace_id"])
}

func TestStartSpan_Nesting(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "parent")
	_, child := StartSpan(ctx, "child")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
	assert.Same(t, parent, GetSpan(ctx))
	assert.Nil(t, GetSpan(context.Background()))
}

func TestSpan_End(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, span := StartSpan(context.Background(), "sql.query")
	span.SetTag("rows", "3")
	span.SetError(errors.New("boom"))
	span.End(logger)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "sql.query", entry["operation"])
	assert.Equal(t, "3", entry["rows"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, SpanStatusError, span.Status)
}
