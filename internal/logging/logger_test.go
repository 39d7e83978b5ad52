package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"syscall"
	"testing"

	"github.com/fyrsmithlabs/advisord/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newBufferLogger builds a JSON logger that writes to a buffer.
func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Level = zapcore.DebugLevel
	cfg.Sampling.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	logger, err := newLogger(cfg, nil, zapcore.AddSync(&buf))
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger.Underlying())
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLogger_JSONOutput(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	ctx := WithSessionID(context.Background(), "3f2a9c1e-aaaa-bbbb-cccc-000000000001")
	ctx = WithRequestID(ctx, "req-42")
	logger.Info(ctx, "consultation completed", zap.Int("nextSteps", 3))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "consultation completed", entry["msg"])
	assert.Equal(t, "advisord", entry["service"])
	assert.Equal(t, "3f2a9c1e-aaaa-bbbb-cccc-000000000001", entry["session.id"])
	assert.Equal(t, "req-42", entry["request.id"])
	assert.Equal(t, float64(3), entry["nextSteps"])
	assert.Contains(t, entry, "ts")
	assert.Contains(t, entry, "caller")
	assert.Contains(t, entry["caller"], "logger_test.go", "caller skips the wrapper")
}

func TestLogger_Levels(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Level = zapcore.WarnLevel })
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["msg"])
	assert.Equal(t, "error", lines[1]["msg"])
}

func TestLogger_RedactsSecrets(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)
	ctx := context.Background()

	logger.Info(ctx, "agent configured",
		zap.String("api_key", "AIzaSyD-super-secret"),
		zap.String("header", "Bearer abc.def.ghi"),
		Secret("credential", config.Secret("hunter2")),
		zap.String("model", "gemini-flash-latest"),
	)
	logger.With(zap.String("token", "t0k3n")).Warn(ctx, "child logger")
	logger.Error(ctx, "call failed: api_key=sk-should-not-leak")

	out := buf.String()
	assert.NotContains(t, out, "super-secret")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "t0k3n")
	assert.NotContains(t, out, "should-not-leak")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "[REDACTED]", lines[0]["api_key"])
	assert.Equal(t, "[REDACTED:pattern]", lines[0]["header"])
	assert.Equal(t, "[REDACTED]", lines[0]["credential"])
	assert.Equal(t, "gemini-flash-latest", lines[0]["model"])
	assert.Equal(t, "[REDACTED]", lines[1]["token"])
}

func TestLogger_RedactionDisabled(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Redaction.Enabled = false })
	logger.Info(context.Background(), "raw", zap.String("token", "visible"))
	assert.Contains(t, buf.String(), "visible")
}

func TestLogger_TraceCorrelation(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.Info(ctx, "traced")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", lines[0]["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", lines[0]["span_id"])
	assert.Equal(t, true, lines[0]["trace_sampled"])
}

func TestLogger_NamedAndWith(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	child := logger.Named("consult").With(zap.String("provider", "gemini"))
	child.Info(context.Background(), "child")
	logger.Info(context.Background(), "parent")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "consult", lines[0]["logger"])
	assert.Equal(t, "gemini", lines[0]["provider"])
	assert.NotContains(t, lines[1], "provider")
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error(context.Background(), "dropped")
	assert.NoError(t, logger.Sync())
}

func TestIsStdoutSyncError(t *testing.T) {
	assert.True(t, isStdoutSyncError(syscall.EINVAL))
	assert.True(t, isStdoutSyncError(syscall.ENOTTY))
	assert.False(t, isStdoutSyncError(errors.New("disk full")))
}
