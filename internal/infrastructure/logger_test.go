package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"garbage", slog.LevelInfo},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, parseLogLevel(tc.in))
		})
	}
}

func TestCreateLoggerRejectsUnknownSettings(t *testing.T) {
	_, err := createLogger(config.LoggingConfig{Level: "info", Format: "xml", Output: "stdout"})
	assert.Error(t, err)

	_, err = createLogger(config.LoggingConfig{Level: "info", Format: "json", Output: "syslog"})
	assert.Error(t, err)
}

func TestTraceHandlerInjectsTraceID(t *testing.T) {
	var buf bytes.Buffer
	handler := &traceHandler{Handler: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(handler)

	ctx := WithTraceID(context.Background(), "trace-abc-123")
	logger.InfoContext(ctx, "converting workbook")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "trace-abc-123", record["trace_id"])
	assert.Equal(t, "converting workbook", record["msg"])
}

func TestTraceHandlerWithoutTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&traceHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	logger.Info("no trace here")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, present := record["trace_id"]
	assert.False(t, present)
}

func TestTraceHandlerPreservesGroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&traceHandler{Handler: slog.NewJSONHandler(&buf, nil)})
	logger = logger.With(slog.String("component", "run_manager")).WithGroup("run")

	ctx := WithTraceID(context.Background(), "trace-xyz")
	logger.InfoContext(ctx, "run started", slog.String("id", "run-1"))

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "run_manager", record["component"])
	group, ok := record["run"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "run-1", group["id"])
}

func TestInitializeLoggerConfiguresOnce(t *testing.T) {
	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	first, err := InitializeLogger(config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	require.NotNil(t, first)

	// A second call must return the already-installed logger.
	second, err := InitializeLogger(config.LoggingConfig{Level: "error", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, GetLogger())
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	ctx := WithTraceID(context.Background(), "abc")
	assert.Equal(t, "abc", GetTraceID(ctx))

	ensured := EnsureTraceID(context.Background())
	assert.NotEmpty(t, GetTraceID(ensured))
	assert.Equal(t, ensured, EnsureTraceID(ensured))
}
