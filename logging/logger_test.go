package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warnf("visible %d", 1)
	assert.Contains(t, buf.String(), "visible 1")

	assert.False(t, logger.IsLevelEnabled(DEBUG))
	logger.SetLevel(DEBUG)
	assert.True(t, logger.IsLevelEnabled(DEBUG))
}

func TestWithPrefixNamesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "json", Output: &buf}).WithPrefix("PickService")

	logger.Info("saved")

	var entry map[string]interface{}
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "PickService", entry["component"])
	assert.Equal(t, "saved", entry["msg"])
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "json", Output: &buf})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.WithContext(ctx).Info("traced")

	var entry map[string]interface{}
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, traceID.String(), entry["trace_id"])
	assert.Equal(t, spanID.String(), entry["span_id"])
}
