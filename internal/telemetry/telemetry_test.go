// ABOUTME: Tests for telemetry initialization and flushing to files

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/2389/moplexity-client/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInit_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Init(context.Background(), config.TelemetryConfig{}, "test", discardLogger())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.Equal(t, before, otel.GetTracerProvider(), "disabled telemetry installs nothing")
}

func TestInit_WritesSpansAndMetrics(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "telemetry")
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	shutdown, err := Init(context.Background(), config.TelemetryConfig{Enabled: true, Dir: dir}, "test", discardLogger())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "conversation.SendMessageStreaming")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("moplexity.stream.events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, shutdown(context.Background()))

	traces, err := os.ReadFile(filepath.Join(dir, "traces.log"))
	require.NoError(t, err)
	assert.Contains(t, string(traces), "conversation.SendMessageStreaming")
	assert.Contains(t, string(traces), "moplexity-client")

	metrics, err := os.ReadFile(filepath.Join(dir, "metrics.log"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "moplexity.stream.events")
}
