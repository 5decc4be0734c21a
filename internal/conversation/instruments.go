// ABOUTME: OpenTelemetry tracer and counters for conversation operations and stream events
// ABOUTME: Uses the global providers, so everything is a no-op until telemetry is initialized

package conversation

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/2389/moplexity-client/internal/conversation"

type instruments struct {
	tracer   trace.Tracer
	events   metric.Int64Counter
	skipped  metric.Int64Counter
	failures metric.Int64Counter
}

func newInstruments(logger *slog.Logger) *instruments {
	meter := otel.Meter(instrumentationName)
	return &instruments{
		tracer: otel.Tracer(instrumentationName),
		events: counter(meter, logger, "moplexity.stream.events",
			"Streaming events dispatched, by type"),
		skipped: counter(meter, logger, "moplexity.stream.frames_skipped",
			"Frames dropped because their payload did not parse"),
		failures: counter(meter, logger, "moplexity.operation.failures",
			"Conversation operations that ended in an error, by operation"),
	}
}

func counter(meter metric.Meter, logger *slog.Logger, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		logger.Warn("creating counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

// start opens a span for a store operation.
func (in *instruments) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "conversation."+op, trace.WithAttributes(attrs...))
}

// failed marks the span in ctx as failed and counts the failure.
func (in *instruments) failed(ctx context.Context, op string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	in.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (in *instruments) dispatched(ctx context.Context, typ string) {
	in.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", typ)))
}

func (in *instruments) skippedFrame(ctx context.Context) {
	in.skipped.Add(ctx, 1)
}
