package observe

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// instrumentation scope of every crawlfree span
const tracerName = "github.com/MrWong99/crawlfree"

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// StartSpan starts a span on the global tracer provider. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, opts...)
}

// StartJob starts the span that covers one reasoning job: the frame it was
// built from and the query it serves.
func StartJob(ctx context.Context, frameTimestamp int64, label string, queryID uuid.UUID) (context.Context, trace.Span) {
	return StartSpan(ctx, "pipeline.job", trace.WithAttributes(
		attribute.Int64("frame.timestamp", frameTimestamp),
		attribute.String("query.label", label),
		attribute.String("query.id", queryID.String()),
	))
}

// Fail marks span as failed in stage and records err on it.
func Fail(span trace.Span, stage string, err error) {
	span.RecordError(err, trace.WithAttributes(attribute.String("stage", stage)))
	span.SetStatus(codes.Error, stage)
}

// TraceID returns the hex trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
