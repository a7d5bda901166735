package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// SpanWithStartTime starts a span with an explicit start time, used for spans whose start is recorded in
// history rather than observed.
func SpanWithStartTime(
	ctx context.Context, tracer trace.Tracer, name string, startTime time.Time, opts ...trace.SpanStartOption) trace.Span {

	opts = append(opts, trace.WithTimestamp(startTime), trace.WithSpanKind(trace.SpanKindConsumer))
	_, span := tracer.Start(ctx,
		name,
		opts...,
	)

	return span
}
