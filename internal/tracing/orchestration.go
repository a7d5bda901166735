package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
	"github.com/cschleiden/go-orchestrations/internal/sync"
)

// StartSpan starts a span from orchestration code. Spans are timestamped with orchestration time and only
// recorded when not replaying.
func StartSpan(ctx sync.Context, name string, opts ...trace.SpanStartOption) (sync.Context, Span) {
	state := orchestrationstate.OrchestrationState(ctx)

	sctx := context.Background()
	if parent := SpanFromContext(ctx); parent != nil {
		sctx = trace.ContextWithSpan(sctx, parent)
	}

	opts = append(opts, trace.WithTimestamp(state.Time()))
	_, span := state.Tracer().Start(sctx, name, opts...)

	return ContextWithSpan(ctx, span), Span{span, state}
}

type Span struct {
	span  trace.Span
	state *orchestrationstate.OrchState
}

func (s Span) End() {
	if !s.state.Replaying() {
		// Only end the span when we are not replaying
		s.span.End(trace.WithTimestamp(s.state.Time()))
	}
}
