package orchestration

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/internal/command"
	"github.com/cschleiden/go-orchestrations/internal/contextvalue"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
	"github.com/cschleiden/go-orchestrations/internal/sync"
	"github.com/cschleiden/go-orchestrations/internal/tracing"
	"github.com/cschleiden/go-orchestrations/log"
)

// CreateTimer schedules a durable timer firing at the given time.
func CreateTimer(ctx Context, fireAt time.Time) Future[struct{}] {
	state := orchestrationstate.OrchestrationState(ctx)

	correlationID := state.NextCorrelationID()
	cmd := command.NewScheduleTimerCommand(correlationID, fireAt)
	state.AddCommand(cmd)

	f := sync.NewFuture[struct{}]()
	state.TrackFuture(correlationID, "timer", orchestrationstate.AsDecodingSettable(contextvalue.Converter(ctx), f))

	return f
}

// ScheduleTimer schedules a durable timer firing after the given delay, relative to orchestration time.
func ScheduleTimer(ctx Context, delay time.Duration) Future[struct{}] {
	return CreateTimer(ctx, Now(ctx).Add(delay))
}

// Sleep blocks the orchestration for the given duration.
func Sleep(ctx Context, d time.Duration) error {
	ctx, span := tracing.StartSpan(ctx, "Sleep",
		trace.WithAttributes(attribute.Int64(log.DurationKey, int64(d/time.Millisecond))))
	defer span.End()

	_, err := ScheduleTimer(ctx, d).Get(ctx)

	return err
}
