package orchestration

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	a "github.com/cschleiden/go-orchestrations/internal/args"
	"github.com/cschleiden/go-orchestrations/internal/command"
	"github.com/cschleiden/go-orchestrations/internal/contextvalue"
	"github.com/cschleiden/go-orchestrations/internal/fn"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
	"github.com/cschleiden/go-orchestrations/internal/sync"
	"github.com/cschleiden/go-orchestrations/internal/tracing"
	"github.com/cschleiden/go-orchestrations/log"
)

type ActivityOptions struct {
	// RetryPolicy is applied to failed executions, nil disables retries
	RetryPolicy *RetryPolicy
}

var DefaultActivityOptions = ActivityOptions{}

// CallActivity schedules the given activity. activity is either the activity function or its registered
// name.
func CallActivity[TResult any](ctx Context, options ActivityOptions, activity any, args ...any) Future[TResult] {
	return withRetries(ctx, options.RetryPolicy, func(ctx Context, attempt int) Future[TResult] {
		return callActivity[TResult](ctx, attempt, activity, args...)
	})
}

func callActivity[TResult any](ctx Context, attempt int, activity any, args ...any) Future[TResult] {
	f := sync.NewFuture[TResult]()

	name, ok := activity.(string)
	if !ok {
		// Check return type
		if err := a.ReturnTypeMatch[TResult](activity); err != nil {
			f.Set(*new(TResult), NewPermanentError(err))
			return f
		}

		// Check arguments
		if err := a.ParamsMatch(activity, args...); err != nil {
			f.Set(*new(TResult), NewPermanentError(err))
			return f
		}

		name = fn.Name(activity)
	}

	cv := contextvalue.Converter(ctx)
	inputs, err := a.ArgsToInputs(cv, args...)
	if err != nil {
		f.Set(*new(TResult), fmt.Errorf("converting activity input: %w", err))
		return f
	}

	state := orchestrationstate.OrchestrationState(ctx)
	correlationID := state.NextCorrelationID()

	cmd := command.NewScheduleActivityCommand(correlationID, name, inputs, attempt)
	state.AddCommand(cmd)
	state.TrackFuture(correlationID, "activity:"+name, orchestrationstate.AsDecodingSettable(cv, f))

	_, span := tracing.StartSpan(ctx,
		fmt.Sprintf("CallActivity: %s", name),
		trace.WithAttributes(
			attribute.String(log.ActivityNameKey, name),
			attribute.Int64(log.CorrelationIDKey, correlationID),
			attribute.Int(log.AttemptKey, attempt),
		))
	defer span.End()

	return f
}
