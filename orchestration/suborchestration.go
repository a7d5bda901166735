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

type SubOrchestrationOptions struct {
	// InstanceID of the child. Defaults to an ID derived from the parent instance and the call.
	InstanceID string

	// RetryPolicy is applied to failed child executions, nil disables retries
	RetryPolicy *RetryPolicy
}

var DefaultSubOrchestrationOptions = SubOrchestrationOptions{}

// CallSubOrchestration starts the given orchestrator as a child instance and returns a future for its result.
// orchestrator is either the orchestrator function or its registered name.
func CallSubOrchestration[TResult any](ctx Context, options SubOrchestrationOptions, orchestrator any, args ...any) Future[TResult] {
	return withRetries(ctx, options.RetryPolicy, func(ctx Context, attempt int) Future[TResult] {
		return callSubOrchestration[TResult](ctx, options, attempt, orchestrator, args...)
	})
}

func callSubOrchestration[TResult any](ctx Context, options SubOrchestrationOptions, attempt int, orchestrator any, args ...any) Future[TResult] {
	f := sync.NewFuture[TResult]()

	name, ok := orchestrator.(string)
	if !ok {
		if err := a.ReturnTypeMatch[TResult](orchestrator); err != nil {
			f.Set(*new(TResult), NewPermanentError(err))
			return f
		}

		if err := a.ParamsMatch(orchestrator, args...); err != nil {
			f.Set(*new(TResult), NewPermanentError(err))
			return f
		}

		name = fn.Name(orchestrator)
	}

	cv := contextvalue.Converter(ctx)
	inputs, err := a.ArgsToInputs(cv, args...)
	if err != nil {
		f.Set(*new(TResult), fmt.Errorf("converting sub-orchestration input: %w", err))
		return f
	}

	state := orchestrationstate.OrchestrationState(ctx)
	correlationID := state.NextCorrelationID()

	instanceID := options.InstanceID
	if instanceID == "" {
		instanceID = fmt.Sprintf("%s:%d", state.Instance().InstanceID, correlationID)
	} else if attempt > 1 {
		instanceID = fmt.Sprintf("%s:%d", instanceID, attempt)
	}

	cmd := command.NewScheduleSubOrchestrationCommand(correlationID, name, instanceID, inputs)
	state.AddCommand(cmd)
	state.TrackFuture(correlationID, "suborchestration:"+name, orchestrationstate.AsDecodingSettable(cv, f))

	_, span := tracing.StartSpan(ctx,
		fmt.Sprintf("CallSubOrchestration: %s", name),
		trace.WithAttributes(
			attribute.String(log.OrchestrationNameKey, name),
			attribute.String(log.InstanceIDKey, instanceID),
			attribute.Int64(log.CorrelationIDKey, correlationID),
		))
	defer span.End()

	return f
}
