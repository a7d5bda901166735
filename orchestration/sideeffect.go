package orchestration

import (
	"fmt"

	"github.com/cschleiden/go-orchestrations/internal/command"
	"github.com/cschleiden/go-orchestrations/internal/contextvalue"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
	"github.com/cschleiden/go-orchestrations/internal/sync"
)

// SideEffect runs f once and records its result in history. Replays return the recorded result instead of
// running f again.
func SideEffect[TResult any](ctx Context, f func(ctx Context) TResult) Future[TResult] {
	future := sync.NewFuture[TResult]()

	state := orchestrationstate.OrchestrationState(ctx)
	correlationID := state.NextCorrelationID()
	cv := contextvalue.Converter(ctx)

	if state.Replaying() {
		// There has to be an event in the history with the result
		state.AddCommand(command.NewSideEffectCommand(correlationID, nil))
		state.TrackFuture(correlationID, "sideeffect", orchestrationstate.AsDecodingSettable(cv, future))
		return future
	}

	r := f(ctx)

	payload, err := cv.To(r)
	if err != nil {
		future.Set(*new(TResult), fmt.Errorf("converting side effect result: %w", err))
		return future
	}

	state.AddCommand(command.NewSideEffectCommand(correlationID, payload))

	future.Set(r, nil)

	return future
}
