package orchestration

import (
	"github.com/cschleiden/go-orchestrations/internal/contextvalue"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
	"github.com/cschleiden/go-orchestrations/internal/sync"
)

// WaitForExternalEvent returns a future resolving with the payload of the next event raised with the given
// name. Events raised before they are waited for are buffered, and consumed in the order they were raised.
func WaitForExternalEvent[T any](ctx Context, name string) Future[T] {
	state := orchestrationstate.OrchestrationState(ctx)

	correlationID := state.NextCorrelationID()

	f := sync.NewFuture[T]()
	if err := state.WaitForEvent(name, correlationID, orchestrationstate.AsDecodingSettable(contextvalue.Converter(ctx), f)); err != nil {
		f.Set(*new(T), err)
	}

	return f
}
