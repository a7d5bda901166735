package orchestration

import (
	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
	"github.com/cschleiden/go-orchestrations/internal/sync"
)

// Context is passed to orchestrators. It carries the replay state of the running instance.
type Context = sync.Context

// Future is the handle to the outcome of a scheduled task. Get blocks the orchestration until the outcome
// is known.
type Future[T any] sync.Future[T]

// Awaitable is implemented by every Future, regardless of its result type.
type Awaitable interface {
	Ready() bool
}

// Instance describes the running orchestration instance.
type Instance = orchestrationstate.Instance

// InstanceFromContext returns the orchestration instance the given context belongs to.
func InstanceFromContext(ctx Context) *Instance {
	return orchestrationstate.OrchestrationState(ctx).Instance()
}

// Go runs fn concurrently with the calling orchestration code. Both are scheduled cooperatively, only one of
// them runs at any time.
func Go(ctx Context, fn func(ctx Context)) {
	sync.Go(ctx, fn)
}

// Replaying returns true while orchestration code re-executes decisions already recorded in history.
func Replaying(ctx Context) bool {
	return orchestrationstate.OrchestrationState(ctx).Replaying()
}
