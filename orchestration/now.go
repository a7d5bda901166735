package orchestration

import (
	"time"

	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
)

// Now returns the current orchestration time. It is the time the current step was first executed, and the
// same value on every replay of that step.
func Now(ctx Context) time.Time {
	return orchestrationstate.OrchestrationState(ctx).Time()
}

// NewGUID returns a new GUID. Replays of the same step return the same sequence of GUIDs.
func NewGUID(ctx Context) string {
	return orchestrationstate.OrchestrationState(ctx).NewGUID().String()
}
