package activity

import (
	"context"

	"github.com/cschleiden/go-orchestrations/internal/activity"
)

type Info struct {
	// InstanceID of the orchestration that scheduled the activity
	InstanceID string

	Name string

	// Attempt is the 1-based attempt number of the call
	Attempt int
}

// GetInfo returns information about the activity call being executed, or nil outside of an activity.
func GetInfo(ctx context.Context) *Info {
	as := activity.GetActivityState(ctx)
	if as == nil {
		return nil
	}

	return &Info{
		InstanceID: as.InstanceID,
		Name:       as.Name,
		Attempt:    as.Attempt,
	}
}
