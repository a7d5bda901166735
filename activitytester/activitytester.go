package activitytester

import (
	"context"
	"log/slog"

	"github.com/cschleiden/go-orchestrations/internal/activity"
)

// WithActivityTestState returns a context with an activity state attached that can be used for unit testing
// activities.
func WithActivityTestState(ctx context.Context, name, instanceID string, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = slog.Default()
	}

	return activity.WithActivityState(ctx, activity.NewActivityState(instanceID, name, 0, 1, logger))
}
