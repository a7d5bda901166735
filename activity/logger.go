package activity

import (
	"context"
	"log/slog"

	"github.com/cschleiden/go-orchestrations/internal/activity"
)

// Logger returns a logger with the orchestration instance and activity call this activity is executed for
// set as default fields.
func Logger(ctx context.Context) *slog.Logger {
	if as := activity.GetActivityState(ctx); as != nil {
		return as.Logger
	}

	return slog.Default()
}
