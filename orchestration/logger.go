package orchestration

import (
	"log/slog"

	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
)

// Logger returns a logger for orchestration code. Nothing is logged while replaying.
func Logger(ctx Context) *slog.Logger {
	return orchestrationstate.OrchestrationState(ctx).Logger()
}
