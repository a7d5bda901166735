package orchestration

import (
	"fmt"

	"github.com/cschleiden/go-orchestrations/internal/contextvalue"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
)

// SetCustomStatus sets a status value visible to clients. It is recorded with the next checkpoint.
func SetCustomStatus(ctx Context, status any) error {
	p, err := contextvalue.Converter(ctx).To(status)
	if err != nil {
		return fmt.Errorf("converting custom status: %w", err)
	}

	orchestrationstate.OrchestrationState(ctx).SetCustomStatus(p)

	return nil
}
