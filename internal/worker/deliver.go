package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/log"
)

// completionTypes maps scheduling events to the events completing them.
var completionTypes = map[history.EventType][]history.EventType{
	history.EventType_TaskScheduled:             {history.EventType_TaskCompleted, history.EventType_TaskFailed},
	history.EventType_TimerCreated:              {history.EventType_TimerFired},
	history.EventType_SubOrchestrationScheduled: {history.EventType_SubOrchestrationCompleted, history.EventType_SubOrchestrationFailed},
}

const reasonInstanceTerminal = "instance terminal"

// deliverCompletion appends the event completing the task scheduled at scheduledSeq in the history of the
// given instance and enqueues a replay. The completion is dropped if the instance is gone or terminal, if
// the scheduling event belongs to a previous execution, or if the task already has a completion.
func deliverCompletion(
	ctx context.Context, b backend.Backend, logger *slog.Logger, instanceID string, scheduledSeq int64, event *history.Event,
) (bool, error) {
	delivered := false

	err := backend.RetryOnConflict(ctx, func() error {
		h, err := b.ReadHistory(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}

		if reason := skipCompletion(h, scheduledSeq, event.CorrelationID); reason != "" {
			logger.DebugContext(ctx, "dropping completion",
				log.InstanceIDKey, instanceID,
				log.EventTypeKey, event.Type,
				log.CorrelationIDKey, event.CorrelationID,
				log.ReasonKey, reason,
			)

			return nil
		}

		if err := b.AppendEvents(ctx, instanceID, int64(len(h)), []*history.Event{event}, backend.NewOrchestrateWorkItem(instanceID)); err != nil {
			return err
		}

		delivered = true

		return nil
	})

	return delivered, err
}

// skipCompletion returns why a completion for the task scheduled at scheduledSeq must not be appended, or
// an empty string.
func skipCompletion(h []*history.Event, scheduledSeq int64, correlationID int64) string {
	if len(h) == 0 {
		return "instance not found"
	}

	scheduled := history.EventBySequenceID(h, scheduledSeq)
	if scheduled == nil {
		return "scheduling event not found"
	}

	start, execution := history.CurrentExecution(h)
	if int64(start+1) >= scheduledSeq {
		return "stale execution"
	}

	if history.Terminated(execution) {
		return reasonInstanceTerminal
	}

	if history.HasEvent(execution, correlationID, completionTypes[scheduled.Type]...) {
		return "duplicate completion"
	}

	return ""
}
