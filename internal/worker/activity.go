package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/internal/activity"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
	im "github.com/cschleiden/go-orchestrations/internal/metrics"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
	"github.com/cschleiden/go-orchestrations/log"
	"github.com/cschleiden/go-orchestrations/registry"
)

type activityResult struct {
	// scheduled is nil when the item was skipped
	scheduled *history.Event

	result payload.Payload
	err    error
}

type activityTaskWorker struct {
	backend  backend.Backend
	executor *activity.Executor
	logger   *slog.Logger
	clock    clock.Clock
}

// NewActivityWorker creates a worker executing the activities scheduled by orchestrations.
func NewActivityWorker(b backend.Backend, r *registry.Registry, options WorkerOptions) *Worker[backend.WorkItem, activityResult] {
	bo := b.Options()

	tw := &activityTaskWorker{
		backend:  b,
		executor: activity.NewExecutor(bo.Logger, b.Tracer(), bo.Converter, r),
		logger:   bo.Logger,
		clock:    bo.Clock,
	}

	return NewWorker[backend.WorkItem, activityResult](bo.Logger, tw, &options)
}

func (aw *activityTaskWorker) Get(ctx context.Context) (*backend.WorkItem, error) {
	return aw.backend.Dequeue(ctx, core.QueueActivities)
}

func (aw *activityTaskWorker) Extend(ctx context.Context, item *backend.WorkItem) error {
	return aw.backend.ExtendLease(ctx, item)
}

func (aw *activityTaskWorker) Execute(ctx context.Context, item *backend.WorkItem) (*activityResult, error) {
	logger := aw.logger.With(log.InstanceIDKey, item.InstanceID, log.WorkItemIDKey, item.ID, log.SeqIDKey, item.SequenceID)

	h, err := aw.backend.ReadHistory(ctx, item.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	event := history.EventBySequenceID(h, item.SequenceID)
	if event == nil || event.Type != history.EventType_TaskScheduled {
		logger.WarnContext(ctx, "activity work item does not reference a scheduled activity")
		return &activityResult{}, nil
	}

	// Activities of terminated instances still run, their completion is dropped on delivery
	if reason := skipCompletion(h, item.SequenceID, event.CorrelationID); reason != "" && reason != reasonInstanceTerminal {
		logger.DebugContext(ctx, "skipping activity", log.ReasonKey, reason)
		return &activityResult{}, nil
	}

	a := event.Attributes.(*history.TaskScheduledAttributes)
	ametrics := aw.backend.Metrics().WithTags(metrics.Tags{metrickeys.ActivityName: a.Name})

	// Record how long this item was in the queue
	ametrics.Distribution(metrickeys.ActivityTaskDelay, metrics.Tags{}, float64(aw.clock.Since(event.Timestamp).Milliseconds()))

	timer := im.NewTimer(ametrics, metrickeys.ActivityTaskProcessed, metrics.Tags{})
	defer timer.Stop()

	result, err := aw.executor.ExecuteActivity(ctx, item.InstanceID, event)
	if err != nil {
		logger.DebugContext(ctx, "activity failed", log.ActivityNameKey, a.Name, "error", err)
	}

	return &activityResult{
		scheduled: event,
		result:    result,
		err:       err,
	}, nil
}

func (aw *activityTaskWorker) Complete(ctx context.Context, r *activityResult, item *backend.WorkItem) error {
	if r.scheduled != nil {
		var event *history.Event
		if r.err != nil {
			event = history.NewHistoryEvent(aw.clock.Now(), history.EventType_TaskFailed, &history.TaskFailedAttributes{
				Error: orchestrationerrors.FromError(r.err),
			}, history.CorrelationID(r.scheduled.CorrelationID))
		} else {
			event = history.NewHistoryEvent(aw.clock.Now(), history.EventType_TaskCompleted, &history.TaskCompletedAttributes{
				Result: r.result,
			}, history.CorrelationID(r.scheduled.CorrelationID))
		}

		if _, err := deliverCompletion(ctx, aw.backend, aw.logger, item.InstanceID, item.SequenceID, event); err != nil {
			// The item is redelivered once its lease expires
			return fmt.Errorf("appending activity result: %w", err)
		}
	}

	return aw.backend.Complete(ctx, item)
}
