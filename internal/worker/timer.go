package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
	"github.com/cschleiden/go-orchestrations/log"
)

type timerResult struct {
	fired bool
}

type timerTaskWorker struct {
	backend backend.Backend
	logger  *slog.Logger
	clock   clock.Clock
}

// NewTimerWorker creates a worker firing due timers. Timer items only become visible once they are due.
func NewTimerWorker(b backend.Backend, options WorkerOptions) *Worker[backend.WorkItem, timerResult] {
	bo := b.Options()

	tw := &timerTaskWorker{
		backend: b,
		logger:  bo.Logger,
		clock:   bo.Clock,
	}

	return NewWorker[backend.WorkItem, timerResult](bo.Logger, tw, &options)
}

func (tw *timerTaskWorker) Get(ctx context.Context) (*backend.WorkItem, error) {
	return tw.backend.Dequeue(ctx, core.QueueTimers)
}

func (tw *timerTaskWorker) Extend(ctx context.Context, item *backend.WorkItem) error {
	return tw.backend.ExtendLease(ctx, item)
}

func (tw *timerTaskWorker) Execute(ctx context.Context, item *backend.WorkItem) (*timerResult, error) {
	h, err := tw.backend.ReadHistory(ctx, item.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	created := history.EventBySequenceID(h, item.SequenceID)
	if created == nil || created.Type != history.EventType_TimerCreated {
		tw.logger.WarnContext(ctx, "timer work item does not reference a created timer",
			log.InstanceIDKey, item.InstanceID, log.SeqIDKey, item.SequenceID)
		return &timerResult{}, nil
	}

	a := created.Attributes.(*history.TimerCreatedAttributes)

	fired := history.NewHistoryEvent(tw.clock.Now(), history.EventType_TimerFired, &history.TimerFiredAttributes{
		FireAt: a.FireAt,
	}, history.CorrelationID(created.CorrelationID))

	delivered, err := deliverCompletion(ctx, tw.backend, tw.logger, item.InstanceID, item.SequenceID, fired)
	if err != nil {
		return nil, fmt.Errorf("firing timer: %w", err)
	}

	if delivered {
		tw.backend.Metrics().Counter(metrickeys.TimerFired, metrics.Tags{}, 1)
		tw.logger.DebugContext(ctx, "timer fired",
			log.InstanceIDKey, item.InstanceID,
			log.CorrelationIDKey, created.CorrelationID,
			log.AtKey, a.FireAt,
		)
	}

	return &timerResult{fired: delivered}, nil
}

func (tw *timerTaskWorker) Complete(ctx context.Context, _ *timerResult, item *backend.WorkItem) error {
	return tw.backend.Complete(ctx, item)
}
