package monoprocess

import (
	"context"
	"log/slog"
	"time"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/core"
)

type monoprocessBackend struct {
	backend.Backend

	signals       map[core.Queue]chan struct{}
	signalTimeout time.Duration

	logger *slog.Logger
}

// NewMonoprocessBackend wraps an existing backend and improves its responsiveness in case the backend and
// the workers are running in the same process. Every enqueued work item signals a waiting poller of its
// queue, delayed items once they become visible. Only one poller is notified per item.
// IMPORTANT: Only use this backend if the backend and workers are running in the same process.
func NewMonoprocessBackend(b backend.Backend, signalBufferSize int, signalTimeout time.Duration) *monoprocessBackend {
	if signalTimeout <= 0 {
		signalTimeout = time.Second // default
	}

	signals := make(map[core.Queue]chan struct{}, len(core.Queues))
	for _, q := range core.Queues {
		signals[q] = make(chan struct{}, signalBufferSize)
	}

	return &monoprocessBackend{
		Backend:       b,
		signals:       signals,
		signalTimeout: signalTimeout,
		logger:        b.Options().Logger,
	}
}

// Dequeue waits for a signal when the queue is empty. The wait ends with the context, pollers bound it with
// a timeout so that items with expired leases are still picked up.
func (b *monoprocessBackend) Dequeue(ctx context.Context, queue core.Queue) (*backend.WorkItem, error) {
	if item, err := b.Backend.Dequeue(ctx, queue); item != nil || err != nil {
		return item, err
	}

	signal, ok := b.signals[queue]
	if !ok {
		return nil, nil
	}

	b.logger.DebugContext(ctx, "worker waiting for work item signal", "queue", queue)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-signal:
		b.logger.DebugContext(ctx, "worker got a work item signal", "queue", queue)
		return b.Dequeue(ctx, queue)
	}
}

func (b *monoprocessBackend) AppendEvents(
	ctx context.Context, instanceID string, expectedVersion int64, events []*history.Event, work ...*backend.WorkItem,
) error {
	if err := b.Backend.AppendEvents(ctx, instanceID, expectedVersion, events, work...); err != nil {
		return err
	}

	now := b.Options().Clock.Now()

	for _, item := range work {
		if item.VisibleAt != nil && item.VisibleAt.After(now) {
			queue := item.Queue
			b.Options().Clock.AfterFunc(item.VisibleAt.Sub(now), func() {
				b.notify(context.Background(), queue)
			})

			continue
		}

		if !b.notify(ctx, item.Queue) {
			break // no reason to notify more, queue is full
		}
	}

	return nil
}

func (b *monoprocessBackend) notify(ctx context.Context, queue core.Queue) bool {
	signal, ok := b.signals[queue]
	if !ok {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, b.signalTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		// The poller will pick up the item after its polling interval
		b.logger.DebugContext(ctx, "failed to signal work item to worker", "queue", queue, "reason", ctx.Err())
		return false
	case signal <- struct{}{}:
		b.logger.DebugContext(ctx, "signalled a new work item to worker", "queue", queue)
		return true
	}
}
