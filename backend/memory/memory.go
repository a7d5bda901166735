// Package memory provides a History Store and Work Queues kept in process memory. Each backend value is a
// separate task hub. State is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
)

type instance struct {
	state   *core.InstanceState
	history []*history.Event
}

type memoryBackend struct {
	options backend.Options

	mu        sync.Mutex
	instances map[string]*instance
	queues    map[core.Queue][]*backend.WorkItem
}

var _ backend.Backend = (*memoryBackend)(nil)

func NewMemoryBackend(opts ...backend.BackendOption) *memoryBackend {
	return &memoryBackend{
		options:   backend.ApplyOptions(opts...),
		instances: map[string]*instance{},
		queues:    map[core.Queue][]*backend.WorkItem{},
	}
}

func (mb *memoryBackend) AppendEvents(
	ctx context.Context, instanceID string, expectedVersion int64, events []*history.Event, work ...*backend.WorkItem,
) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	i, ok := mb.instances[instanceID]
	if !ok {
		i = &instance{state: core.NewInstanceState(instanceID)}
	}

	if actual := int64(len(i.history)); actual != expectedVersion {
		return &backend.ConflictError{InstanceID: instanceID, ExpectedVersion: expectedVersion, ActualVersion: actual}
	}

	if !ok && len(events) > 0 {
		mb.instances[instanceID] = i
	}

	for n, e := range events {
		stored := *e
		stored.SequenceID = expectedVersion + int64(n) + 1
		e.SequenceID = stored.SequenceID

		i.history = append(i.history, &stored)
		i.state.Apply(&stored)
	}

	now := mb.options.Clock.Now()
	for _, w := range work {
		mb.enqueue(w, now)
	}

	return nil
}

func (mb *memoryBackend) enqueue(w *backend.WorkItem, now time.Time) {
	item := *w
	item.ID = uuid.NewString()
	item.CreatedAt = now
	item.LockedUntil = nil
	item.DequeueCount = 0

	if item.VisibleAt == nil {
		item.VisibleAt = &now
	}

	mb.queues[item.Queue] = append(mb.queues[item.Queue], &item)
}

func (mb *memoryBackend) ReadHistory(ctx context.Context, instanceID string) ([]*history.Event, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	i, ok := mb.instances[instanceID]
	if !ok {
		return []*history.Event{}, nil
	}

	h := make([]*history.Event, len(i.history))
	for n, e := range i.history {
		ec := *e
		h[n] = &ec
	}

	return h, nil
}

func (mb *memoryBackend) GetInstance(ctx context.Context, instanceID string) (*core.InstanceState, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	i, ok := mb.instances[instanceID]
	if !ok {
		return nil, backend.ErrInstanceNotFound
	}

	s := *i.state
	return &s, nil
}

func (mb *memoryBackend) ListInstances(ctx context.Context, filter *core.InstanceFilter) ([]*core.InstanceState, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	r := []*core.InstanceState{}
	for _, i := range mb.instances {
		if filter.Matches(i.state) {
			s := *i.state
			r = append(r, &s)
		}
	}

	sort.Slice(r, func(a, b int) bool {
		if r[a].CreatedAt.Equal(r[b].CreatedAt) {
			return r[a].InstanceID < r[b].InstanceID
		}

		return r[a].CreatedAt.Before(r[b].CreatedAt)
	})

	if filter != nil && filter.Limit > 0 && len(r) > filter.Limit {
		r = r[:filter.Limit]
	}

	return r, nil
}

func (mb *memoryBackend) PurgeInstance(ctx context.Context, instanceID string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	i, ok := mb.instances[instanceID]
	if !ok {
		return backend.ErrInstanceNotFound
	}

	if !i.state.Terminal() {
		return backend.ErrInstanceNotFinished
	}

	delete(mb.instances, instanceID)

	for q, items := range mb.queues {
		kept := items[:0]
		for _, item := range items {
			if item.InstanceID != instanceID {
				kept = append(kept, item)
			}
		}

		mb.queues[q] = kept
	}

	return nil
}

func (mb *memoryBackend) Dequeue(ctx context.Context, queue core.Queue) (*backend.WorkItem, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	now := mb.options.Clock.Now()

	var next *backend.WorkItem
	for _, item := range mb.queues[queue] {
		if item.VisibleAt.After(now) || (item.LockedUntil != nil && item.LockedUntil.After(now)) {
			continue
		}

		if next == nil || item.VisibleAt.Before(*next.VisibleAt) {
			next = item
		}
	}

	if next == nil {
		return nil, nil
	}

	lockedUntil := now.Add(mb.options.LeaseTimeout(queue))
	next.LockedUntil = &lockedUntil
	next.DequeueCount++

	r := *next
	return &r, nil
}

func (mb *memoryBackend) ExtendLease(ctx context.Context, item *backend.WorkItem) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	stored := mb.find(item)
	if stored == nil || stored.LockedUntil == nil || item.LockedUntil == nil || !stored.LockedUntil.Equal(*item.LockedUntil) {
		return fmt.Errorf("extending lease of %s: %w", item.ID, backend.ErrWorkItemNotFound)
	}

	lockedUntil := mb.options.Clock.Now().Add(mb.options.LeaseTimeout(item.Queue))
	stored.LockedUntil = &lockedUntil
	item.LockedUntil = &lockedUntil

	return nil
}

func (mb *memoryBackend) Complete(ctx context.Context, item *backend.WorkItem) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	items := mb.queues[item.Queue]
	for n, stored := range items {
		if stored.ID == item.ID {
			mb.queues[item.Queue] = append(items[:n], items[n+1:]...)
			return nil
		}
	}

	return nil
}

func (mb *memoryBackend) find(item *backend.WorkItem) *backend.WorkItem {
	for _, stored := range mb.queues[item.Queue] {
		if stored.ID == item.ID {
			return stored
		}
	}

	return nil
}

func (mb *memoryBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	s := &backend.Stats{
		PendingWorkItems: map[core.Queue]int64{},
	}

	for _, i := range mb.instances {
		if !i.state.Terminal() {
			s.ActiveInstances++
		}
	}

	for _, q := range core.Queues {
		s.PendingWorkItems[q] = int64(len(mb.queues[q]))
	}

	return s, nil
}

func (mb *memoryBackend) Tracer() trace.Tracer {
	return mb.options.TracerProvider.Tracer(backend.TracerName)
}

func (mb *memoryBackend) Metrics() metrics.Client {
	return mb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "memory"})
}

func (mb *memoryBackend) Options() *backend.Options {
	return &mb.options
}

func (mb *memoryBackend) Close() error {
	return nil
}
