package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/memory"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/registry"
)

func countHistory(h []*history.Event, t history.EventType) int {
	n := 0
	for _, e := range h {
		if e.Type == t {
			n++
		}
	}

	return n
}

// A worker crashing after executing an activity but before appending its result causes exactly one more
// execution once the lease expires, and a single completion in history.
func TestActivityWorker_CrashBeforeAppendIsRedelivered(t *testing.T) {
	ctx := context.Background()
	c := clock.NewMock()
	b := memory.NewMemoryBackend(backend.WithClock(c), backend.WithActivityLockTimeout(time.Minute))

	var invocations atomic.Int32
	r := registry.New()
	require.NoError(t, r.RegisterActivity(func(ctx context.Context) (int, error) {
		return int(invocations.Add(1)), nil
	}, registry.WithName("act")))

	require.NoError(t, b.AppendEvents(ctx, "i1", 0, []*history.Event{
		history.NewHistoryEvent(c.Now(), history.EventType_ExecutionStarted, &history.ExecutionStartedAttributes{Name: "orch"}),
		history.NewHistoryEvent(c.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{}),
		history.NewHistoryEvent(c.Now(), history.EventType_TaskScheduled, &history.TaskScheduledAttributes{Name: "act"}, history.CorrelationID(0)),
	}, backend.NewActivityWorkItem("i1", 3)))

	w := NewActivityWorker(b, r, WorkerOptions{})

	item, err := b.Dequeue(ctx, core.QueueActivities)
	require.NoError(t, err)
	require.NotNil(t, item)

	first, err := w.tw.Execute(ctx, item)
	require.NoError(t, err)
	require.Equal(t, int32(1), invocations.Load())

	// Crash: the result is never appended, the lease expires
	c.Add(time.Minute + time.Second)

	redelivered, err := b.Dequeue(ctx, core.QueueActivities)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	require.Equal(t, item.SequenceID, redelivered.SequenceID)

	second, err := w.tw.Execute(ctx, redelivered)
	require.NoError(t, err)
	require.NoError(t, w.tw.Complete(ctx, second, redelivered))
	require.Equal(t, int32(2), invocations.Load())

	// A late completion of the first execution is dropped
	delivered, err := deliverCompletion(ctx, b, b.Options().Logger, "i1", item.SequenceID,
		history.NewHistoryEvent(c.Now(), history.EventType_TaskCompleted, &history.TaskCompletedAttributes{Result: first.result},
			history.CorrelationID(0)))
	require.NoError(t, err)
	require.False(t, delivered)

	h, err := b.ReadHistory(ctx, "i1")
	require.NoError(t, err)
	require.Equal(t, 1, countHistory(h, history.EventType_TaskScheduled))
	require.Equal(t, 1, countHistory(h, history.EventType_TaskCompleted))

	// Replay is triggered once
	s, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), s.PendingWorkItems[core.QueueOrchestrations])
	require.Zero(t, s.PendingWorkItems[core.QueueActivities])
}

func TestActivityWorker_TerminatedInstance_RunsAndDropsCompletion(t *testing.T) {
	ctx := context.Background()
	b := memory.NewMemoryBackend()

	var invocations atomic.Int32
	r := registry.New()
	require.NoError(t, r.RegisterActivity(func(ctx context.Context) (int, error) {
		return int(invocations.Add(1)), nil
	}, registry.WithName("act")))

	now := time.Now()
	require.NoError(t, b.AppendEvents(ctx, "i1", 0, []*history.Event{
		history.NewHistoryEvent(now, history.EventType_ExecutionStarted, &history.ExecutionStartedAttributes{Name: "orch"}),
		history.NewHistoryEvent(now, history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{}),
		history.NewHistoryEvent(now, history.EventType_TaskScheduled, &history.TaskScheduledAttributes{Name: "act"}, history.CorrelationID(0)),
		history.NewHistoryEvent(now, history.EventType_ExecutionTerminated, &history.ExecutionTerminatedAttributes{Reason: "user cancel"}),
	}, backend.NewActivityWorkItem("i1", 3)))

	w := NewActivityWorker(b, r, WorkerOptions{})

	item, err := b.Dequeue(ctx, core.QueueActivities)
	require.NoError(t, err)

	res, err := w.tw.Execute(ctx, item)
	require.NoError(t, err)
	require.NoError(t, w.tw.Complete(ctx, res, item))

	require.Equal(t, int32(1), invocations.Load())

	h, err := b.ReadHistory(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, h, 4)
	require.Equal(t, history.EventType_ExecutionTerminated, h[3].Type)

	s, err := b.GetStats(ctx)
	require.NoError(t, err)
	require.Zero(t, s.PendingWorkItems[core.QueueOrchestrations])
	require.Zero(t, s.PendingWorkItems[core.QueueActivities])
}
