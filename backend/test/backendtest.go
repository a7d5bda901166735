package test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
)

// Setup creates a backend for a single test. Backends sharing storage have to use a fresh task hub unless
// one is passed in options.
type Setup func(options ...backend.BackendOption) backend.Backend

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type conformanceTest struct {
	name string
	f    func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock)
}

// BackendTest checks that a provider implements the History Store and Work Queue contracts.
func BackendTest(t *testing.T, setup Setup, teardown func(b backend.Backend)) {
	tests := []conformanceTest{
		{
			name: "ReadHistory_UnknownInstanceIsEmpty",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				h, err := b.ReadHistory(ctx, uuid.NewString())
				require.NoError(t, err)
				require.Empty(t, h)
			},
		},
		{
			name: "AppendEvents_AssignsSequenceIDs",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()

				events := []*history.Event{
					startedEvent(c.Now(), "orch", payload.Payload(`"input"`)),
					history.NewHistoryEvent(c.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{}),
				}
				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, events))

				scheduled := history.NewHistoryEvent(c.Now(), history.EventType_TaskScheduled, &history.TaskScheduledAttributes{
					Name:    "activity",
					Inputs:  []payload.Payload{payload.Payload(`1`)},
					Attempt: 2,
				}, history.CorrelationID(3))
				require.NoError(t, b.AppendEvents(ctx, instanceID, 2, []*history.Event{scheduled}))

				h, err := b.ReadHistory(ctx, instanceID)
				require.NoError(t, err)
				require.Len(t, h, 3)

				for i, e := range h {
					require.Equal(t, int64(i+1), e.SequenceID)
				}

				require.Equal(t, events[0].ID, h[0].ID)
				require.Equal(t, history.EventType_ExecutionStarted, h[0].Type)
				require.WithinDuration(t, c.Now(), h[0].Timestamp, time.Millisecond)

				esa := h[0].Attributes.(*history.ExecutionStartedAttributes)
				require.Equal(t, "orch", esa.Name)
				require.Equal(t, []payload.Payload{payload.Payload(`"input"`)}, esa.Inputs)

				require.Equal(t, int64(3), h[2].CorrelationID)
				tsa := h[2].Attributes.(*history.TaskScheduledAttributes)
				require.Equal(t, "activity", tsa.Name)
				require.Equal(t, 2, tsa.Attempt)
			},
		},
		{
			name: "AppendEvents_PersistsErrorDescriptors",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()

				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{
					startedEvent(c.Now(), "orch"),
					history.NewHistoryEvent(c.Now(), history.EventType_TaskFailed, &history.TaskFailedAttributes{
						Error: orchestrationerrors.NewPermanentError(errTest),
					}, history.CorrelationID(0)),
				}))

				h, err := b.ReadHistory(ctx, instanceID)
				require.NoError(t, err)

				a := h[1].Attributes.(*history.TaskFailedAttributes)
				require.Equal(t, "test error", a.Error.Message)
				require.True(t, a.Error.Permanent)
			},
		},
		{
			name: "AppendEvents_ConflictOnWrongVersion",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()

				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")}))

				err := b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")})
				require.ErrorIs(t, err, backend.ErrConflict)

				var ce *backend.ConflictError
				require.ErrorAs(t, err, &ce)
				require.Equal(t, int64(0), ce.ExpectedVersion)

				err = b.AppendEvents(ctx, instanceID, 5, []*history.Event{orchestratorStarted(c.Now())})
				require.ErrorIs(t, err, backend.ErrConflict)

				h, err := b.ReadHistory(ctx, instanceID)
				require.NoError(t, err)
				require.Len(t, h, 1)
			},
		},
		{
			name: "AppendEvents_ConcurrentWritersOneWins",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()
				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")}))

				const writers = 5

				var wg sync.WaitGroup
				errs := make([]error, writers)
				for i := 0; i < writers; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						errs[i] = b.AppendEvents(ctx, instanceID, 1, []*history.Event{orchestratorStarted(c.Now())})
					}(i)
				}
				wg.Wait()

				succeeded := 0
				for _, err := range errs {
					if err == nil {
						succeeded++
					} else {
						require.ErrorIs(t, err, backend.ErrConflict)
					}
				}

				require.Equal(t, 1, succeeded)

				h, err := b.ReadHistory(ctx, instanceID)
				require.NoError(t, err)
				require.Len(t, h, 2)
			},
		},
		{
			name: "GetInstance_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				_, err := b.GetInstance(ctx, uuid.NewString())
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "GetInstance_ProjectsHistory",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()

				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")}))

				s, err := b.GetInstance(ctx, instanceID)
				require.NoError(t, err)
				require.Equal(t, instanceID, s.InstanceID)
				require.Equal(t, "orch", s.Name)
				require.Equal(t, core.StatusPending, s.Status)
				require.Equal(t, int64(1), s.Version)

				c.Add(time.Second)
				require.NoError(t, b.AppendEvents(ctx, instanceID, 1, []*history.Event{
					orchestratorStarted(c.Now()),
					history.NewHistoryEvent(c.Now(), history.EventType_CustomStatusUpdated, &history.CustomStatusUpdatedAttributes{
						Status: payload.Payload(`"half"`),
					}),
					history.NewHistoryEvent(c.Now(), history.EventType_ExecutionCompleted, &history.ExecutionCompletedAttributes{
						Result: payload.Payload(`42`),
					}),
				}))

				s, err = b.GetInstance(ctx, instanceID)
				require.NoError(t, err)
				require.Equal(t, core.StatusCompleted, s.Status)
				require.Equal(t, payload.Payload(`42`), s.Output)
				require.Equal(t, payload.Payload(`"half"`), s.CustomStatus)
				require.Equal(t, int64(4), s.Version)
				require.NotNil(t, s.CompletedAt)
				require.WithinDuration(t, c.Now(), *s.CompletedAt, time.Millisecond)
			},
		},
		{
			name: "Dequeue_EmptyQueueReturnsNil",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				for _, q := range core.Queues {
					item, err := b.Dequeue(ctx, q)
					require.NoError(t, err)
					require.Nil(t, item)
				}
			},
		},
		{
			name: "AppendEvents_EnqueuesWorkAtomically",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()

				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")},
					backend.NewOrchestrateWorkItem(instanceID)))

				// A lost append does not enqueue anything
				err := b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")},
					backend.NewActivityWorkItem(instanceID, 1))
				require.ErrorIs(t, err, backend.ErrConflict)

				item, err := b.Dequeue(ctx, core.QueueOrchestrations)
				require.NoError(t, err)
				require.NotNil(t, item)
				require.NotEmpty(t, item.ID)
				require.Equal(t, instanceID, item.InstanceID)
				require.Equal(t, backend.WorkItemOrchestrate, item.Kind)
				require.Equal(t, core.QueueOrchestrations, item.Queue)
				require.Equal(t, 1, item.DequeueCount)
				require.NotNil(t, item.LockedUntil)

				// Leased items are not handed out again
				item, err = b.Dequeue(ctx, core.QueueOrchestrations)
				require.NoError(t, err)
				require.Nil(t, item)

				item, err = b.Dequeue(ctx, core.QueueActivities)
				require.NoError(t, err)
				require.Nil(t, item)
			},
		},
		{
			name: "Dequeue_RespectsVisibility",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()
				fireAt := c.Now().Add(time.Minute)

				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{
					startedEvent(c.Now(), "orch"),
					history.NewHistoryEvent(c.Now(), history.EventType_TimerCreated, &history.TimerCreatedAttributes{FireAt: fireAt}),
				}, backend.NewTimerWorkItem(instanceID, 2, fireAt)))

				item, err := b.Dequeue(ctx, core.QueueTimers)
				require.NoError(t, err)
				require.Nil(t, item)

				c.Add(2 * time.Minute)

				item, err = b.Dequeue(ctx, core.QueueTimers)
				require.NoError(t, err)
				require.NotNil(t, item)
				require.Equal(t, int64(2), item.SequenceID)
				require.Equal(t, backend.WorkItemTimer, item.Kind)
			},
		},
		{
			name: "Dequeue_ExpiredLeaseIsRedelivered",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()
				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")},
					backend.NewOrchestrateWorkItem(instanceID)))

				first, err := b.Dequeue(ctx, core.QueueOrchestrations)
				require.NoError(t, err)
				require.NotNil(t, first)

				c.Add(b.Options().OrchestrationLockTimeout + time.Second)

				second, err := b.Dequeue(ctx, core.QueueOrchestrations)
				require.NoError(t, err)
				require.NotNil(t, second)
				require.Equal(t, first.ID, second.ID)
				require.Equal(t, 2, second.DequeueCount)

				// The first lease is lost
				require.ErrorIs(t, b.ExtendLease(ctx, first), backend.ErrWorkItemNotFound)
				require.NoError(t, b.ExtendLease(ctx, second))
			},
		},
		{
			name: "ExtendLease_KeepsItemHidden",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()
				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{
					startedEvent(c.Now(), "orch"),
					history.NewHistoryEvent(c.Now(), history.EventType_TaskScheduled, &history.TaskScheduledAttributes{Name: "a"}),
				}, backend.NewActivityWorkItem(instanceID, 2)))

				item, err := b.Dequeue(ctx, core.QueueActivities)
				require.NoError(t, err)
				require.NotNil(t, item)

				lease := b.Options().ActivityLockTimeout

				c.Add(lease * 2 / 3)
				require.NoError(t, b.ExtendLease(ctx, item))
				c.Add(lease * 2 / 3)

				again, err := b.Dequeue(ctx, core.QueueActivities)
				require.NoError(t, err)
				require.Nil(t, again)
			},
		},
		{
			name: "Complete_RemovesItem",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()
				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")},
					backend.NewOrchestrateWorkItem(instanceID)))

				item, err := b.Dequeue(ctx, core.QueueOrchestrations)
				require.NoError(t, err)
				require.NoError(t, b.Complete(ctx, item))

				c.Add(time.Hour)

				item, err = b.Dequeue(ctx, core.QueueOrchestrations)
				require.NoError(t, err)
				require.Nil(t, item)
			},
		},
		{
			name: "ListInstances_FiltersAndOrders",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}

				for i, id := range ids {
					name := "a"
					if i == 1 {
						name = "b"
					}

					c.Add(time.Minute)
					require.NoError(t, b.AppendEvents(ctx, id, 0, []*history.Event{startedEvent(c.Now(), name)}))
				}

				require.NoError(t, b.AppendEvents(ctx, ids[2], 1, []*history.Event{
					history.NewHistoryEvent(c.Now(), history.EventType_ExecutionTerminated, &history.ExecutionTerminatedAttributes{Reason: "r"}),
				}))

				all, err := b.ListInstances(ctx, &core.InstanceFilter{})
				require.NoError(t, err)
				require.Equal(t, ids, instanceIDs(all))

				byName, err := b.ListInstances(ctx, &core.InstanceFilter{Name: "a"})
				require.NoError(t, err)
				require.Equal(t, []string{ids[0], ids[2]}, instanceIDs(byName))

				byStatus, err := b.ListInstances(ctx, &core.InstanceFilter{Statuses: []core.RuntimeStatus{core.StatusTerminated}})
				require.NoError(t, err)
				require.Equal(t, []string{ids[2]}, instanceIDs(byStatus))

				limited, err := b.ListInstances(ctx, &core.InstanceFilter{Limit: 2})
				require.NoError(t, err)
				require.Equal(t, ids[:2], instanceIDs(limited))

				after := epoch.Add(90 * time.Second)
				created, err := b.ListInstances(ctx, &core.InstanceFilter{CreatedAfter: &after})
				require.NoError(t, err)
				require.Equal(t, ids[1:], instanceIDs(created))
			},
		},
		{
			name: "PurgeInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				instanceID := uuid.NewString()

				require.ErrorIs(t, b.PurgeInstance(ctx, instanceID), backend.ErrInstanceNotFound)

				require.NoError(t, b.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")},
					backend.NewOrchestrateWorkItem(instanceID)))

				require.ErrorIs(t, b.PurgeInstance(ctx, instanceID), backend.ErrInstanceNotFinished)

				require.NoError(t, b.AppendEvents(ctx, instanceID, 1, []*history.Event{
					history.NewHistoryEvent(c.Now(), history.EventType_ExecutionTerminated, &history.ExecutionTerminatedAttributes{}),
				}))

				require.NoError(t, b.PurgeInstance(ctx, instanceID))

				_, err := b.GetInstance(ctx, instanceID)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)

				h, err := b.ReadHistory(ctx, instanceID)
				require.NoError(t, err)
				require.Empty(t, h)

				item, err := b.Dequeue(ctx, core.QueueOrchestrations)
				require.NoError(t, err)
				require.Nil(t, item)
			},
		},
		{
			name: "GetStats",
			f: func(t *testing.T, ctx context.Context, b backend.Backend, c *clock.Mock) {
				active := uuid.NewString()
				require.NoError(t, b.AppendEvents(ctx, active, 0, []*history.Event{
					startedEvent(c.Now(), "orch"),
					history.NewHistoryEvent(c.Now(), history.EventType_TaskScheduled, &history.TaskScheduledAttributes{Name: "a"}),
				}, backend.NewOrchestrateWorkItem(active), backend.NewActivityWorkItem(active, 2)))

				done := uuid.NewString()
				require.NoError(t, b.AppendEvents(ctx, done, 0, []*history.Event{
					startedEvent(c.Now(), "orch"),
					history.NewHistoryEvent(c.Now(), history.EventType_ExecutionTerminated, &history.ExecutionTerminatedAttributes{}),
				}))

				s, err := b.GetStats(ctx)
				require.NoError(t, err)
				require.Equal(t, int64(1), s.ActiveInstances)
				require.Equal(t, int64(1), s.PendingWorkItems[core.QueueOrchestrations])
				require.Equal(t, int64(1), s.PendingWorkItems[core.QueueActivities])
				require.Equal(t, int64(0), s.PendingWorkItems[core.QueueTimers])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewMock()
			c.Set(epoch)

			b := setup(backend.WithClock(c))

			tt.f(t, context.Background(), b, c)

			if teardown != nil {
				teardown(b)
			}
		})
	}

	t.Run("TaskHubsAreIsolated", func(t *testing.T) {
		ctx := context.Background()

		c := clock.NewMock()
		c.Set(epoch)

		b1 := setup(backend.WithClock(c), backend.WithTaskHub("hub-"+uuid.NewString()))
		b2 := setup(backend.WithClock(c), backend.WithTaskHub("hub-"+uuid.NewString()))

		instanceID := uuid.NewString()
		require.NoError(t, b1.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "orch")},
			backend.NewOrchestrateWorkItem(instanceID)))

		h, err := b2.ReadHistory(ctx, instanceID)
		require.NoError(t, err)
		require.Empty(t, h)

		item, err := b2.Dequeue(ctx, core.QueueOrchestrations)
		require.NoError(t, err)
		require.Nil(t, item)

		// Same instance ID in another hub is a different instance
		require.NoError(t, b2.AppendEvents(ctx, instanceID, 0, []*history.Event{startedEvent(c.Now(), "other")}))

		s, err := b1.GetInstance(ctx, instanceID)
		require.NoError(t, err)
		require.Equal(t, "orch", s.Name)

		if teardown != nil {
			teardown(b1)
			teardown(b2)
		}
	})
}

func startedEvent(ts time.Time, name string, inputs ...payload.Payload) *history.Event {
	return history.NewHistoryEvent(ts, history.EventType_ExecutionStarted, &history.ExecutionStartedAttributes{
		Name:   name,
		Inputs: inputs,
	})
}

func orchestratorStarted(ts time.Time) *history.Event {
	return history.NewHistoryEvent(ts, history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{})
}

func instanceIDs(states []*core.InstanceState) []string {
	ids := make([]string, 0, len(states))
	for _, s := range states {
		ids = append(ids, s.InstanceID)
	}

	return ids
}
