package client

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/memory"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/orchestration"
)

func newTestClient(t *testing.T) (*Client, backend.Backend, *clock.Mock) {
	t.Helper()

	c := clock.NewMock()
	c.Set(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	b := memory.NewMemoryBackend(backend.WithClock(c))
	t.Cleanup(func() { _ = b.Close() })

	return New(b), b, c
}

func Test_Client_CreateOrchestrationInstance_ParamMismatch(t *testing.T) {
	o := func(orchestration.Context, int) (int, error) {
		return 0, nil
	}

	c, _, _ := newTestClient(t)

	id, err := c.CreateOrchestrationInstance(context.Background(), InstanceOptions{InstanceID: "id"}, o, "foo")
	require.Zero(t, id)
	require.EqualError(t, err, "mismatched argument type: expected int, got string")
}

func Test_Client_CreateOrchestrationInstance(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newTestClient(t)

	id, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{}, "Greet", "gopher")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s, err := c.GetOrchestrationState(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Greet", s.Name)
	require.Equal(t, core.StatusPending, s.Status)
	require.Len(t, s.Inputs, 1)
	require.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), s.CreatedAt.UTC())

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ActiveInstances)
	require.Equal(t, int64(1), stats.PendingWorkItems[core.QueueOrchestrations])

	h, err := b.ReadHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, h, 1)
	require.Equal(t, history.EventType_ExecutionStarted, h[0].Type)
}

func Test_Client_CreateOrchestrationInstance_Duplicate(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t)

	_, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "dup"}, "Greet")
	require.NoError(t, err)

	_, err = c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "dup"}, "Greet")
	require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
}

func Test_Client_CreateOrchestrationInstance_Restart(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newTestClient(t)

	_, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "restart"}, "Greet")
	require.NoError(t, err)

	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "restart", "done"))

	_, err = c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "restart", RestartPolicy: RestartNever}, "Greet")
	require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)

	_, err = c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "restart"}, "Other")
	require.NoError(t, err)

	s, err := c.GetOrchestrationState(ctx, "restart")
	require.NoError(t, err)
	require.Equal(t, "Other", s.Name)
	require.Equal(t, core.StatusPending, s.Status)
	require.Empty(t, s.TerminationReason)

	h, err := b.ReadHistory(ctx, "restart")
	require.NoError(t, err)
	require.Len(t, h, 3)
}

func Test_Client_RaiseEvent(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newTestClient(t)

	err := c.RaiseEvent(ctx, "unknown", "approve", true)
	require.ErrorIs(t, err, backend.ErrInstanceNotFound)

	_, err = c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "events"}, "Approval")
	require.NoError(t, err)

	require.NoError(t, c.RaiseEvent(ctx, "events", "approve", true))

	h, err := b.ReadHistory(ctx, "events")
	require.NoError(t, err)
	require.Len(t, h, 2)
	require.Equal(t, history.EventType_EventRaised, h[1].Type)
	require.Equal(t, "approve", h[1].Attributes.(*history.EventRaisedAttributes).Name)

	// Events for terminal instances are dropped
	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "events", ""))
	require.NoError(t, c.RaiseEvent(ctx, "events", "approve", true))

	h, err = b.ReadHistory(ctx, "events")
	require.NoError(t, err)
	require.Len(t, h, 3)
}

func Test_Client_TerminateOrchestrationInstance(t *testing.T) {
	ctx := context.Background()
	c, b, _ := newTestClient(t)

	err := c.TerminateOrchestrationInstance(ctx, "unknown", "reason")
	require.ErrorIs(t, err, backend.ErrInstanceNotFound)

	_, err = c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "term"}, "Greet")
	require.NoError(t, err)

	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "term", "operator"))

	s, err := c.GetOrchestrationState(ctx, "term")
	require.NoError(t, err)
	require.Equal(t, core.StatusTerminated, s.Status)
	require.Equal(t, "operator", s.TerminationReason)
	require.NotNil(t, s.CompletedAt)

	// Terminating again is a no-op
	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "term", "again"))

	h, err := b.ReadHistory(ctx, "term")
	require.NoError(t, err)
	require.Len(t, h, 2)
}

func Test_Client_TerminateOrchestrationInstance_Children(t *testing.T) {
	ctx := context.Background()
	c, b, clk := newTestClient(t)

	_, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "parent"}, "Parent")
	require.NoError(t, err)

	started := history.NewHistoryEvent(clk.Now(), history.EventType_ExecutionStarted, &history.ExecutionStartedAttributes{
		Name:                "Child",
		ParentInstanceID:    "parent",
		ParentSequenceID:    2,
		ParentCorrelationID: 0,
	})
	require.NoError(t, b.AppendEvents(ctx, "child", 0, []*history.Event{started}))

	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "parent", "cascade"))

	s, err := c.GetOrchestrationState(ctx, "child")
	require.NoError(t, err)
	require.Equal(t, core.StatusTerminated, s.Status)
	require.Equal(t, "cascade", s.TerminationReason)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.ActiveInstances)

	// The initial orchestrate item of the parent and the result delivery of the child
	require.Equal(t, int64(2), stats.PendingWorkItems[core.QueueOrchestrations])
}

func Test_Client_PurgeOrchestrationInstance(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t)

	_, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: "purge"}, "Greet")
	require.NoError(t, err)

	err = c.PurgeOrchestrationInstance(ctx, "purge")
	require.ErrorIs(t, err, backend.ErrInstanceNotFinished)

	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "purge", ""))
	require.NoError(t, c.PurgeOrchestrationInstance(ctx, "purge"))

	_, err = c.GetOrchestrationState(ctx, "purge")
	require.ErrorIs(t, err, backend.ErrInstanceNotFound)
}

func Test_Client_PurgeOrchestrationInstances(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestClient(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: id}, "Greet")
		require.NoError(t, err)

		clk.Add(time.Minute)
	}

	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "a", ""))
	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "b", ""))

	n, err := c.PurgeOrchestrationInstances(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	instances, err := c.ListOrchestrationInstances(ctx, nil)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.Equal(t, "c", instances[0].InstanceID)
}

func Test_Client_ListOrchestrationInstances(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestClient(t)

	for _, id := range []string{"first", "second", "third"} {
		_, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{InstanceID: id}, "Greet")
		require.NoError(t, err)

		clk.Add(time.Second)
	}

	require.NoError(t, c.TerminateOrchestrationInstance(ctx, "second", ""))

	instances, err := c.ListOrchestrationInstances(ctx, &core.InstanceFilter{
		Statuses: []core.RuntimeStatus{core.StatusPending},
	})
	require.NoError(t, err)
	require.Len(t, instances, 2)
	require.Equal(t, "first", instances[0].InstanceID)
	require.Equal(t, "third", instances[1].InstanceID)

	instances, err = c.ListOrchestrationInstances(ctx, &core.InstanceFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.Equal(t, "first", instances[0].InstanceID)
}

func Test_Client_GetOrchestrationResultTimeout(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t)

	id, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{}, "Greet")
	require.NoError(t, err)

	result, err := GetOrchestrationResult[int](ctx, c, id, time.Millisecond)
	require.Zero(t, result)
	require.ErrorIs(t, err, ErrTimeout)
}

func Test_Client_GetOrchestrationResult_Terminated(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t)

	id, err := c.CreateOrchestrationInstance(ctx, InstanceOptions{}, "Greet")
	require.NoError(t, err)

	require.NoError(t, c.TerminateOrchestrationInstance(ctx, id, ""))

	_, err = GetOrchestrationResult[int](ctx, c, id, time.Second)
	require.ErrorIs(t, err, ErrOrchestrationTerminated)
}
