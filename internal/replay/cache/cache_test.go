package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
	"github.com/cschleiden/go-orchestrations/internal/metrics"
	"github.com/cschleiden/go-orchestrations/internal/replay"
)

type testExecutor struct {
	closed atomic.Int32
}

func (e *testExecutor) Execute(ctx context.Context, h []*history.Event, now time.Time) (*replay.ExecutionResult, error) {
	return &replay.ExecutionResult{}, nil
}

func (e *testExecutor) Applied() int {
	return 0
}

func (e *testExecutor) Close() {
	e.closed.Add(1)
}

func Test_Cache_CheckoutIsExclusive(t *testing.T) {
	mc := metrics.NewRecorder()
	c := NewExecutorLRUCache(mc, 10, time.Minute)

	e := &testExecutor{}
	c.Store(context.Background(), "instance", e)

	re, ok := c.Checkout(context.Background(), "instance")
	require.True(t, ok)
	require.Equal(t, e, re)

	// Checked out executors are neither handed out again nor closed
	_, ok = c.Checkout(context.Background(), "instance")
	require.False(t, ok)
	require.Equal(t, int32(0), e.closed.Load())

	require.Equal(t, int64(1), mc.CounterValue(metrickeys.ExecutorCacheHit))
	require.Equal(t, int64(1), mc.CounterValue(metrickeys.ExecutorCacheMiss))
}

func Test_Cache_CapacityEvictionClosesExecutor(t *testing.T) {
	c := NewExecutorLRUCache(metrics.NewNoopMetricsClient(), 1, time.Minute)

	e1 := &testExecutor{}
	e2 := &testExecutor{}

	c.Store(context.Background(), "instance1", e1)
	c.Store(context.Background(), "instance2", e2)

	_, ok := c.Checkout(context.Background(), "instance1")
	require.False(t, ok)

	// Eviction handlers run asynchronously
	require.Eventually(t, func() bool {
		return e1.closed.Load() == 1
	}, time.Second, time.Millisecond*5)
	require.Equal(t, int32(0), e2.closed.Load())
}

func Test_Cache_StoreReplacesAndClosesPrevious(t *testing.T) {
	c := NewExecutorLRUCache(metrics.NewNoopMetricsClient(), 10, time.Minute)

	e1 := &testExecutor{}
	e2 := &testExecutor{}

	c.Store(context.Background(), "instance", e1)
	c.Store(context.Background(), "instance", e2)

	require.Equal(t, int32(1), e1.closed.Load())

	re, ok := c.Checkout(context.Background(), "instance")
	require.True(t, ok)
	require.Equal(t, e2, re)
	require.Equal(t, int32(0), e2.closed.Load())
}

func Test_Cache_AutoEviction(t *testing.T) {
	c := NewExecutorLRUCache(metrics.NewNoopMetricsClient(), 10, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.StartEviction(ctx)
		close(done)
	}()

	e := &testExecutor{}
	c.Store(context.Background(), "instance", e)

	require.Eventually(t, func() bool {
		return e.closed.Load() == 1
	}, time.Second, time.Millisecond*5)

	cancel()
	<-done

	require.Equal(t, int32(1), e.closed.Load())
}
