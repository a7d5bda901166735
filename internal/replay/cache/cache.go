package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
	"github.com/cschleiden/go-orchestrations/internal/replay"
)

// ExecutorCache keeps executors of recently replayed instances. An executor is checked out exclusively
// while it is in use, and stored again afterwards.
type ExecutorCache interface {
	// Checkout removes the executor for the given instance from the cache and returns it
	Checkout(ctx context.Context, instanceID string) (replay.OrchestrationExecutor, bool)

	// Store returns an executor to the cache
	Store(ctx context.Context, instanceID string, e replay.OrchestrationExecutor)

	StartEviction(ctx context.Context)
}

type lruCache struct {
	mu sync.Mutex
	mc metrics.Client
	c  *ttlcache.Cache[string, replay.OrchestrationExecutor]

	// unsubscribe removes the eviction handler and waits for running handlers
	unsubscribe func()
}

var _ ExecutorCache = (*lruCache)(nil)

func NewExecutorLRUCache(mc metrics.Client, size int, expiration time.Duration) *lruCache {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, replay.OrchestrationExecutor](uint64(size)),
		ttlcache.WithTTL[string, replay.OrchestrationExecutor](expiration),
	)

	unsubscribe := c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, replay.OrchestrationExecutor]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonDeleted:
			// Checked out, the executor is still in use
			return
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		}

		// Close the executor to allow it to clean up resources.
		i.Value().Close()

		mc.Counter(metrickeys.ExecutorCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &lruCache{
		mc:          mc,
		c:           c,
		unsubscribe: unsubscribe,
	}
}

func (lc *lruCache) Checkout(ctx context.Context, instanceID string) (replay.OrchestrationExecutor, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	i := lc.c.Get(instanceID)
	if i == nil {
		lc.mc.Counter(metrickeys.ExecutorCacheMiss, metrics.Tags{}, 1)
		return nil, false
	}

	lc.c.Delete(instanceID)

	lc.mc.Counter(metrickeys.ExecutorCacheHit, metrics.Tags{}, 1)
	lc.mc.Gauge(metrickeys.ExecutorCacheSize, metrics.Tags{}, int64(lc.c.Len()))

	return i.Value(), true
}

func (lc *lruCache) Store(ctx context.Context, instanceID string, e replay.OrchestrationExecutor) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if existing := lc.c.Get(instanceID); existing != nil {
		// Another executor for the same instance finished first, keep the most recent one
		lc.c.Delete(instanceID)

		if existing.Value() != e {
			existing.Value().Close()
		}
	}

	lc.c.Set(instanceID, e, ttlcache.DefaultTTL)

	lc.mc.Gauge(metrickeys.ExecutorCacheSize, metrics.Tags{}, int64(lc.c.Len()))
}

// StartEviction runs expiration of cached executors until ctx is canceled. Remaining executors are closed.
func (lc *lruCache) StartEviction(ctx context.Context) {
	go lc.c.Start()

	<-ctx.Done()

	lc.c.Stop()

	lc.mu.Lock()
	defer lc.mu.Unlock()

	for _, i := range lc.c.Items() {
		i.Value().Close()
	}

	lc.c.DeleteAll()

	lc.unsubscribe()
}
