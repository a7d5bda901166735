package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/core"
)

func (rb *redisBackend) enqueue(ctx context.Context, p redis.Pipeliner, w *backend.WorkItem, now time.Time) error {
	item := *w
	item.ID = uuid.NewString()
	item.CreatedAt = now
	item.LockedUntil = nil
	item.DequeueCount = 0

	visibleAt := now
	if item.VisibleAt != nil {
		visibleAt = *item.VisibleAt
	}

	data, err := json.Marshal(&item)
	if err != nil {
		return fmt.Errorf("marshaling work item: %w", err)
	}

	p.HSet(ctx, rb.keys.workItems(), item.ID, data)
	p.ZAdd(ctx, rb.keys.queueKey(item.Queue), redis.Z{Score: score(visibleAt), Member: item.ID})
	p.SAdd(ctx, rb.keys.instanceWorkItems(item.InstanceID), item.ID)

	return nil
}

// Lease the first visible item of a queue. Visibility and lease share the ZSET score, leasing an item moves
// its score to the end of the lease.
// KEYS[1] - queue ZSET
// KEYS[2] - work items HASH
// KEYS[3] - leases HASH
// KEYS[4] - dequeue counts HASH
// ARGV[1] - current timestamp
// ARGV[2] - lease end timestamp
var dequeueCmd = redis.NewScript(`
	local ids = redis.call("ZRANGE", KEYS[1], "-inf", ARGV[1], "BYSCORE", "LIMIT", 0, 1)
	if #ids == 0 then
		return nil
	end

	local id = ids[1]
	redis.call("ZADD", KEYS[1], ARGV[2], id)
	redis.call("HSET", KEYS[3], id, ARGV[2])
	local count = redis.call("HINCRBY", KEYS[4], id, 1)

	return {id, redis.call("HGET", KEYS[2], id), count}
`)

func (rb *redisBackend) Dequeue(ctx context.Context, queue core.Queue) (*backend.WorkItem, error) {
	now := rb.now()
	lockedUntil := now.Add(rb.options.LeaseTimeout(queue))

	res, err := dequeueCmd.Run(ctx, rb.rdb, []string{
		rb.keys.queueKey(queue),
		rb.keys.workItems(),
		rb.keys.workItemLeases(),
		rb.keys.workItemDequeues(),
	}, timestamp(now), timestamp(lockedUntil)).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("dequeuing work item: %w", err)
	}

	data, ok := res[1].(string)
	if !ok {
		return nil, fmt.Errorf("work item %v has no data", res[0])
	}

	item := &backend.WorkItem{}
	if err := json.Unmarshal([]byte(data), item); err != nil {
		return nil, fmt.Errorf("unmarshaling work item: %w", err)
	}

	count, _ := res[2].(int64)
	item.DequeueCount = int(count)

	// Round trip through the stored precision, ExtendLease compares against the stored value
	lu, err := parseTimestamp(timestamp(lockedUntil))
	if err != nil {
		return nil, err
	}
	item.LockedUntil = &lu

	return item, nil
}

// Extend the lease of an item, if the caller still holds it.
// KEYS[1] - leases HASH
// KEYS[2] - queue ZSET
// ARGV[1] - work item ID
// ARGV[2] - current lease end timestamp
// ARGV[3] - new lease end timestamp
var extendLeaseCmd = redis.NewScript(`
	local current = redis.call("HGET", KEYS[1], ARGV[1])
	if current ~= ARGV[2] then
		return 0
	end

	redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
	redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])

	return 1
`)

func (rb *redisBackend) ExtendLease(ctx context.Context, item *backend.WorkItem) error {
	if item.LockedUntil == nil {
		return fmt.Errorf("extending lease of %s: %w", item.ID, backend.ErrWorkItemNotFound)
	}

	lockedUntil := rb.now().Add(rb.options.LeaseTimeout(item.Queue))

	n, err := extendLeaseCmd.Run(ctx, rb.rdb, []string{
		rb.keys.workItemLeases(),
		rb.keys.queueKey(item.Queue),
	}, item.ID, timestamp(*item.LockedUntil), timestamp(lockedUntil)).Int()
	if err != nil {
		return fmt.Errorf("extending lease: %w", err)
	}

	if n != 1 {
		return fmt.Errorf("extending lease of %s: %w", item.ID, backend.ErrWorkItemNotFound)
	}

	lu, err := parseTimestamp(timestamp(lockedUntil))
	if err != nil {
		return err
	}
	item.LockedUntil = &lu

	return nil
}

func (rb *redisBackend) Complete(ctx context.Context, item *backend.WorkItem) error {
	_, err := rb.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		rb.removeWorkItem(ctx, p, item.Queue, item.InstanceID, item.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("completing work item: %w", err)
	}

	return nil
}

func (rb *redisBackend) removeWorkItem(ctx context.Context, p redis.Pipeliner, queue core.Queue, instanceID, id string) {
	p.ZRem(ctx, rb.keys.queueKey(queue), id)
	p.HDel(ctx, rb.keys.workItems(), id)
	p.HDel(ctx, rb.keys.workItemLeases(), id)
	p.HDel(ctx, rb.keys.workItemDequeues(), id)
	p.SRem(ctx, rb.keys.instanceWorkItems(instanceID), id)
}

func queueLength(ctx context.Context, c redis.Cmdable, key string) (int64, error) {
	n, err := c.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("counting work items: %w", err)
	}

	return n, nil
}

