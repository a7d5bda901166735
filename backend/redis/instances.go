package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/core"
)

func (rb *redisBackend) GetInstance(ctx context.Context, instanceID string) (*core.InstanceState, error) {
	return readInstanceState(ctx, rb.rdb, rb.keys.instanceKey(instanceID))
}

// ListInstances walks the creation index and filters the instance states.
func (rb *redisBackend) ListInstances(ctx context.Context, filter *core.InstanceFilter) ([]*core.InstanceState, error) {
	if filter == nil {
		filter = &core.InstanceFilter{}
	}

	rangeBy := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if filter.CreatedAfter != nil {
		rangeBy.Min = timestamp(*filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		rangeBy.Max = timestamp(*filter.CreatedBefore)
	}

	ids, err := rb.rdb.ZRangeByScore(ctx, rb.keys.instancesByCreation(), rangeBy).Result()
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	result := []*core.InstanceState{}

	const batchSize = 100
	for start := 0; start < len(ids); start += batchSize {
		batch := ids[start:min(start+batchSize, len(ids))]

		instanceKeys := make([]string, 0, len(batch))
		for _, id := range batch {
			instanceKeys = append(instanceKeys, rb.keys.instanceKey(id))
		}

		values, err := rb.rdb.MGet(ctx, instanceKeys...).Result()
		if err != nil {
			return nil, fmt.Errorf("reading instances: %w", err)
		}

		for _, v := range values {
			data, ok := v.(string)
			if !ok {
				// Purged concurrently
				continue
			}

			state := &core.InstanceState{}
			if err := json.Unmarshal([]byte(data), state); err != nil {
				return nil, fmt.Errorf("unmarshaling instance state: %w", err)
			}

			if !filter.Matches(state) {
				continue
			}

			result = append(result, state)

			if filter.Limit > 0 && len(result) >= filter.Limit {
				return result, nil
			}
		}
	}

	return result, nil
}

func (rb *redisBackend) PurgeInstance(ctx context.Context, instanceID string) error {
	instanceKey := rb.keys.instanceKey(instanceID)
	workKey := rb.keys.instanceWorkItems(instanceID)

	err := rb.rdb.Watch(ctx, func(tx *redis.Tx) error {
		state, err := readInstanceState(ctx, tx, instanceKey)
		if err != nil {
			return err
		}

		if !state.Terminal() {
			return backend.ErrInstanceNotFinished
		}

		workItemIDs, err := tx.SMembers(ctx, workKey).Result()
		if err != nil {
			return fmt.Errorf("reading work items: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, instanceKey, rb.keys.historyKey(instanceID))
			p.ZRem(ctx, rb.keys.instancesByCreation(), instanceID)
			p.SRem(ctx, rb.keys.instancesActive(), instanceID)

			for _, id := range workItemIDs {
				for _, q := range core.Queues {
					rb.removeWorkItem(ctx, p, q, instanceID, id)
				}
			}

			p.Del(ctx, workKey)

			return nil
		})

		return err
	}, instanceKey)

	if errors.Is(err, redis.TxFailedErr) {
		return &backend.ConflictError{InstanceID: instanceID, ActualVersion: -1}
	}

	return err
}

func (rb *redisBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	s := &backend.Stats{
		PendingWorkItems: map[core.Queue]int64{},
	}

	active, err := rb.rdb.SCard(ctx, rb.keys.instancesActive()).Result()
	if err != nil {
		return nil, fmt.Errorf("counting active instances: %w", err)
	}
	s.ActiveInstances = active

	for _, q := range core.Queues {
		n, err := queueLength(ctx, rb.rdb, rb.keys.queueKey(q))
		if err != nil {
			return nil, err
		}

		s.PendingWorkItems[q] = n
	}

	return s, nil
}
