package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/core"
)

// AppendEvents uses optimistic locking on the instance key. The version check happens in the WATCH block,
// the writes in a MULTI/EXEC transaction which fails if another writer touched the instance meanwhile.
func (rb *redisBackend) AppendEvents(
	ctx context.Context, instanceID string, expectedVersion int64, events []*history.Event, work ...*backend.WorkItem,
) error {
	instanceKey := rb.keys.instanceKey(instanceID)

	err := rb.rdb.Watch(ctx, func(tx *redis.Tx) error {
		state, err := readInstanceState(ctx, tx, instanceKey)
		if err != nil && !errors.Is(err, backend.ErrInstanceNotFound) {
			return err
		}

		var version int64
		if state != nil {
			version = state.Version
		}

		if version != expectedVersion {
			return &backend.ConflictError{InstanceID: instanceID, ExpectedVersion: expectedVersion, ActualVersion: version}
		}

		if state == nil {
			state = core.NewInstanceState(instanceID)
		}

		serialized := make([]any, 0, len(events))
		for i, e := range events {
			e.SequenceID = expectedVersion + int64(i) + 1
			state.Apply(e)

			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshaling event: %w", err)
			}

			serialized = append(serialized, string(data))
		}

		stateData, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshaling instance state: %w", err)
		}

		now := rb.now()

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if len(events) > 0 {
				p.Set(ctx, instanceKey, stateData, 0)
				p.RPush(ctx, rb.keys.historyKey(instanceID), serialized...)
				p.ZAdd(ctx, rb.keys.instancesByCreation(), redis.Z{Score: score(state.CreatedAt), Member: instanceID})

				if state.Terminal() {
					p.SRem(ctx, rb.keys.instancesActive(), instanceID)
				} else {
					p.SAdd(ctx, rb.keys.instancesActive(), instanceID)
				}
			}

			for _, w := range work {
				if err := rb.enqueue(ctx, p, w, now); err != nil {
					return err
				}
			}

			return nil
		})

		return err
	}, instanceKey)

	if errors.Is(err, redis.TxFailedErr) {
		return &backend.ConflictError{InstanceID: instanceID, ExpectedVersion: expectedVersion, ActualVersion: -1}
	}

	return err
}

func (rb *redisBackend) ReadHistory(ctx context.Context, instanceID string) ([]*history.Event, error) {
	msgs, err := rb.rdb.LRange(ctx, rb.keys.historyKey(instanceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	h := make([]*history.Event, 0, len(msgs))
	for _, msg := range msgs {
		var e history.Event
		if err := json.Unmarshal([]byte(msg), &e); err != nil {
			return nil, fmt.Errorf("unmarshaling event: %w", err)
		}

		h = append(h, &e)
	}

	return h, nil
}

func readInstanceState(ctx context.Context, c redis.Cmdable, instanceKey string) (*core.InstanceState, error) {
	data, err := c.Get(ctx, instanceKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, backend.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("reading instance: %w", err)
	}

	state := &core.InstanceState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("unmarshaling instance state: %w", err)
	}

	return state, nil
}
