package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/core"
)

func (b *mongoBackend) GetInstance(ctx context.Context, instanceID string) (*core.InstanceState, error) {
	var doc instance
	if err := b.db.Collection(instancesCollection).FindOne(ctx, b.instanceFilter(instanceID)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, backend.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("reading instance: %w", err)
	}

	return decodeState(&doc)
}

func (b *mongoBackend) ListInstances(ctx context.Context, filter *core.InstanceFilter) ([]*core.InstanceState, error) {
	if filter == nil {
		filter = &core.InstanceFilter{}
	}

	q := bson.D{{Key: "task_hub", Value: b.taskHub()}}

	if filter.Name != "" {
		q = append(q, bson.E{Key: "name", Value: filter.Name})
	}

	if filter.ParentInstanceID != "" {
		q = append(q, bson.E{Key: "parent_instance_id", Value: filter.ParentInstanceID})
	}

	if len(filter.Statuses) > 0 {
		statuses := make(bson.A, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, int(s))
		}

		q = append(q, bson.E{Key: "status", Value: bson.D{{Key: "$in", Value: statuses}}})
	}

	created := bson.D{}
	if filter.CreatedAfter != nil {
		created = append(created, bson.E{Key: "$gte", Value: filter.CreatedAfter.UnixNano()})
	}
	if filter.CreatedBefore != nil {
		created = append(created, bson.E{Key: "$lt", Value: filter.CreatedBefore.UnixNano()})
	}
	if len(created) > 0 {
		q = append(q, bson.E{Key: "created_at", Value: created})
	}

	if filter.CompletedBefore != nil {
		// Comparisons never match null, so active instances are excluded
		q = append(q, bson.E{Key: "completed_at", Value: bson.D{{Key: "$lt", Value: filter.CompletedBefore.UnixNano()}}})
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "instance_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := b.db.Collection(instancesCollection).Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	var docs []instance
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding instances: %w", err)
	}

	r := make([]*core.InstanceState, 0, len(docs))
	for i := range docs {
		state, err := decodeState(&docs[i])
		if err != nil {
			return nil, err
		}

		r = append(r, state)
	}

	return r, nil
}

func (b *mongoBackend) PurgeInstance(ctx context.Context, instanceID string) error {
	return b.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var doc instance
		if err := b.db.Collection(instancesCollection).FindOne(sessCtx, b.instanceFilter(instanceID)).Decode(&doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return backend.ErrInstanceNotFound
			}

			return fmt.Errorf("reading instance: %w", err)
		}

		if !core.RuntimeStatus(doc.Status).Terminal() {
			return backend.ErrInstanceNotFinished
		}

		for _, coll := range []string{eventsCollection, workItemsCollection, instancesCollection} {
			if _, err := b.db.Collection(coll).DeleteMany(sessCtx, b.instanceFilter(instanceID)); err != nil {
				return fmt.Errorf("purging %s: %w", coll, err)
			}
		}

		return nil
	})
}

func (b *mongoBackend) GetStats(ctx context.Context) (*backend.Stats, error) {
	s := &backend.Stats{
		PendingWorkItems: map[core.Queue]int64{},
	}

	active, err := b.db.Collection(instancesCollection).CountDocuments(ctx, bson.D{
		{Key: "task_hub", Value: b.taskHub()},
		{Key: "completed_at", Value: nil},
	})
	if err != nil {
		return nil, fmt.Errorf("counting active instances: %w", err)
	}
	s.ActiveInstances = active

	for _, q := range core.Queues {
		n, err := b.db.Collection(workItemsCollection).CountDocuments(ctx, bson.D{
			{Key: "task_hub", Value: b.taskHub()},
			{Key: "queue", Value: string(q)},
		})
		if err != nil {
			return nil, fmt.Errorf("counting work items: %w", err)
		}

		s.PendingWorkItems[q] = n
	}

	return s, nil
}

func decodeState(doc *instance) (*core.InstanceState, error) {
	state := &core.InstanceState{}
	if err := json.Unmarshal(doc.State, state); err != nil {
		return nil, fmt.Errorf("unmarshaling instance state: %w", err)
	}

	return state, nil
}
