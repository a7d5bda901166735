package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/core"
)

func (b *mongoBackend) enqueue(ctx context.Context, w *backend.WorkItem, now int64) error {
	visibleAt := now
	if w.VisibleAt != nil {
		visibleAt = w.VisibleAt.UnixNano()
	}

	if _, err := b.db.Collection(workItemsCollection).InsertOne(ctx, &workItem{
		ID:          uuid.NewString(),
		TaskHub:     b.taskHub(),
		Queue:       string(w.Queue),
		Kind:        string(w.Kind),
		InstanceID:  w.InstanceID,
		SequenceID:  w.SequenceID,
		VisibleAt:   visibleAt,
		CreatedAt:   now,
		AvailableAt: visibleAt,
	}); err != nil {
		return fmt.Errorf("enqueuing work item: %w", err)
	}

	return nil
}

// Dequeue leases the next available item with a single atomic FindOneAndUpdate.
func (b *mongoBackend) Dequeue(ctx context.Context, queue core.Queue) (*backend.WorkItem, error) {
	now := b.now()
	lockedUntil := now + b.options.LeaseTimeout(queue).Nanoseconds()

	var doc workItem
	err := b.db.Collection(workItemsCollection).FindOneAndUpdate(
		ctx,
		bson.D{
			{Key: "task_hub", Value: b.taskHub()},
			{Key: "queue", Value: string(queue)},
			{Key: "available_at", Value: bson.D{{Key: "$lte", Value: now}}},
		},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "available_at", Value: lockedUntil}, {Key: "locked_until", Value: lockedUntil}}},
			{Key: "$inc", Value: bson.D{{Key: "dequeue_count", Value: 1}}},
		},
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "available_at", Value: 1}, {Key: "created_at", Value: 1}}).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}

		return nil, fmt.Errorf("dequeuing work item: %w", err)
	}

	visibleAt, lu := fromNanos(doc.VisibleAt), fromNanos(lockedUntil)

	return &backend.WorkItem{
		ID:           doc.ID,
		Queue:        core.Queue(doc.Queue),
		Kind:         backend.WorkItemKind(doc.Kind),
		InstanceID:   doc.InstanceID,
		SequenceID:   doc.SequenceID,
		VisibleAt:    &visibleAt,
		CreatedAt:    fromNanos(doc.CreatedAt),
		LockedUntil:  &lu,
		DequeueCount: doc.DequeueCount,
	}, nil
}

func (b *mongoBackend) ExtendLease(ctx context.Context, item *backend.WorkItem) error {
	if item.LockedUntil == nil {
		return fmt.Errorf("extending lease of %s: %w", item.ID, backend.ErrWorkItemNotFound)
	}

	lockedUntil := b.now() + b.options.LeaseTimeout(item.Queue).Nanoseconds()

	res, err := b.db.Collection(workItemsCollection).UpdateOne(
		ctx,
		bson.D{
			{Key: "_id", Value: item.ID},
			{Key: "task_hub", Value: b.taskHub()},
			{Key: "locked_until", Value: item.LockedUntil.UnixNano()},
		},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "available_at", Value: lockedUntil}, {Key: "locked_until", Value: lockedUntil}}},
		},
	)
	if err != nil {
		return fmt.Errorf("extending lease: %w", err)
	}

	if res.MatchedCount != 1 {
		return fmt.Errorf("extending lease of %s: %w", item.ID, backend.ErrWorkItemNotFound)
	}

	lu := fromNanos(lockedUntil)
	item.LockedUntil = &lu

	return nil
}

func (b *mongoBackend) Complete(ctx context.Context, item *backend.WorkItem) error {
	if _, err := b.db.Collection(workItemsCollection).DeleteOne(ctx, bson.D{
		{Key: "_id", Value: item.ID},
		{Key: "task_hub", Value: b.taskHub()},
	}); err != nil {
		return fmt.Errorf("completing work item: %w", err)
	}

	return nil
}
