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
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/core"
)

func (b *mongoBackend) AppendEvents(
	ctx context.Context, instanceID string, expectedVersion int64, events []*history.Event, work ...*backend.WorkItem,
) error {
	conflict := func(actual int64) error {
		return &backend.ConflictError{InstanceID: instanceID, ExpectedVersion: expectedVersion, ActualVersion: actual}
	}

	err := b.withTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		instances := b.db.Collection(instancesCollection)

		var doc instance
		exists := true
		if err := instances.FindOne(sessCtx, b.instanceFilter(instanceID)).Decode(&doc); err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return fmt.Errorf("reading instance: %w", err)
			}

			exists = false
		}

		if doc.Version != expectedVersion {
			return conflict(doc.Version)
		}

		if len(events) > 0 {
			state := core.NewInstanceState(instanceID)
			if exists {
				if err := json.Unmarshal(doc.State, state); err != nil {
					return fmt.Errorf("unmarshaling instance state: %w", err)
				}
			}

			docs := make([]interface{}, 0, len(events))
			for i, e := range events {
				e.SequenceID = expectedVersion + int64(i) + 1
				state.Apply(e)

				attributes, err := history.SerializeAttributes(e.Attributes)
				if err != nil {
					return fmt.Errorf("serializing attributes: %w", err)
				}

				docs = append(docs, &event{
					TaskHub:       b.taskHub(),
					InstanceID:    instanceID,
					SequenceID:    e.SequenceID,
					EventID:       e.ID,
					EventType:     int(e.Type),
					Timestamp:     e.Timestamp.UnixNano(),
					CorrelationID: e.CorrelationID,
					Attributes:    attributes,
				})
			}

			if _, err := b.db.Collection(eventsCollection).InsertMany(sessCtx, docs); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return conflict(-1)
				}

				return fmt.Errorf("inserting events: %w", err)
			}

			if err := b.writeInstance(sessCtx, state, exists, expectedVersion); err != nil {
				return err
			}
		}

		now := b.now()
		for _, w := range work {
			if err := b.enqueue(sessCtx, w, now); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil && mongo.IsDuplicateKeyError(err) {
		return conflict(-1)
	}

	return err
}

func (b *mongoBackend) writeInstance(sessCtx mongo.SessionContext, state *core.InstanceState, exists bool, expectedVersion int64) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling instance state: %w", err)
	}

	var completedAt *int64
	if state.CompletedAt != nil {
		n := state.CompletedAt.UnixNano()
		completedAt = &n
	}

	doc := &instance{
		TaskHub:          b.taskHub(),
		InstanceID:       state.InstanceID,
		Name:             state.Name,
		Status:           int(state.Status),
		ParentInstanceID: state.ParentInstanceID,
		CreatedAt:        state.CreatedAt.UnixNano(),
		CompletedAt:      completedAt,
		Version:          state.Version,
		State:            data,
	}

	instances := b.db.Collection(instancesCollection)

	if !exists {
		if _, err := instances.InsertOne(sessCtx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return &backend.ConflictError{InstanceID: state.InstanceID, ExpectedVersion: expectedVersion, ActualVersion: -1}
			}

			return fmt.Errorf("inserting instance: %w", err)
		}

		return nil
	}

	filter := b.instanceFilter(state.InstanceID)
	filter = append(filter, bson.E{Key: "version", Value: expectedVersion})

	res, err := instances.ReplaceOne(sessCtx, filter, doc)
	if err != nil {
		return fmt.Errorf("updating instance: %w", err)
	}

	if res.MatchedCount != 1 {
		return &backend.ConflictError{InstanceID: state.InstanceID, ExpectedVersion: expectedVersion, ActualVersion: -1}
	}

	return nil
}

func (b *mongoBackend) ReadHistory(ctx context.Context, instanceID string) ([]*history.Event, error) {
	cursor, err := b.db.Collection(eventsCollection).Find(
		ctx,
		b.instanceFilter(instanceID),
		options.Find().SetSort(bson.D{{Key: "sequence_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	var docs []event
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}

	h := make([]*history.Event, 0, len(docs))
	for _, doc := range docs {
		eventType := history.EventType(doc.EventType)

		a, err := history.DeserializeAttributes(eventType, doc.Attributes)
		if err != nil {
			return nil, fmt.Errorf("deserializing attributes: %w", err)
		}

		h = append(h, &history.Event{
			ID:            doc.EventID,
			SequenceID:    doc.SequenceID,
			Type:          eventType,
			Timestamp:     fromNanos(doc.Timestamp),
			CorrelationID: doc.CorrelationID,
			Attributes:    a,
		})
	}

	return h, nil
}

func (b *mongoBackend) instanceFilter(instanceID string) bson.D {
	return bson.D{{Key: "task_hub", Value: b.taskHub()}, {Key: "instance_id", Value: instanceID}}
}
