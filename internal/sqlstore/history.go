package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/core"
)

func (s *Store) AppendEvents(
	ctx context.Context, instanceID string, expectedVersion int64, events []*history.Event, work ...*backend.WorkItem,
) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	conflict := func(actual int64) error {
		return &backend.ConflictError{InstanceID: instanceID, ExpectedVersion: expectedVersion, ActualVersion: actual}
	}

	var version int64
	var stateData []byte

	exists := true
	err = tx.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT version, state FROM instances WHERE task_hub = ? AND instance_id = ?"), s.taskHub(), instanceID,
	).Scan(&version, &stateData)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return fmt.Errorf("reading instance: %w", err)
	}

	if version != expectedVersion {
		return conflict(version)
	}

	if len(events) > 0 {
		state := core.NewInstanceState(instanceID)
		if exists {
			if err := json.Unmarshal(stateData, state); err != nil {
				return fmt.Errorf("unmarshaling instance state: %w", err)
			}
		}

		for i, e := range events {
			e.SequenceID = expectedVersion + int64(i) + 1
			state.Apply(e)

			if err := s.insertEvent(ctx, tx, instanceID, e); err != nil {
				if s.dialect.IsConflict(err) {
					return conflict(-1)
				}

				return err
			}
		}

		if err := s.writeInstance(ctx, tx, state, exists, expectedVersion); err != nil {
			if errors.Is(err, backend.ErrConflict) || s.dialect.IsConflict(err) {
				return conflict(-1)
			}

			return err
		}
	}

	now := s.now()
	for _, w := range work {
		if err := s.enqueue(ctx, tx, w, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if s.dialect.IsConflict(err) {
			return conflict(-1)
		}

		return fmt.Errorf("committing append: %w", err)
	}

	return nil
}

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, instanceID string, e *history.Event) error {
	attributes, err := history.SerializeAttributes(e.Attributes)
	if err != nil {
		return fmt.Errorf("serializing attributes: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.dialect.rebind(
		"INSERT INTO events (task_hub, instance_id, sequence_id, event_id, event_type, event_time, correlation_id, attributes) VALUES ("+placeholders(8)+")"),
		s.taskHub(),
		instanceID,
		e.SequenceID,
		e.ID,
		int(e.Type),
		toNanos(e.Timestamp),
		e.CorrelationID,
		attributes,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

func (s *Store) writeInstance(ctx context.Context, tx *sql.Tx, state *core.InstanceState, exists bool, expectedVersion int64) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling instance state: %w", err)
	}

	var completedAt *int64
	if state.CompletedAt != nil {
		n := toNanos(*state.CompletedAt)
		completedAt = &n
	}

	if !exists {
		_, err := tx.ExecContext(ctx, s.dialect.rebind(
			"INSERT INTO instances (task_hub, instance_id, name, status, parent_instance_id, created_at, completed_at, version, state) VALUES ("+placeholders(9)+")"),
			s.taskHub(),
			state.InstanceID,
			state.Name,
			int(state.Status),
			state.ParentInstanceID,
			toNanos(state.CreatedAt),
			completedAt,
			state.Version,
			data,
		)
		if err != nil {
			return fmt.Errorf("inserting instance: %w", err)
		}

		return nil
	}

	res, err := tx.ExecContext(ctx, s.dialect.rebind(
		"UPDATE instances SET name = ?, status = ?, parent_instance_id = ?, created_at = ?, completed_at = ?, version = ?, state = ? WHERE task_hub = ? AND instance_id = ? AND version = ?"),
		state.Name,
		int(state.Status),
		state.ParentInstanceID,
		toNanos(state.CreatedAt),
		completedAt,
		state.Version,
		data,
		s.taskHub(),
		state.InstanceID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating instance: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("updating instance: %w", err)
	} else if n != 1 {
		return backend.ErrConflict
	}

	return nil
}

func (s *Store) ReadHistory(ctx context.Context, instanceID string) ([]*history.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		"SELECT event_id, sequence_id, event_type, event_time, correlation_id, attributes FROM events WHERE task_hub = ? AND instance_id = ? ORDER BY sequence_id"),
		s.taskHub(), instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	h := []*history.Event{}
	for rows.Next() {
		var e history.Event
		var eventType int
		var ts int64
		var attributes []byte

		if err := rows.Scan(&e.ID, &e.SequenceID, &eventType, &ts, &e.CorrelationID, &attributes); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		e.Type = history.EventType(eventType)
		e.Timestamp = fromNanos(ts)

		a, err := history.DeserializeAttributes(e.Type, attributes)
		if err != nil {
			return nil, fmt.Errorf("deserializing attributes: %w", err)
		}

		e.Attributes = a

		h = append(h, &e)
	}

	return h, rows.Err()
}
