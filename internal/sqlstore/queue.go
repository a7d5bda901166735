package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/core"
)

func (s *Store) enqueue(ctx context.Context, tx *sql.Tx, w *backend.WorkItem, now int64) error {
	visibleAt := now
	if w.VisibleAt != nil {
		visibleAt = toNanos(*w.VisibleAt)
	}

	_, err := tx.ExecContext(ctx, s.dialect.rebind(
		"INSERT INTO work_items (id, task_hub, queue, kind, instance_id, sequence_id, visible_at, created_at, dequeue_count) VALUES ("+placeholders(9)+")"),
		uuid.NewString(),
		s.taskHub(),
		string(w.Queue),
		string(w.Kind),
		w.InstanceID,
		w.SequenceID,
		visibleAt,
		now,
		0,
	)
	if err != nil {
		return fmt.Errorf("enqueuing work item: %w", err)
	}

	return nil
}

func (s *Store) Dequeue(ctx context.Context, queue core.Queue) (*backend.WorkItem, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()

	item := &backend.WorkItem{Queue: queue}

	var kind string
	var visibleAt, createdAt int64

	err = tx.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT id, kind, instance_id, sequence_id, visible_at, created_at, dequeue_count FROM work_items
			WHERE task_hub = ? AND queue = ? AND visible_at <= ? AND (locked_until IS NULL OR locked_until <= ?)
			ORDER BY visible_at, created_at, id
			LIMIT 1`+s.dialect.LockClause),
		s.taskHub(), string(queue), now, now,
	).Scan(&item.ID, &kind, &item.InstanceID, &item.SequenceID, &visibleAt, &createdAt, &item.DequeueCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("selecting work item: %w", err)
	}

	lockedUntil := now + s.options.LeaseTimeout(queue).Nanoseconds()

	res, err := tx.ExecContext(ctx, s.dialect.rebind(
		"UPDATE work_items SET locked_until = ?, dequeue_count = dequeue_count + 1 WHERE task_hub = ? AND id = ? AND (locked_until IS NULL OR locked_until <= ?)"),
		lockedUntil, s.taskHub(), item.ID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("leasing work item: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("leasing work item: %w", err)
	} else if n != 1 {
		// Leased by another worker in the meantime
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		if s.dialect.IsConflict(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("committing lease: %w", err)
	}

	item.Kind = backend.WorkItemKind(kind)
	item.DequeueCount++

	va, ca, lu := fromNanos(visibleAt), fromNanos(createdAt), fromNanos(lockedUntil)
	item.VisibleAt = &va
	item.CreatedAt = ca
	item.LockedUntil = &lu

	return item, nil
}

func (s *Store) ExtendLease(ctx context.Context, item *backend.WorkItem) error {
	if item.LockedUntil == nil {
		return fmt.Errorf("extending lease of %s: %w", item.ID, backend.ErrWorkItemNotFound)
	}

	lockedUntil := s.now() + s.options.LeaseTimeout(item.Queue).Nanoseconds()

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		"UPDATE work_items SET locked_until = ? WHERE task_hub = ? AND id = ? AND locked_until = ?"),
		lockedUntil, s.taskHub(), item.ID, toNanos(*item.LockedUntil),
	)
	if err != nil {
		return fmt.Errorf("extending lease: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("extending lease: %w", err)
	} else if n != 1 {
		return fmt.Errorf("extending lease of %s: %w", item.ID, backend.ErrWorkItemNotFound)
	}

	lu := fromNanos(lockedUntil)
	item.LockedUntil = &lu

	return nil
}

func (s *Store) Complete(ctx context.Context, item *backend.WorkItem) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(
		"DELETE FROM work_items WHERE task_hub = ? AND id = ?"), s.taskHub(), item.ID,
	); err != nil {
		return fmt.Errorf("completing work item: %w", err)
	}

	return nil
}
