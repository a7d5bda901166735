package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/core"
)

func (s *Store) GetInstance(ctx context.Context, instanceID string) (*core.InstanceState, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT state FROM instances WHERE task_hub = ? AND instance_id = ?"), s.taskHub(), instanceID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrInstanceNotFound
	} else if err != nil {
		return nil, fmt.Errorf("reading instance: %w", err)
	}

	state := &core.InstanceState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("unmarshaling instance state: %w", err)
	}

	return state, nil
}

func (s *Store) ListInstances(ctx context.Context, filter *core.InstanceFilter) ([]*core.InstanceState, error) {
	if filter == nil {
		filter = &core.InstanceFilter{}
	}

	where := []string{"task_hub = ?"}
	args := []any{s.taskHub()}

	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}

	if filter.ParentInstanceID != "" {
		where = append(where, "parent_instance_id = ?")
		args = append(args, filter.ParentInstanceID)
	}

	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, int(status))
		}
	}

	if filter.CreatedAfter != nil {
		where = append(where, "created_at >= ?")
		args = append(args, toNanos(*filter.CreatedAfter))
	}

	if filter.CreatedBefore != nil {
		where = append(where, "created_at < ?")
		args = append(args, toNanos(*filter.CreatedBefore))
	}

	if filter.CompletedBefore != nil {
		where = append(where, "completed_at IS NOT NULL AND completed_at < ?")
		args = append(args, toNanos(*filter.CompletedBefore))
	}

	query := "SELECT state FROM instances WHERE " + strings.Join(where, " AND ") + " ORDER BY created_at, instance_id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer rows.Close()

	r := []*core.InstanceState{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning instance: %w", err)
		}

		state := &core.InstanceState{}
		if err := json.Unmarshal(data, state); err != nil {
			return nil, fmt.Errorf("unmarshaling instance state: %w", err)
		}

		r = append(r, state)
	}

	return r, rows.Err()
}

func (s *Store) PurgeInstance(ctx context.Context, instanceID string) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var status int
	err = tx.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT status FROM instances WHERE task_hub = ? AND instance_id = ?"), s.taskHub(), instanceID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.ErrInstanceNotFound
	} else if err != nil {
		return fmt.Errorf("reading instance: %w", err)
	}

	if !core.RuntimeStatus(status).Terminal() {
		return backend.ErrInstanceNotFinished
	}

	for _, table := range []string{"events", "work_items", "instances"} {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(
			"DELETE FROM "+table+" WHERE task_hub = ? AND instance_id = ?"), s.taskHub(), instanceID,
		); err != nil {
			return fmt.Errorf("purging %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing purge: %w", err)
	}

	return nil
}

func (s *Store) GetStats(ctx context.Context) (*backend.Stats, error) {
	stats := &backend.Stats{
		PendingWorkItems: map[core.Queue]int64{},
	}

	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT COUNT(*) FROM instances WHERE task_hub = ? AND completed_at IS NULL"), s.taskHub(),
	).Scan(&stats.ActiveInstances); err != nil {
		return nil, fmt.Errorf("counting active instances: %w", err)
	}

	for _, q := range core.Queues {
		stats.PendingWorkItems[q] = 0
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		"SELECT queue, COUNT(*) FROM work_items WHERE task_hub = ? GROUP BY queue"), s.taskHub(),
	)
	if err != nil {
		return nil, fmt.Errorf("counting work items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q core.Queue
		var n int64
		if err := rows.Scan(&q, &n); err != nil {
			return nil, fmt.Errorf("scanning work item count: %w", err)
		}

		stats.PendingWorkItems[q] = n
	}

	return stats, rows.Err()
}
