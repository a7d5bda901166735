package backend

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/core"
)

var (
	ErrInstanceNotFound      = errors.New("orchestration instance not found")
	ErrInstanceAlreadyExists = errors.New("orchestration instance already exists")
	ErrInstanceNotFinished   = errors.New("orchestration instance is not finished")

	// ErrConflict is returned when an append lost an optimistic concurrency race. Callers reload the
	// history and retry.
	ErrConflict = errors.New("history version conflict")

	// ErrWorkItemNotFound is returned when extending the lease of an item that was completed or leased by
	// someone else in the meantime.
	ErrWorkItemNotFound = errors.New("work item not found or lease lost")
)

// ConflictError carries the versions involved in a failed optimistic append. It matches ErrConflict.
type ConflictError struct {
	InstanceID      string
	ExpectedVersion int64
	// ActualVersion is -1 when the provider cannot tell
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("history version conflict for instance %q: expected version %d, actual %d",
		e.InstanceID, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

const TracerName = "go-orchestrations"

// HistoryStore is the durability substrate: an append-only, per-instance log of events.
type HistoryStore interface {
	// AppendEvents appends the given events to the instance's history iff the history currently holds exactly
	// expectedVersion events. Sequence IDs are assigned to the events. The given work items are enqueued as
	// part of the same atomic operation. Returns an error matching ErrConflict if the version does not match.
	AppendEvents(ctx context.Context, instanceID string, expectedVersion int64, events []*history.Event, work ...*WorkItem) error

	// ReadHistory returns the full, ordered history of the given instance. Unknown instances have an empty
	// history.
	ReadHistory(ctx context.Context, instanceID string) ([]*history.Event, error)

	// GetInstance returns the current state of the given instance or ErrInstanceNotFound
	GetInstance(ctx context.Context, instanceID string) (*core.InstanceState, error)

	// ListInstances returns the instances matching the given filter, ordered by creation time
	ListInstances(ctx context.Context, filter *core.InstanceFilter) ([]*core.InstanceState, error)

	// PurgeInstance removes history and state of a terminal instance. Returns ErrInstanceNotFinished for
	// instances which are still active.
	PurgeInstance(ctx context.Context, instanceID string) error
}

// WorkQueue holds lightweight work messages referencing an instance and an event in its history.
type WorkQueue interface {
	// Dequeue leases one visible item from the given queue. Returns nil if there is no work.
	Dequeue(ctx context.Context, queue core.Queue) (*WorkItem, error)

	// ExtendLease extends the lease of a dequeued item
	ExtendLease(ctx context.Context, item *WorkItem) error

	// Complete acknowledges and removes a dequeued item
	Complete(ctx context.Context, item *WorkItem) error
}

type Backend interface {
	HistoryStore
	WorkQueue

	// GetStats returns stats about the backend
	GetStats(ctx context.Context) (*Stats, error)

	// Tracer returns the configured tracer for the backend
	Tracer() trace.Tracer

	// Metrics returns the configured metrics client for the backend
	Metrics() metrics.Client

	// Options returns the configured options for the backend
	Options() *Options

	// Close closes any underlying resources
	Close() error
}
