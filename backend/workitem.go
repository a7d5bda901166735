package backend

import (
	"time"

	"github.com/cschleiden/go-orchestrations/core"
)

type WorkItemKind string

const (
	// WorkItemOrchestrate triggers a replay of the instance
	WorkItemOrchestrate WorkItemKind = "orchestrate"

	// WorkItemActivity dispatches the activity scheduled by the referenced TaskScheduled event
	WorkItemActivity WorkItemKind = "activity"

	// WorkItemTimer fires the timer created by the referenced TimerCreated event
	WorkItemTimer WorkItemKind = "timer"

	// WorkItemStartChild creates the sub-orchestration scheduled by the referenced event in the parent
	WorkItemStartChild WorkItemKind = "start-child"

	// WorkItemChildResult delivers the result of a sub-orchestration, the referenced terminal event, to
	// its parent
	WorkItemChildResult WorkItemKind = "child-result"
)

// WorkItem is a message in one of the work queues. It references an instance and, depending on its kind,
// an event in that instance's history. It never carries payloads.
type WorkItem struct {
	// ID is an identifier for this item. It's set by the backend
	ID string `json:"id,omitempty"`

	Queue core.Queue `json:"queue,omitempty"`

	Kind WorkItemKind `json:"kind,omitempty"`

	InstanceID string `json:"instance_id,omitempty"`

	// SequenceID references an event in the instance's history, 0 if the item does not reference one
	SequenceID int64 `json:"sequence_id,omitempty"`

	// VisibleAt delays the item, it will not be dequeued before this time
	VisibleAt *time.Time `json:"visible_at,omitempty"`

	// CreatedAt is set by the backend on enqueue
	CreatedAt time.Time `json:"created_at,omitempty"`

	// LockedUntil is set by the backend when the item is leased
	LockedUntil *time.Time `json:"locked_until,omitempty"`

	// DequeueCount is the number of times the item has been leased
	DequeueCount int `json:"dequeue_count,omitempty"`
}

func NewOrchestrateWorkItem(instanceID string) *WorkItem {
	return &WorkItem{
		Queue:      core.QueueOrchestrations,
		Kind:       WorkItemOrchestrate,
		InstanceID: instanceID,
	}
}

func NewActivityWorkItem(instanceID string, sequenceID int64) *WorkItem {
	return &WorkItem{
		Queue:      core.QueueActivities,
		Kind:       WorkItemActivity,
		InstanceID: instanceID,
		SequenceID: sequenceID,
	}
}

func NewTimerWorkItem(instanceID string, sequenceID int64, fireAt time.Time) *WorkItem {
	return &WorkItem{
		Queue:      core.QueueTimers,
		Kind:       WorkItemTimer,
		InstanceID: instanceID,
		SequenceID: sequenceID,
		VisibleAt:  &fireAt,
	}
}

func NewStartChildWorkItem(parentInstanceID string, sequenceID int64) *WorkItem {
	return &WorkItem{
		Queue:      core.QueueOrchestrations,
		Kind:       WorkItemStartChild,
		InstanceID: parentInstanceID,
		SequenceID: sequenceID,
	}
}

func NewChildResultWorkItem(childInstanceID string, sequenceID int64) *WorkItem {
	return &WorkItem{
		Queue:      core.QueueOrchestrations,
		Kind:       WorkItemChildResult,
		InstanceID: childInstanceID,
		SequenceID: sequenceID,
	}
}
