package history

import (
	"time"

	"github.com/google/uuid"
)

type EventType uint

const (
	_ EventType = iota

	EventType_OrchestratorStarted

	EventType_ExecutionStarted
	EventType_ExecutionCompleted
	EventType_ExecutionTerminated

	EventType_TaskScheduled
	EventType_TaskCompleted
	EventType_TaskFailed

	EventType_TimerCreated
	EventType_TimerFired

	EventType_EventRaised

	EventType_SubOrchestrationScheduled
	EventType_SubOrchestrationCompleted
	EventType_SubOrchestrationFailed

	EventType_SideEffectRecorded

	EventType_CustomStatusUpdated
)

func (et EventType) String() string {
	switch et {
	case EventType_OrchestratorStarted:
		return "OrchestratorStarted"

	case EventType_ExecutionStarted:
		return "ExecutionStarted"
	case EventType_ExecutionCompleted:
		return "ExecutionCompleted"
	case EventType_ExecutionTerminated:
		return "ExecutionTerminated"

	case EventType_TaskScheduled:
		return "TaskScheduled"
	case EventType_TaskCompleted:
		return "TaskCompleted"
	case EventType_TaskFailed:
		return "TaskFailed"

	case EventType_TimerCreated:
		return "TimerCreated"
	case EventType_TimerFired:
		return "TimerFired"

	case EventType_EventRaised:
		return "EventRaised"

	case EventType_SubOrchestrationScheduled:
		return "SubOrchestrationScheduled"
	case EventType_SubOrchestrationCompleted:
		return "SubOrchestrationCompleted"
	case EventType_SubOrchestrationFailed:
		return "SubOrchestrationFailed"

	case EventType_SideEffectRecorded:
		return "SideEffectRecorded"

	case EventType_CustomStatusUpdated:
		return "CustomStatusUpdated"

	default:
		return "Unknown"
	}
}

type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id,omitempty"`

	// SequenceID is the 1-based position of the event in the instance's history. It is assigned by the
	// history store on append.
	SequenceID int64 `json:"sid,omitempty"`

	Type EventType `json:"t,omitempty"`

	Timestamp time.Time `json:"ts,omitempty"`

	// CorrelationID links a scheduling event to its completion. For example, the TaskScheduled event and the
	// TaskCompleted or TaskFailed event for the same activity call share the same CorrelationID.
	CorrelationID int64 `json:"cid,omitempty"`

	// Attributes are event type specific attributes
	Attributes any `json:"attr,omitempty"`
}

func (e *Event) String() string {
	return e.Type.String()
}

type HistoryEventOption func(e *Event)

func CorrelationID(correlationID int64) HistoryEventOption {
	return func(e *Event) {
		e.CorrelationID = correlationID
	}
}

func NewHistoryEvent(timestamp time.Time, eventType EventType, attributes any, opts ...HistoryEventOption) *Event {
	e := &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  timestamp,
		Attributes: attributes,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}
