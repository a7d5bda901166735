package core

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
)

// InstanceState is the externally visible state of an orchestration instance. It is a projection of the
// instance's history and is only ever changed by applying history events.
type InstanceState struct {
	InstanceID string `json:"instance_id"`

	Name string `json:"name,omitempty"`

	Status RuntimeStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`

	LastUpdatedAt time.Time `json:"last_updated_at"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Inputs []payload.Payload `json:"inputs,omitempty"`

	Output payload.Payload `json:"output,omitempty"`

	Error *orchestrationerrors.Error `json:"error,omitempty"`

	CustomStatus payload.Payload `json:"custom_status,omitempty"`

	TerminationReason string `json:"termination_reason,omitempty"`

	// ParentInstanceID is set for sub-orchestrations. It is a weak reference, the parent may have been purged.
	ParentInstanceID string `json:"parent_instance_id,omitempty"`

	// Version is the number of events in the instance's history
	Version int64 `json:"version"`
}

func NewInstanceState(instanceID string) *InstanceState {
	return &InstanceState{
		InstanceID: instanceID,
		Status:     StatusUnknown,
	}
}

// Apply folds the given events into the state. Events have to be applied in history order.
func (s *InstanceState) Apply(events ...*history.Event) {
	for _, e := range events {
		s.Version++
		if e.SequenceID > 0 {
			s.Version = e.SequenceID
		}

		s.LastUpdatedAt = e.Timestamp

		switch e.Type {
		case history.EventType_ExecutionStarted:
			a := e.Attributes.(*history.ExecutionStartedAttributes)

			s.Name = a.Name
			s.Inputs = a.Inputs
			s.ParentInstanceID = a.ParentInstanceID
			s.Status = StatusPending
			s.CreatedAt = e.Timestamp
			s.CompletedAt = nil
			s.Output = nil
			s.Error = nil
			s.CustomStatus = nil
			s.TerminationReason = ""

		case history.EventType_OrchestratorStarted:
			if s.Status == StatusPending {
				s.Status = StatusRunning
			}

		case history.EventType_CustomStatusUpdated:
			if !s.Status.Terminal() {
				s.CustomStatus = e.Attributes.(*history.CustomStatusUpdatedAttributes).Status
			}

		case history.EventType_ExecutionCompleted:
			if s.Status.Terminal() {
				continue
			}

			a := e.Attributes.(*history.ExecutionCompletedAttributes)
			if a.Error != nil {
				s.Status = StatusFailed
				s.Error = a.Error
			} else {
				s.Status = StatusCompleted
				s.Output = a.Result
			}

			completedAt := e.Timestamp
			s.CompletedAt = &completedAt

		case history.EventType_ExecutionTerminated:
			if s.Status.Terminal() {
				continue
			}

			s.Status = StatusTerminated
			s.TerminationReason = e.Attributes.(*history.ExecutionTerminatedAttributes).Reason

			completedAt := e.Timestamp
			s.CompletedAt = &completedAt
		}
	}
}

// Terminal returns true if the instance has reached a final status.
func (s *InstanceState) Terminal() bool {
	return s.Status.Terminal()
}

// Project builds the state of an instance from its full history.
func Project(instanceID string, events []*history.Event) *InstanceState {
	s := NewInstanceState(instanceID)
	s.Apply(events...)
	return s
}
