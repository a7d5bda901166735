package history

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
)

type OrchestratorStartedAttributes struct{}

type ExecutionStartedAttributes struct {
	Name string `json:"name,omitempty"`

	Inputs []payload.Payload `json:"inputs,omitempty"`

	// ParentInstanceID is set when the instance was started as a sub-orchestration
	ParentInstanceID string `json:"parent_instance_id,omitempty"`

	// ParentSequenceID is the position of the SubOrchestrationScheduled event in the parent's history
	ParentSequenceID int64 `json:"parent_sequence_id,omitempty"`

	ParentCorrelationID int64 `json:"parent_correlation_id,omitempty"`
}

type ExecutionCompletedAttributes struct {
	Result payload.Payload            `json:"result,omitempty"`
	Error  *orchestrationerrors.Error `json:"error,omitempty"`
}

type ExecutionTerminatedAttributes struct {
	Reason string `json:"reason,omitempty"`
}

type TaskScheduledAttributes struct {
	Name string `json:"name,omitempty"`

	Inputs []payload.Payload `json:"inputs,omitempty"`

	// Attempt is the 1-based attempt number when the call is retried
	Attempt int `json:"attempt,omitempty"`
}

type TaskCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type TaskFailedAttributes struct {
	Error *orchestrationerrors.Error `json:"error,omitempty"`
}

type TimerCreatedAttributes struct {
	FireAt time.Time `json:"fire_at,omitempty"`
}

type TimerFiredAttributes struct {
	FireAt time.Time `json:"fire_at,omitempty"`
}

type EventRaisedAttributes struct {
	Name string `json:"name,omitempty"`

	Arg payload.Payload `json:"arg,omitempty"`
}

type SubOrchestrationScheduledAttributes struct {
	Name string `json:"name,omitempty"`

	InstanceID string `json:"instance_id,omitempty"`

	Inputs []payload.Payload `json:"inputs,omitempty"`
}

type SubOrchestrationCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type SubOrchestrationFailedAttributes struct {
	Error *orchestrationerrors.Error `json:"error,omitempty"`
}

type SideEffectRecordedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type CustomStatusUpdatedAttributes struct {
	Status payload.Payload `json:"status,omitempty"`
}
