package diag

import (
	"time"

	"github.com/cschleiden/go-orchestrations/core"
)

type Event struct {
	ID            string    `json:"id,omitempty"`
	SequenceID    int64     `json:"sequence_id,omitempty"`
	Type          string    `json:"type,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
	CorrelationID int64     `json:"correlation_id"`
	Attributes    any       `json:"attributes,omitempty"`
}

type InstanceInfo struct {
	*core.InstanceState

	History []*Event `json:"history,omitempty"`
}

type InstanceTree struct {
	*core.InstanceState

	Children []*InstanceTree `json:"children,omitempty"`
}
