package core

import (
	"fmt"
	"strings"
)

type RuntimeStatus int

const (
	StatusUnknown RuntimeStatus = iota
	StatusPending
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusTerminated
)

func (s RuntimeStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Terminal returns true for statuses no transition leaves.
func (s RuntimeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTerminated
}

func ParseRuntimeStatus(s string) (RuntimeStatus, error) {
	for _, status := range []RuntimeStatus{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusTerminated} {
		if strings.EqualFold(status.String(), s) {
			return status, nil
		}
	}

	return StatusUnknown, fmt.Errorf("unknown runtime status %q", s)
}

func (s RuntimeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RuntimeStatus) UnmarshalText(b []byte) error {
	status, err := ParseRuntimeStatus(string(b))
	if err != nil {
		return err
	}

	*s = status
	return nil
}
