package registry

import "errors"

var (
	ErrOrchestratorNotFound = errors.New("orchestrator not found")
	ErrActivityNotFound     = errors.New("activity not found")
)

type ErrInvalidOrchestrator struct {
	msg string
}

func (e *ErrInvalidOrchestrator) Error() string {
	return e.msg
}

type ErrOrchestratorAlreadyRegistered struct {
	msg string
}

func (e *ErrOrchestratorAlreadyRegistered) Error() string {
	return e.msg
}

type ErrInvalidActivity struct {
	msg string
}

func (e *ErrInvalidActivity) Error() string {
	return e.msg
}

type ErrActivityAlreadyRegistered struct {
	msg string
}

func (e *ErrActivityAlreadyRegistered) Error() string {
	return e.msg
}
