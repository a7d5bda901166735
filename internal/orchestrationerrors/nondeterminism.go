package orchestrationerrors

import "fmt"

// NonDeterminismError is raised when replaying an orchestration produces a scheduling decision that does not
// match the recorded history. It is fatal to the instance.
type NonDeterminismError struct {
	message string
}

func NewNonDeterminismError(format string, args ...any) *NonDeterminismError {
	return &NonDeterminismError{message: "non-deterministic orchestration: " + fmt.Sprintf(format, args...)}
}

func (e *NonDeterminismError) Error() string {
	return e.message
}
