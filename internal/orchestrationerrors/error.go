package orchestrationerrors

import (
	"encoding/json"
	"errors"

	goerrors "github.com/go-errors/errors"
)

// Error is the persisted descriptor of a failure. It survives serialization into history so that failures
// can be surfaced on replay and reported through instance status.
type Error struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`

	Permanent  bool   `json:"permanent,omitempty"`
	Cause      error  `json:"cause,omitempty"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

func (we *Error) UnmarshalJSON(b []byte) error {
	type Alias Error
	a := &struct {
		Cause *Error `json:"cause,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(we),
	}

	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}

	if a.Cause != nil {
		we.Cause = a.Cause
	} else {
		we.Cause = nil
	}

	return nil
}

func (we *Error) Error() string {
	return we.Message
}

func (we *Error) Unwrap() error {
	if we == nil || we.Cause == nil || we.Cause == (*Error)(nil) {
		return nil
	}

	return we.Cause
}

func (we *Error) Stack() string {
	return we.Stacktrace
}

var _ error = (*Error)(nil)

// FromError wraps the given error into an error descriptor which can be persisted and restored
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	// Already a descriptor, do not wrap again
	if e, ok := err.(*Error); ok {
		return e
	}

	e := &Error{
		Type:    getErrorType(err),
		Message: err.Error(),
	}

	var goerr *goerrors.Error
	if stackTracer, ok := err.(interface{ Stack() string }); ok {
		e.Stacktrace = stackTracer.Stack()
	} else if errors.As(err, &goerr) {
		e.Stacktrace = string(goerr.Stack())
	}

	var nde *NonDeterminismError
	if errors.As(err, &nde) {
		e.Permanent = true
	}

	if cause := errors.Unwrap(err); cause != nil {
		ce := FromError(cause)
		e.Cause = ce
		e.Permanent = e.Permanent || ce.Permanent
	}

	return e
}

// ToError converts the given descriptor back into an error. Known error types are restored to their
// concrete types, unknown ones stay *Error.
func ToError(err *Error) error {
	if err == nil {
		return nil
	}

	e := *err

	switch err.Type {
	case getErrorType(&PanicError{}):
		return &PanicError{message: e.Message, stacktrace: e.Stacktrace}

	case getErrorType(&NonDeterminismError{}):
		return &NonDeterminismError{message: e.Message}

	default:
		return &e
	}
}

func NewPermanentError(err error) *Error {
	e := FromError(err)
	if e == nil {
		return nil
	}

	// Copy so that marking as permanent does not change a shared descriptor
	pe := *e
	pe.Permanent = true
	return &pe
}

// CanRetry returns true if the given error is retryable. Errors are retryable unless they are marked as
// permanent.
func CanRetry(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return !e.Permanent
	}

	var nde *NonDeterminismError
	if errors.As(err, &nde) {
		return false
	}

	return true
}
