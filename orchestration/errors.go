package orchestration

import "github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"

type (
	Error               = orchestrationerrors.Error
	PanicError          = orchestrationerrors.PanicError
	NonDeterminismError = orchestrationerrors.NonDeterminismError
)

// NewError wraps the given error into an orchestration error which will be automatically retried
func NewError(err error) error {
	if err == nil {
		return nil
	}

	return orchestrationerrors.FromError(err)
}

// NewPermanentError wraps the given error into an orchestration error which will not be automatically retried
func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}

	return orchestrationerrors.NewPermanentError(err)
}

// CanRetry returns true if the given error is retryable
func CanRetry(err error) bool {
	return orchestrationerrors.CanRetry(err)
}
