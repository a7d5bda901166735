package orchestrationerrors

type PanicError struct {
	message    string
	stacktrace string
}

func (pe *PanicError) Error() string {
	return pe.message
}

func (pe *PanicError) Stack() string {
	return pe.stacktrace
}

// NewPanicError captures the stack above the caller of NewPanicError. Call it from the deferred function
// that recovered the panic so the stack starts at the panicking frame.
func NewPanicError(msg string) *PanicError {
	return &PanicError{
		message:    msg,
		stacktrace: stack(2),
	}
}
