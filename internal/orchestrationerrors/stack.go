package orchestrationerrors

import (
	"errors"

	goerrors "github.com/go-errors/errors"
)

// stack returns the formatted stack of the calling goroutine, skipping the given number of frames.
// A skip of 0 starts at the caller of stack.
func stack(skip int) string {
	goerr := goerrors.Wrap(errors.New("stack"), skip+1)
	return string(goerr.Stack())
}
