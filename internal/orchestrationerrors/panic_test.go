package orchestrationerrors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_NewPanicError(t *testing.T) {
	e := func() *PanicError {
		return NewPanicError("test")
	}()

	require.Equal(t, "test", e.Error())
	require.Contains(t, e.Stack(), "Test_NewPanicError")
}

func Test_NewPanicError_Recovered(t *testing.T) {
	var pe *PanicError

	func() {
		defer func() {
			if r := recover(); r != nil {
				pe = NewPanicError("boom")
			}
		}()

		panicking()
	}()

	require.NotNil(t, pe)
	require.Contains(t, pe.Stack(), "panicking")
}

//go:noinline
func panicking() {
	panic("boom")
}
