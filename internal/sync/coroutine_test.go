package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Coroutine_CanAccessState(t *testing.T) {
	var s *coState

	c := NewCoroutine(Background(), func(ctx Context) error {
		s = getCoState(ctx)

		return nil
	})

	c.Execute()

	require.NotNil(t, s)
}

func Test_Coroutine_MarkedAsDone(t *testing.T) {
	c := NewCoroutine(Background(), func(ctx Context) error {
		return nil
	})

	c.Execute()

	require.True(t, c.Finished())
}

func Test_Coroutine_MarkedAsBlocked(t *testing.T) {
	reached := false

	c := NewCoroutine(Background(), func(ctx Context) error {
		getCoState(ctx).Yield()

		reached = true

		return nil
	})

	c.Execute()

	require.True(t, c.Blocked())
	require.False(t, c.Finished())
	require.False(t, reached)

	c.Exit()
	require.False(t, reached)
}

func Test_Coroutine_Continue(t *testing.T) {
	c := NewCoroutine(Background(), func(ctx Context) error {
		getCoState(ctx).Yield()

		return nil
	})

	c.Execute()

	require.True(t, c.Blocked())
	require.False(t, c.Finished())

	c.Execute()

	require.False(t, c.Blocked())
	require.True(t, c.Finished())
}

func Test_Coroutine_Continue_WhenFinished(t *testing.T) {
	c := NewCoroutine(Background(), func(ctx Context) error {
		return nil
	})

	c.Execute()
	require.True(t, c.Finished())

	c.Execute()
	require.True(t, c.Finished())
}

func Test_Coroutine_ContinueAndBlock(t *testing.T) {
	reached := 0

	c := NewCoroutine(Background(), func(ctx Context) error {
		s := getCoState(ctx)

		s.Yield()

		reached++

		s.Yield()

		reached++

		return nil
	})

	c.Execute()

	require.True(t, c.Blocked())
	require.False(t, c.Finished())

	c.Execute()

	require.True(t, c.Blocked())
	require.False(t, c.Finished())
	require.Equal(t, 1, reached)

	c.Exit()
	require.True(t, c.Finished())
	require.Equal(t, 1, reached)
}

func Test_Coroutine_Exit(t *testing.T) {
	c := NewCoroutine(Background(), func(ctx Context) error {
		getCoState(ctx).Yield()

		return errors.New("should not be reached")
	})

	c.Exit()

	require.True(t, c.Finished())
	require.NoError(t, c.Error())
}

func Test_Coroutine_ExitIfAlreadyFinished(t *testing.T) {
	c := NewCoroutine(Background(), func(ctx Context) error {
		return nil
	})

	c.Execute()
	c.Exit()

	require.True(t, c.Finished())
}

func Test_Coroutine_ExitRunsDeferredFunctions(t *testing.T) {
	deferred := false

	c := NewCoroutine(Background(), func(ctx Context) error {
		defer func() {
			deferred = true
		}()

		getCoState(ctx).Yield()

		return nil
	})

	c.Execute()
	c.Exit()

	require.True(t, deferred)
}

func Test_Coroutine_PanicsWhenDeadlocked(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := NewCoroutine(Background(), func(ctx Context) error {
		s := getCoState(ctx)
		s.deadlockDetection = time.Millisecond
		s.Yield()

		<-release

		return nil
	})

	c.Execute()

	require.Panics(t, func() {
		c.Execute()
	})
}

func Test_Coroutine_Error(t *testing.T) {
	c := NewCoroutine(Background(), func(ctx Context) error {
		return errors.New("custom error")
	})

	c.Execute()

	require.True(t, c.Finished())
	require.EqualError(t, c.Error(), "custom error")
}

func Test_Coroutine_Panic(t *testing.T) {
	c := NewCoroutine(Background(), func(ctx Context) error {
		panic("test panic")
	})

	c.Execute()

	require.True(t, c.Finished())
	require.EqualError(t, c.Error(), "panic: test panic")
}
