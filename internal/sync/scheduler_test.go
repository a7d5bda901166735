package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Scheduler(t *testing.T) {
	s := NewScheduler()

	hit := 0

	s.NewCoroutine(Background(), func(ctx Context) error {
		hit++

		getCoState(ctx).Yield()

		return nil
	})

	require.Equal(t, 0, hit)

	require.NoError(t, s.Execute())
	require.Equal(t, 1, hit)
	require.Equal(t, 1, s.RunningCoroutines())

	// Coroutine is finished
	require.NoError(t, s.Execute())
	require.Equal(t, 1, hit)
	require.Equal(t, 0, s.RunningCoroutines())
}

func Test_OneCoroutineAtATime(t *testing.T) {
	s := NewScheduler()

	active := false

	body := func(ctx Context) error {
		for i := 0; i < 5; i++ {
			if active {
				return errors.New("concurrent execution")
			}

			active = true
			time.Sleep(time.Millisecond)
			active = false

			getCoState(ctx).Yield()
		}

		return nil
	}

	s.NewCoroutine(Background(), body)
	s.NewCoroutine(Background(), body)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Execute())
	}

	require.Equal(t, 0, s.RunningCoroutines())
}

func Test_Scheduler_RunsUntilNoProgress(t *testing.T) {
	s := NewScheduler()

	f := NewFuture[int]()
	var result int

	s.NewCoroutine(Background(), func(ctx Context) error {
		v, err := f.Get(ctx)
		result = v
		return err
	})

	s.NewCoroutine(Background(), func(ctx Context) error {
		return f.Set(42, nil)
	})

	// The second coroutine sets the future, the scheduler keeps going until the first one finished
	require.NoError(t, s.Execute())
	require.Equal(t, 42, result)
	require.Equal(t, 0, s.RunningCoroutines())
}

func Test_Scheduler_ReturnsCoroutineError(t *testing.T) {
	s := NewScheduler()

	s.NewCoroutine(Background(), func(ctx Context) error {
		return errors.New("failed")
	})

	require.EqualError(t, s.Execute(), "failed")
}

func Test_Scheduler_Exit(t *testing.T) {
	s := NewScheduler()

	f := NewFuture[int]()

	s.NewCoroutine(Background(), func(ctx Context) error {
		_, err := f.Get(ctx)
		return err
	})

	require.NoError(t, s.Execute())
	require.Equal(t, 1, s.RunningCoroutines())

	s.Exit()
	require.Equal(t, 0, s.RunningCoroutines())
}
