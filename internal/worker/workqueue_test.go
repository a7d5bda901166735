package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testTask struct {
	ID int
}

func TestWorkQueue_Reserve(t *testing.T) {
	t.Run("unlimited", func(t *testing.T) {
		wq := newWorkQueue[testTask](0)
		require.Nil(t, wq.slots)

		for i := 0; i < 10; i++ {
			require.NoError(t, wq.reserve(context.Background()))
		}

		// No-op
		wq.release()
	})

	t.Run("blocks when all slots are taken", func(t *testing.T) {
		wq := newWorkQueue[testTask](1)
		require.NoError(t, wq.reserve(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		require.ErrorIs(t, wq.reserve(ctx), context.DeadlineExceeded)

		wq.release()
		require.NoError(t, wq.reserve(context.Background()))
	})
}

func TestWorkQueue_Add(t *testing.T) {
	wq := newWorkQueue[testTask](1)

	go func() {
		require.NoError(t, wq.add(context.Background(), &testTask{ID: 1}))
		wq.close()
	}()

	var got []int
	for task := range wq.tasks {
		got = append(got, task.ID)
	}

	require.Equal(t, []int{1}, got)
}

func TestWorkQueue_AddCanceled(t *testing.T) {
	wq := newWorkQueue[testTask](0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, wq.add(ctx, &testTask{ID: 1}), context.Canceled)
}
