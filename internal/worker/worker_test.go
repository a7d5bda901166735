package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testResult struct {
	Output string
}

type mockTaskWorker struct {
	mock.Mock
}

func (m *mockTaskWorker) Get(ctx context.Context) (*testTask, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*testTask), args.Error(1)
}

func (m *mockTaskWorker) Extend(ctx context.Context, task *testTask) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockTaskWorker) Execute(ctx context.Context, task *testTask) (*testResult, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*testResult), args.Error(1)
}

func (m *mockTaskWorker) Complete(ctx context.Context, result *testResult, task *testTask) error {
	return m.Called(ctx, result, task).Error(0)
}

func testOptions() *WorkerOptions {
	return &WorkerOptions{
		Pollers:         1,
		PollingInterval: time.Millisecond,
	}
}

func TestWorker_ProcessesTasks(t *testing.T) {
	tw := &mockTaskWorker{}
	task := &testTask{ID: 1}
	result := &testResult{Output: "done"}

	completed := make(chan struct{})

	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Execute", mock.Anything, task).Return(result, nil).Once()
	tw.On("Complete", mock.Anything, result, task).Return(nil).Once().Run(func(mock.Arguments) {
		close(completed)
	})

	w := NewWorker[testTask, testResult](slog.Default(), tw, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	select {
	case <-completed:
	case <-time.After(5 * time.Second):
		t.Fatal("task not completed")
	}

	cancel()
	require.NoError(t, w.WaitForCompletion())

	tw.AssertExpectations(t)
}

func TestWorker_FailedTaskIsNotCompleted(t *testing.T) {
	tw := &mockTaskWorker{}
	task := &testTask{ID: 1}

	executed := make(chan struct{})

	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Execute", mock.Anything, task).Return(nil, errors.New("boom")).Once().Run(func(mock.Arguments) {
		close(executed)
	})

	w := NewWorker[testTask, testResult](slog.Default(), tw, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	<-executed

	cancel()
	require.NoError(t, w.WaitForCompletion())

	tw.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_PollErrorsAreRetried(t *testing.T) {
	tw := &mockTaskWorker{}
	task := &testTask{ID: 1}
	result := &testResult{}

	completed := make(chan struct{})

	tw.On("Get", mock.Anything).Return(nil, errors.New("unavailable")).Once()
	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Execute", mock.Anything, task).Return(result, nil)
	tw.On("Complete", mock.Anything, result, task).Return(nil).Run(func(mock.Arguments) {
		close(completed)
	})

	w := NewWorker[testTask, testResult](slog.Default(), tw, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	<-completed

	cancel()
	require.NoError(t, w.WaitForCompletion())
}

func TestWorker_Heartbeat(t *testing.T) {
	tw := &mockTaskWorker{}
	task := &testTask{ID: 1}
	result := &testResult{}

	var heartbeats atomic.Int32

	tw.On("Get", mock.Anything).Return(task, nil).Once()
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Extend", mock.Anything, task).Return(nil).Run(func(mock.Arguments) {
		heartbeats.Add(1)
	})
	tw.On("Execute", mock.Anything, task).Return(result, nil).Run(func(mock.Arguments) {
		require.Eventually(t, func() bool { return heartbeats.Load() >= 2 }, 5*time.Second, time.Millisecond)
	})
	completed := make(chan struct{})
	tw.On("Complete", mock.Anything, result, task).Return(nil).Run(func(mock.Arguments) {
		close(completed)
	})

	options := testOptions()
	options.HeartbeatInterval = time.Millisecond

	w := NewWorker[testTask, testResult](slog.Default(), tw, options)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	<-completed

	cancel()
	require.NoError(t, w.WaitForCompletion())
}

func TestWorker_MaxParallelTasks(t *testing.T) {
	tw := &mockTaskWorker{}

	var running, maxRunning atomic.Int32
	var done atomic.Int32

	for i := 0; i < 4; i++ {
		tw.On("Get", mock.Anything).Return(&testTask{ID: i}, nil).Once()
	}
	tw.On("Get", mock.Anything).Return(nil, nil)
	tw.On("Execute", mock.Anything, mock.Anything).Return(&testResult{}, nil).Run(func(mock.Arguments) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}

		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
	})
	tw.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		done.Add(1)
	})

	options := testOptions()
	options.Pollers = 4
	options.MaxParallelTasks = 2

	w := NewWorker[testTask, testResult](slog.Default(), tw, options)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	require.Eventually(t, func() bool { return done.Load() == 4 }, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, w.WaitForCompletion())

	require.LessOrEqual(t, maxRunning.Load(), int32(2))
}
