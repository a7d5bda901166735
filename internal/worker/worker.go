package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TaskWorker processes the items of one work queue.
type TaskWorker[Task, Result any] interface {
	// Get dequeues the next item, nil if there is none
	Get(context.Context) (*Task, error)

	// Extend extends the lease of an item in progress
	Extend(context.Context, *Task) error

	Execute(context.Context, *Task) (*Result, error)

	// Complete acknowledges the item after it has been executed
	Complete(context.Context, *Result, *Task) error
}

// Worker polls a queue using a TaskWorker and dispatches the items to goroutines.
type Worker[Task, Result any] struct {
	options *WorkerOptions

	tw TaskWorker[Task, Result]

	wq *workQueue[Task]

	logger *slog.Logger

	pollersWg sync.WaitGroup

	dispatcherDone chan struct{}
}

func NewWorker[Task, Result any](logger *slog.Logger, tw TaskWorker[Task, Result], options *WorkerOptions) *Worker[Task, Result] {
	if options.Pollers <= 0 {
		options.Pollers = 1
	}

	if options.PollingInterval <= 0 {
		options.PollingInterval = 200 * time.Millisecond
	}

	return &Worker[Task, Result]{
		tw:             tw,
		options:        options,
		wq:             newWorkQueue[Task](options.MaxParallelTasks),
		logger:         logger,
		dispatcherDone: make(chan struct{}, 1),
	}
}

// Start starts pollers and the dispatcher. Pollers stop when ctx is canceled.
func (w *Worker[Task, Result]) Start(ctx context.Context) error {
	w.pollersWg.Add(w.options.Pollers)

	for i := 0; i < w.options.Pollers; i++ {
		go w.poller(ctx)
	}

	go w.dispatcher()

	return nil
}

// WaitForCompletion waits for the pollers to stop and for all items in progress to finish.
func (w *Worker[Task, Result]) WaitForCompletion() error {
	w.pollersWg.Wait()

	w.wq.close()
	<-w.dispatcherDone

	return nil
}

func (w *Worker[Task, Result]) poller(ctx context.Context) {
	defer w.pollersWg.Done()

	ticker := time.NewTicker(w.options.PollingInterval)
	defer ticker.Stop()

	for {
		if err := w.wq.reserve(ctx); err != nil {
			return
		}

		task, err := w.poll(ctx, 30*time.Second)
		if err != nil {
			w.wq.release()
			w.logger.ErrorContext(ctx, "error polling task", "error", err)
		} else if task != nil {
			if err := w.wq.add(ctx, task); err != nil {
				// Lease will expire and the item becomes visible again
				w.wq.release()
				return
			}

			continue // check for new tasks right away
		} else {
			w.wq.release()
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker[Task, Result]) dispatcher() {
	var wg sync.WaitGroup

	for t := range w.wq.tasks {
		wg.Add(1)

		go func(t *Task) {
			defer wg.Done()
			defer w.wq.release()

			// Items in progress are finished even when the worker is being stopped
			if err := w.handle(context.Background(), t); err != nil {
				w.logger.Error("error handling task", "error", err)
			}
		}(t)
	}

	wg.Wait()

	w.dispatcherDone <- struct{}{}
}

func (w *Worker[Task, Result]) handle(ctx context.Context, t *Task) error {
	if w.options.HeartbeatInterval > 0 {
		heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
		defer cancelHeartbeat()

		go w.heartbeatTask(heartbeatCtx, t)
	}

	result, err := w.tw.Execute(ctx, t)
	if err != nil {
		return fmt.Errorf("executing task: %w", err)
	}

	if err := w.tw.Complete(ctx, result, t); err != nil {
		return fmt.Errorf("completing task: %w", err)
	}

	return nil
}

func (w *Worker[Task, Result]) heartbeatTask(ctx context.Context, task *Task) {
	t := time.NewTicker(w.options.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.tw.Extend(ctx, task); err != nil {
				w.logger.ErrorContext(ctx, "could not heartbeat task", "error", err)
			}
		}
	}
}

func (w *Worker[Task, Result]) poll(ctx context.Context, timeout time.Duration) (*Task, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	task, err := w.tw.Get(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, nil
		}

		return nil, err
	}

	return task, nil
}
