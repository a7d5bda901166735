package worker

import "context"

// workQueue hands dequeued items from pollers to the dispatcher. Pollers reserve a slot before dequeuing so
// that no more items are leased than can be processed.
type workQueue[Task any] struct {
	tasks chan *Task
	slots chan struct{}
}

func newWorkQueue[Task any](maxParallelTasks int) *workQueue[Task] {
	var slots chan struct{}
	if maxParallelTasks > 0 {
		slots = make(chan struct{}, maxParallelTasks)
	}

	return &workQueue[Task]{
		tasks: make(chan *Task),
		slots: slots,
	}
}

func (wq *workQueue[Task]) reserve(ctx context.Context) error {
	if wq.slots == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case wq.slots <- struct{}{}:
		return nil
	}
}

func (wq *workQueue[Task]) add(ctx context.Context, task *Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case wq.tasks <- task:
		return nil
	}
}

func (wq *workQueue[Task]) release() {
	if wq.slots == nil {
		return
	}

	<-wq.slots
}

// close signals the dispatcher that no more items will be added.
func (wq *workQueue[Task]) close() {
	close(wq.tasks)
}
