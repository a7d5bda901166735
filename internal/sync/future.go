package sync

import "errors"

var ErrFutureAlreadySet = errors.New("future already set")

type Future[T any] interface {
	// Get returns the value if set, blocks the calling coroutine otherwise
	Get(ctx Context) (T, error)

	// Ready returns true if the value has been set
	Ready() bool
}

type SettableFuture[T any] interface {
	Future[T]

	// Set stores the value and unblocks any waiting consumers. Returns ErrFutureAlreadySet when called twice.
	Set(v T, err error) error
}

func NewFuture[T any]() SettableFuture[T] {
	return &futureImpl[T]{}
}

type futureImpl[T any] struct {
	hasValue bool
	v        T
	err      error
}

func (f *futureImpl[T]) Set(v T, err error) error {
	if f.hasValue {
		return ErrFutureAlreadySet
	}

	f.v = v
	f.err = err
	f.hasValue = true

	return nil
}

func (f *futureImpl[T]) Get(ctx Context) (T, error) {
	Await(ctx, f.Ready)

	return f.v, f.err
}

func (f *futureImpl[T]) Ready() bool {
	return f.hasValue
}

// Await blocks the calling coroutine until cond returns true.
func Await(ctx Context, cond func() bool) {
	cr := getCoState(ctx)

	for {
		if cond() {
			cr.MadeProgress()
			return
		}

		cr.Yield()
	}
}
