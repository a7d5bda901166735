package orchestration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cschleiden/go-orchestrations/internal/sync"
)

// JoinError is returned by WhenAll when at least one task failed. Errors is aligned with the joined
// futures, entries for successful tasks are nil.
type JoinError struct {
	Errors []error
}

func (e *JoinError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%d of %d tasks failed", len(e.Failed()), len(e.Errors))

	for i, err := range e.Errors {
		if err != nil {
			fmt.Fprintf(&sb, "; [%d]: %v", i, err)
		}
	}

	return sb.String()
}

// Failed returns the indexes of the failed tasks.
func (e *JoinError) Failed() []int {
	var failed []int
	for i, err := range e.Errors {
		if err != nil {
			failed = append(failed, i)
		}
	}

	return failed
}

func (e *JoinError) Unwrap() []error {
	var errs []error
	for _, err := range e.Errors {
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

type joinFuture[T any] struct {
	futures []Future[T]
}

// WhenAll returns a future resolving once every given future has resolved. Results keep the order of the
// futures. If any task failed, the results of the successful ones are still returned together with a
// *JoinError.
func WhenAll[T any](futures ...Future[T]) Future[[]T] {
	return &joinFuture[T]{futures: futures}
}

func (j *joinFuture[T]) Get(ctx sync.Context) ([]T, error) {
	results := make([]T, len(j.futures))

	var errs []error

	for i, f := range j.futures {
		v, err := f.Get(ctx)
		results[i] = v

		if err != nil {
			if errs == nil {
				errs = make([]error, len(j.futures))
			}

			errs[i] = err
		}
	}

	if errs != nil {
		return results, &JoinError{Errors: errs}
	}

	return results, nil
}

func (j *joinFuture[T]) Ready() bool {
	for _, f := range j.futures {
		if !f.Ready() {
			return false
		}
	}

	return true
}

var ErrNoTasks = errors.New("no tasks given")

// WhenAny blocks until at least one of the given futures has resolved and returns the index of the first
// resolved one. The other futures stay pending and can be awaited or abandoned.
func WhenAny(ctx Context, futures ...Awaitable) (int, error) {
	if len(futures) == 0 {
		return -1, ErrNoTasks
	}

	sync.Await(ctx, func() bool {
		for _, f := range futures {
			if f.Ready() {
				return true
			}
		}

		return false
	})

	for i, f := range futures {
		if f.Ready() {
			return i, nil
		}
	}

	return -1, ErrNoTasks
}
