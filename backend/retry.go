package backend

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxConflictRetries = 10

// RetryOnConflict runs fn until it succeeds or fails with an error other than ErrConflict. fn is expected
// to re-read the history it appends to.
func RetryOnConflict(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := fn()
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}

		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxConflictRetries), ctx))
}
