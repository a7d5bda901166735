package orchestration

import (
	"math"
	"time"

	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
	"github.com/cschleiden/go-orchestrations/internal/sync"
)

type RetryPolicy struct {
	// MaxAttempts is the number of retries after the first failed execution
	MaxAttempts int

	// FirstRetryInterval is the delay before the first retry
	FirstRetryInterval time.Duration

	// BackoffCoefficient is the multiplier applied to the delay for each subsequent retry. Values below 1
	// are treated as 1.
	BackoffCoefficient float64

	// MaxRetryInterval caps the delay of any individual retry
	MaxRetryInterval time.Duration

	// Timeout after which no further retries are started, measured from the first attempt
	Timeout time.Duration

	// ShouldRetry classifies failures. Defaults to retrying everything not marked as permanent.
	ShouldRetry func(err error) bool
}

// Delay returns the backoff before the given retry. Retries are numbered from 1.
func (p *RetryPolicy) Delay(retry int) time.Duration {
	coefficient := p.BackoffCoefficient
	if coefficient < 1 {
		coefficient = 1
	}

	delay := time.Duration(float64(p.FirstRetryInterval) * math.Pow(coefficient, float64(retry-1)))
	if p.MaxRetryInterval > 0 && delay > p.MaxRetryInterval {
		delay = p.MaxRetryInterval
	}

	return delay
}

func (p *RetryPolicy) shouldRetry(err error) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}

	return orchestrationerrors.CanRetry(err)
}

// withRetries schedules the first attempt right away so that fan-outs keep their correlation order, and
// runs any retries in a separate coroutine.
func withRetries[T any](ctx Context, policy *RetryPolicy, fn func(ctx Context, attempt int) Future[T]) Future[T] {
	first := fn(ctx, 1)

	if policy == nil || policy.MaxAttempts <= 0 {
		return first
	}

	r := sync.NewFuture[T]()
	start := Now(ctx)

	sync.Go(ctx, func(ctx Context) {
		f := first

		for retry := 1; ; retry++ {
			result, err := f.Get(ctx)
			if err == nil || retry > policy.MaxAttempts || !policy.shouldRetry(err) {
				r.Set(result, err)
				return
			}

			delay := policy.Delay(retry)
			if policy.Timeout > 0 && Now(ctx).Add(delay).Sub(start) > policy.Timeout {
				// Retrying would exceed the budget, surface the last failure
				r.Set(result, err)
				return
			}

			Logger(ctx).Debug("Retrying after failure", "retry", retry, "delay", delay, "error", err)

			if err := Sleep(ctx, delay); err != nil {
				r.Set(*new(T), err)
				return
			}

			f = fn(ctx, retry+1)
		}
	})

	return r
}
