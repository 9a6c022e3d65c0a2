package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how an operation is retried. Zero fields take defaults.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
	DefaultMultiplier     = 2
)

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	return p
}

// ExhaustedError is returned when an operation did not succeed within the policy.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. Every failure is an *ExhaustedError.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialBackoff
	exp.MaxInterval = p.MaxBackoff
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)

	var (
		result   T
		attempts int
	)

	err := backoff.RetryNotify(func() error {
		attempts++
		v, err := op(ctx)
		if err != nil {
			if p.Retryable != nil && !p.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = v
		return nil
	}, b, func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempts, err, wait)
		}
	})
	if err != nil {
		var zero T
		return zero, &ExhaustedError{Attempts: attempts, Err: err}
	}

	return result, nil
}
