// Package resilience provides bounded retry with exponential backoff, used
// for waiting on contended resources such as the registry lock.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy defines the retry behavior for operations.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (not including initial call).
	MaxRetries int

	// BaseDelay is the initial delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Deadline bounds the total time spent retrying. Zero means unbounded.
	Deadline time.Duration

	// UseJitter adds randomness to delays so competing processes spread out.
	UseJitter bool

	// RetryableErrors restricts retries to errors matching one of these.
	// If empty, every error not marked Permanent is retried.
	RetryableErrors []error
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WaitPolicy builds a policy that polls for at most wait, starting at base.
func WaitPolicy(wait, base time.Duration, retryable ...error) RetryPolicy {
	if base <= 0 {
		base = 25 * time.Millisecond
	}
	maxDelay := wait / 4
	if maxDelay < base {
		maxDelay = base
	}
	return RetryPolicy{
		MaxRetries:      int(wait/base) + 1,
		BaseDelay:       base,
		MaxDelay:        maxDelay,
		Deadline:        wait,
		UseJitter:       true,
		RetryableErrors: retryable,
	}
}

// Retry executes the given function with the specified retry policy.
// It returns the error from the last attempt if all retries are exhausted
// or the deadline elapses.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error

	var deadline time.Time
	if policy.Deadline > 0 {
		deadline = time.Now().Add(policy.Deadline)
	}

	maxAttempts := policy.MaxRetries + 1

	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err

		if !isErrorRetryable(err, policy.RetryableErrors) {
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}

		delay := CalculateBackoff(attempt, policy.BaseDelay, policy.MaxDelay, policy.UseJitter)
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			if delay > remaining {
				delay = remaining
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// CalculateBackoff calculates the backoff delay for a given attempt.
// The delay grows exponentially: baseDelay * 2^attempt, capped at maxDelay.
func CalculateBackoff(attempt int, baseDelay, maxDelay time.Duration, useJitter bool) time.Duration {
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := baseDelay
	for range attempt {
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
			break
		}
	}

	// Jitter scales the delay by a random factor in [0.5, 1.5).
	if useJitter {
		jitterFactor := 0.5 + rand.Float64()
		delay = time.Duration(float64(delay) * jitterFactor)
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}

// isErrorRetryable checks if the error should be retried based on the policy.
func isErrorRetryable(err error, retryableErrors []error) bool {
	if err == nil {
		return false
	}

	// Context errors are never retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if len(retryableErrors) > 0 {
		for _, retryable := range retryableErrors {
			if errors.Is(err, retryable) {
				return true
			}
		}
		return false
	}

	return true
}
