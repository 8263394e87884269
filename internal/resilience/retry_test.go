package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetrySuccess(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
	}

	var callCount atomic.Int32
	err := Retry(context.Background(), policy, func() error {
		callCount.Add(1)
		return nil
	})

	if err != nil {
		t.Errorf("Retry() error = %v, want nil", err)
	}
	if callCount.Load() != 1 {
		t.Errorf("call count = %d, want 1", callCount.Load())
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   20 * time.Millisecond,
	}

	var callCount atomic.Int32
	busy := errors.New("busy")

	err := Retry(context.Background(), policy, func() error {
		if callCount.Add(1) < 3 {
			return busy
		}
		return nil
	})

	if err != nil {
		t.Errorf("Retry() error = %v, want nil", err)
	}
	if callCount.Load() != 3 {
		t.Errorf("call count = %d, want 3", callCount.Load())
	}
}

func TestRetryExhausted(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}

	var callCount atomic.Int32
	busy := errors.New("busy")

	err := Retry(context.Background(), policy, func() error {
		callCount.Add(1)
		return busy
	})

	if !errors.Is(err, busy) {
		t.Errorf("Retry() error = %v, want %v", err, busy)
	}
	if callCount.Load() != 4 {
		t.Errorf("call count = %d, want 4", callCount.Load())
	}
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond}
	fatal := errors.New("fatal")

	var callCount atomic.Int32
	err := Retry(context.Background(), policy, func() error {
		callCount.Add(1)
		return Permanent(fatal)
	})

	if !errors.Is(err, fatal) {
		t.Errorf("Retry() error = %v, want %v", err, fatal)
	}
	if callCount.Load() != 1 {
		t.Errorf("call count = %d, want 1", callCount.Load())
	}
}

func TestRetryOnlyListedErrors(t *testing.T) {
	t.Parallel()

	busy := errors.New("busy")
	other := errors.New("other")
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond, RetryableErrors: []error{busy}}

	var callCount atomic.Int32
	err := Retry(context.Background(), policy, func() error {
		callCount.Add(1)
		return other
	})

	if !errors.Is(err, other) {
		t.Errorf("Retry() error = %v, want %v", err, other)
	}
	if callCount.Load() != 1 {
		t.Errorf("call count = %d, want 1", callCount.Load())
	}
}

func TestRetryDeadlineBoundsTotalWait(t *testing.T) {
	t.Parallel()

	busy := errors.New("busy")
	policy := WaitPolicy(80*time.Millisecond, 10*time.Millisecond, busy)

	start := time.Now()
	err := Retry(context.Background(), policy, func() error { return busy })
	elapsed := time.Since(start)

	if !errors.Is(err, busy) {
		t.Errorf("Retry() error = %v, want %v", err, busy)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("elapsed %v exceeds the wait bound by far", elapsed)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{
		MaxRetries: 10,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, policy, func() error { return errors.New("fail") })

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{2, 40 * time.Millisecond},
		{5, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		got := CalculateBackoff(tt.attempt, 10*time.Millisecond, 100*time.Millisecond, false)
		if got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	for range 20 {
		got := CalculateBackoff(1, 10*time.Millisecond, 100*time.Millisecond, true)
		if got < 10*time.Millisecond || got > 30*time.Millisecond {
			t.Errorf("jittered backoff %v outside [10ms, 30ms]", got)
		}
	}
}
