package httputil

import (
	"context"
	"errors"
	"testing"
)

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	permanent := errors.New("bad request")
	err := Retry(context.Background(), 3, 0, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable must not repeat)", calls)
	}
}

func TestRetryOnceRetriesExactlyOnce(t *testing.T) {
	calls := 0
	err := RetryOnce(context.Background(), func() error {
		calls++
		return &RetryableError{Err: errors.New("connection refused")}
	})
	if err == nil {
		t.Fatal("err = nil, want failure after retries exhausted")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	err := RetryOnce(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &RetryableError{Err: errors.New("timeout")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, 0, func() error {
		return &RetryableError{Err: errors.New("flaky")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRetryableUnwrap(t *testing.T) {
	cause := errors.New("dial tcp")
	re := &RetryableError{Err: cause}
	if !errors.Is(re, cause) {
		t.Error("RetryableError does not unwrap to cause")
	}
}
