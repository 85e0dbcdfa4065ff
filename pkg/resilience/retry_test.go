package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	retried := 0
	cfg := FixedRetry(10, 0)
	cfg.OnRetry = func(int, error) { retried++ }

	err := Retry(context.Background(), "flaky", cfg, func() error {
		calls++
		if calls < 4 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
	if retried != 3 {
		t.Errorf("expected 3 retry callbacks, got %d", retried)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "broken", FixedRetry(10, 0), func() error {
		calls++
		return errTransient
	})
	if calls != 10 {
		t.Errorf("expected 10 calls, got %d", calls)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("expected last error to be wrapped, got %v", err)
	}
}

func TestRetryAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "cancelled", FixedRetry(5, time.Hour), func() error {
		calls++
		cancel()
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestDoReturnsValue(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), "value", FixedRetry(3, 0), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("Do() = %d, %v; want 42, nil", got, err)
	}
}

func TestNoRetryReturnsErrorUnwrapped(t *testing.T) {
	err := Retry(context.Background(), "once", NoRetry(), func() error { return errTransient })
	if err != errTransient {
		t.Errorf("expected the raw error, got %v", err)
	}
}

func TestComputeDelayFixed(t *testing.T) {
	cfg := FixedRetry(10, 2*time.Second).normalized()
	for attempt := 1; attempt <= 5; attempt++ {
		if d := computeDelay(attempt, cfg); d != 2*time.Second {
			t.Errorf("attempt %d: expected fixed 2s delay, got %v", attempt, d)
		}
	}
}
