// Package resilience provides the bounded retry used around storage reads
// that may hit a transient fault in a networked store, and the deadline put
// on connectivity probes.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig bounds a retried operation. A Multiplier of 1 with no jitter
// gives a fixed inter-attempt delay.
type RetryConfig struct {
	MaxAttempts    int
	Delay          time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// OnRetry, when set, is called after every failed attempt that will be
	// retried.
	OnRetry func(attempt int, err error)
}

// FixedRetry returns a policy of attempts tries separated by delay.
func FixedRetry(attempts int, delay time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		Delay:       delay,
		Multiplier:  1,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

func (cfg RetryConfig) normalized() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// Retry calls fn until it succeeds, the attempts run out or ctx is done. The
// error of the last attempt is returned wrapped.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	_, err := Do(ctx, name, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do is Retry for operations that produce a value.
func Do[T any](ctx context.Context, name string, cfg RetryConfig, fn func() (T, error)) (T, error) {
	cfg = cfg.normalized()
	logger := slog.Default().With("component", "retry", "operation", name)
	var (
		result  T
		lastErr error
	)
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return result, nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("retry aborted: %w", ctx.Err())
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}
		delay := computeDelay(attempt, cfg)
		logger.Warn("operation failed, retrying", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", lastErr, "next_delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return result, fmt.Errorf("retry aborted during wait: %w", ctx.Err())
		}
	}
	if cfg.MaxAttempts == 1 {
		return result, lastErr
	}
	return result, fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
}

func computeDelay(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.Delay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.JitterFraction > 0 {
		backoff += backoff * cfg.JitterFraction * (2*rand.Float64() - 1)
	}
	if cfg.MaxDelay > 0 && backoff > float64(cfg.MaxDelay) {
		backoff = float64(cfg.MaxDelay)
	}
	if backoff < 0 {
		backoff = float64(cfg.Delay)
	}
	return time.Duration(backoff)
}
