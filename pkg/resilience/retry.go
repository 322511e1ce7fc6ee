package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxRetriesExceeded wraps the last error once all attempts are used
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// RetryConfig configures Retry and RetryWithResult
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the default retry settings. Nothing is retryable
// until RetryableErrors is set.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   DefaultRetryMaxAttempts,
		InitialDelay:  DefaultRetryInitialDelay,
		MaxDelay:      DefaultRetryMaxDelay,
		BackoffFactor: DefaultRetryBackoffFactor,
		RetryableErrors: func(err error) bool {
			return false
		},
	}
}

// Retry executes fn with retry logic
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes fn with retry logic and returns its result.
// Non-retryable errors are returned unchanged; exhaustion wraps both
// ErrMaxRetriesExceeded and the last error.
func RetryWithResult[T any](ctx context.Context, config *RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := config.InitialDelay
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if config.RetryableErrors == nil || !config.RetryableErrors(err) {
			return zero, err
		}

		if attempt == maxAttempts {
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt, err)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}

			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if config.MaxDelay > 0 && delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return zero, fmt.Errorf("%w (%d attempts): %w", ErrMaxRetriesExceeded, maxAttempts, lastErr)
}
