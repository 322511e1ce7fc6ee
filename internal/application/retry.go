package application

import (
	"context"
	"errors"
	"time"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/metrics"
	"github.com/wms-platform/inbound-service/pkg/resilience"
)

// RetryPolicy bounds the fresh-read retries of commands that lose a version race
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns three attempts starting at 10ms
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  resilience.DefaultRetryMaxAttempts,
		InitialDelay: resilience.DefaultRetryInitialDelay,
		MaxDelay:     resilience.DefaultRetryMaxDelay,
	}
}

// withOptimisticRetry runs fn until it commits, re-running it from scratch after a version
// conflict. fn must re-read everything it mutates. Exhaustion is CONCURRENT_MODIFICATION.
func withOptimisticRetry[T any](ctx context.Context, policy RetryPolicy, m *metrics.Metrics, operation, resource string, fn func(ctx context.Context) (T, error)) (T, error) {
	config := &resilience.RetryConfig{
		MaxAttempts:   policy.MaxAttempts,
		InitialDelay:  policy.InitialDelay,
		MaxDelay:      policy.MaxDelay,
		BackoffFactor: resilience.DefaultRetryBackoffFactor,
		RetryableErrors: func(err error) bool {
			return errors.Is(err, domain.ErrVersionConflict)
		},
		OnRetry: func(attempt int, err error) {
			m.RecordOptimisticRetry(operation)
		},
	}

	result, err := resilience.RetryWithResult(ctx, config, func() (T, error) {
		return fn(ctx)
	})
	if err == nil {
		return result, nil
	}

	var zero T
	if errors.Is(err, resilience.ErrMaxRetriesExceeded) {
		m.RecordConflictExhausted(operation)
		return zero, apperrors.ErrConcurrentModification(resource).Wrap(err)
	}
	return zero, toAppError(err, resource)
}
