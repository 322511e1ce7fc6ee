package outbox

import (
	"context"
	"time"
)

// Repository defines outbox event persistence
type Repository interface {
	// SaveAll stores events, joining the caller's transaction when ctx carries one
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns unpublished events still under their retry limit, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry increments the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished removes events published before the cutoff and returns how many were removed
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}
