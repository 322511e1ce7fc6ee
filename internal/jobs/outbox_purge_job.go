package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
)

// PublishedEventStore removes outbox events that were already delivered
type PublishedEventStore interface {
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}

// OutboxPurgeJob periodically deletes published outbox events older than the retention window
type OutboxPurgeJob struct {
	store     PublishedEventStore
	retention time.Duration
	timeout   time.Duration
	cron      *cron.Cron
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewOutboxPurgeJob creates the purge job. Nothing runs until Start.
func NewOutboxPurgeJob(store PublishedEventStore, retention time.Duration, logger *logging.Logger, m *metrics.Metrics) *OutboxPurgeJob {
	return &OutboxPurgeJob{
		store:     store,
		retention: retention,
		timeout:   time.Minute,
		cron:      cron.New(),
		logger:    logger.WithComponent("outbox_purge_job"),
		metrics:   m,
		now:       time.Now,
	}
}

// Start schedules the purge using a standard five-field cron spec or a descriptor such as @hourly
func (j *OutboxPurgeJob) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			j.logger.WithError(err).Error("Outbox purge failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}

	j.cron.Start()
	j.logger.Info("Outbox purge job started", "schedule", schedule, "retention", j.retention.String())
	return nil
}

// Stop stops scheduling and waits for a running purge to finish
func (j *OutboxPurgeJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("Outbox purge job stopped")
}

// Run performs one purge and returns the number of events removed
func (j *OutboxPurgeJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	start := time.Now()

	removed, err := j.store.DeletePublished(ctx, cutoff)
	j.logger.Performance(ctx, "outbox_purge", time.Since(start), err == nil, map[string]any{"cutoff": cutoff})
	if err != nil {
		return 0, err
	}

	j.metrics.RecordOutboxPurged(removed)
	if removed > 0 {
		j.logger.Info("Purged published outbox events", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}
