package application

import (
	"context"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
)

// DiscrepancyService lists and resolves discrepancies
type DiscrepancyService struct {
	repo    domain.DiscrepancyRepository
	policy  RetryPolicy
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewDiscrepancyService creates a new DiscrepancyService
func NewDiscrepancyService(repo domain.DiscrepancyRepository, policy RetryPolicy, logger *logging.Logger, m *metrics.Metrics) *DiscrepancyService {
	return &DiscrepancyService{
		repo:    repo,
		policy:  policy,
		logger:  logger,
		metrics: m,
	}
}

// GetDiscrepancy returns one discrepancy
func (s *DiscrepancyService) GetDiscrepancy(ctx context.Context, id string) (*domain.Discrepancy, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, toAppError(err, "discrepancy")
	}
	if d == nil {
		return nil, apperrors.ErrNotFoundWithID("discrepancy", id)
	}
	return d, nil
}

// ListDiscrepancies returns discrepancies matching the query
func (s *DiscrepancyService) ListDiscrepancies(ctx context.Context, query ListDiscrepanciesQuery) ([]*domain.Discrepancy, error) {
	list, err := s.repo.FindAll(ctx, domain.DiscrepancyFilter{
		ReceiptID: query.ReceiptID,
		Type:      domain.DiscrepancyType(query.Type),
		Resolved:  query.Resolved,
	})
	if err != nil {
		return nil, toAppError(err, "discrepancy")
	}
	return list, nil
}

// Resolve closes a discrepancy. Resolving twice is a precondition failure.
func (s *DiscrepancyService) Resolve(ctx context.Context, cmd ResolveDiscrepancyCommand) (*domain.Discrepancy, error) {
	d, err := withOptimisticRetry(ctx, s.policy, s.metrics, "resolve_discrepancy", "discrepancy", func(ctx context.Context) (*domain.Discrepancy, error) {
		d, err := s.GetDiscrepancy(ctx, cmd.DiscrepancyID)
		if err != nil {
			return nil, err
		}
		if err := d.Resolve(cmd.ResolvedBy, cmd.Note); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, d); err != nil {
			return nil, err
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Audit(ctx, "resolve", "discrepancy", d.ID, cmd.ResolvedBy, map[string]any{
		"receiptId": d.ReceiptID,
		"type":      d.Type,
	})
	return d, nil
}
