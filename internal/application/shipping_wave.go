package application

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
	"github.com/wms-platform/inbound-service/pkg/tracing"
)

// Wave statuses besides the shared receipt status name
const (
	WaveStatusReady    = "READY"
	WaveStatusShipping = "SHIPPING"
	WaveStatusMixed    = "MIXED"
)

// Wave groups the cross-dock receipts leaving on one outbound reference
type Wave struct {
	OutboundRef  string                       `json:"outboundRef"`
	Status       string                       `json:"status"`
	ReceiptIDs   []string                     `json:"receiptIds"`
	StatusCounts map[domain.ReceiptStatus]int `json:"statusCounts"`
}

// WaveActionResult reports what a wave action did to each member receipt
type WaveActionResult struct {
	OutboundRef       string            `json:"outboundRef"`
	TargetedReceipts  int               `json:"targetedReceipts"`
	AffectedReceipts  int               `json:"affectedReceipts"`
	TasksCreated      int               `json:"tasksCreated"`
	BlockedReceiptIDs []string          `json:"blockedReceiptIds"`
	BlockedReasons    map[string]string `json:"blockedReasons"`
}

func (r *WaveActionResult) block(receiptID, reason string) {
	r.BlockedReceiptIDs = append(r.BlockedReceiptIDs, receiptID)
	r.BlockedReasons[receiptID] = reason
}

// ShippingWorkflow is the per-receipt shipping part of the receipt workflow
type ShippingWorkflow interface {
	StartShipping(ctx context.Context, receiptID string) (*ShippingResult, error)
	CompleteShipping(ctx context.Context, receiptID string) (*domain.Receipt, error)
}

// ShippingWaveCoordinator starts and completes shipping for every receipt of an outbound reference
type ShippingWaveCoordinator struct {
	receipts domain.ReceiptRepository
	workflow ShippingWorkflow
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewShippingWaveCoordinator creates a new ShippingWaveCoordinator
func NewShippingWaveCoordinator(receipts domain.ReceiptRepository, workflow ShippingWorkflow, logger *logging.Logger, m *metrics.Metrics) *ShippingWaveCoordinator {
	return &ShippingWaveCoordinator{
		receipts: receipts,
		workflow: workflow,
		logger:   logger.WithComponent("shipping-wave"),
		metrics:  m,
	}
}

// ListWaves returns every wave ordered by outbound reference
func (c *ShippingWaveCoordinator) ListWaves(ctx context.Context) ([]*Wave, error) {
	crossDock := true
	receipts, err := c.receipts.FindAll(ctx, domain.ReceiptFilter{CrossDock: &crossDock, WithOutboundRef: true})
	if err != nil {
		return nil, toAppError(err, "receipt")
	}

	byRef := make(map[string][]*domain.Receipt)
	for _, r := range receipts {
		if r.IsCrossDockWaveMember() {
			byRef[r.OutboundRef] = append(byRef[r.OutboundRef], r)
		}
	}

	waves := make([]*Wave, 0, len(byRef))
	for ref, members := range byRef {
		waves = append(waves, buildWave(ref, members))
	}
	sort.Slice(waves, func(i, j int) bool { return waves[i].OutboundRef < waves[j].OutboundRef })
	return waves, nil
}

// GetWave returns one wave
func (c *ShippingWaveCoordinator) GetWave(ctx context.Context, outboundRef string) (*Wave, error) {
	members, err := c.members(ctx, outboundRef)
	if err != nil {
		return nil, err
	}
	return buildWave(outboundRef, members), nil
}

// StartWave starts shipping for every READY_FOR_SHIPMENT member. Each receipt commits on its
// own; the others are reported as blocked.
func (c *ShippingWaveCoordinator) StartWave(ctx context.Context, outboundRef string) (*WaveActionResult, error) {
	ctx, span := tracer.Start(ctx, "wave.start", trace.WithAttributes(attribute.String("wave.outbound_ref", outboundRef)))
	defer span.End()

	members, err := c.members(ctx, outboundRef)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	result := newWaveActionResult(outboundRef, len(members))
	for _, r := range members {
		if r.Status != domain.ReceiptStatusReadyForShipment {
			result.block(r.ID, "receipt is "+string(r.Status))
			c.metrics.RecordWaveAction("start", "blocked")
			continue
		}

		shipped, err := c.workflow.StartShipping(ctx, r.ID)
		if err != nil {
			result.block(r.ID, apperrors.FromError(err).Message)
			c.metrics.RecordWaveAction("start", "failed")
			c.logger.WithError(err).Warn("Receipt could not start shipping", "outboundRef", outboundRef, "receiptId", r.ID)
			continue
		}
		result.AffectedReceipts++
		result.TasksCreated += shipped.TasksCreated
		c.metrics.RecordWaveAction("start", "affected")
	}

	span.SetAttributes(attribute.Int("wave.affected", result.AffectedReceipts))
	c.logger.Info("Started wave",
		"outboundRef", outboundRef,
		"targeted", result.TargetedReceipts,
		"affected", result.AffectedReceipts,
		"tasksCreated", result.TasksCreated,
		"blocked", len(result.BlockedReceiptIDs),
	)
	return result, nil
}

// CompleteWave ships every SHIPPING_IN_PROGRESS member whose shipping tasks are all completed
func (c *ShippingWaveCoordinator) CompleteWave(ctx context.Context, outboundRef string) (*WaveActionResult, error) {
	ctx, span := tracer.Start(ctx, "wave.complete", trace.WithAttributes(attribute.String("wave.outbound_ref", outboundRef)))
	defer span.End()

	members, err := c.members(ctx, outboundRef)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	result := newWaveActionResult(outboundRef, len(members))
	for _, r := range members {
		if r.Status != domain.ReceiptStatusShippingInProgress {
			result.block(r.ID, "receipt is "+string(r.Status))
			c.metrics.RecordWaveAction("complete", "blocked")
			continue
		}

		if _, err := c.workflow.CompleteShipping(ctx, r.ID); err != nil {
			result.block(r.ID, apperrors.FromError(err).Message)
			c.metrics.RecordWaveAction("complete", "failed")
			continue
		}
		result.AffectedReceipts++
		c.metrics.RecordWaveAction("complete", "affected")
	}

	span.SetAttributes(attribute.Int("wave.affected", result.AffectedReceipts))
	c.logger.Info("Completed wave",
		"outboundRef", outboundRef,
		"targeted", result.TargetedReceipts,
		"affected", result.AffectedReceipts,
		"blocked", len(result.BlockedReceiptIDs),
	)
	return result, nil
}

func (c *ShippingWaveCoordinator) members(ctx context.Context, outboundRef string) ([]*domain.Receipt, error) {
	crossDock := true
	receipts, err := c.receipts.FindAll(ctx, domain.ReceiptFilter{CrossDock: &crossDock, OutboundRef: outboundRef})
	if err != nil {
		return nil, toAppError(err, "receipt")
	}
	if outboundRef == "" || len(receipts) == 0 {
		return nil, apperrors.ErrNotFoundWithID("wave", outboundRef)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].ID < receipts[j].ID })
	return receipts, nil
}

func newWaveActionResult(outboundRef string, targeted int) *WaveActionResult {
	return &WaveActionResult{
		OutboundRef:       outboundRef,
		TargetedReceipts:  targeted,
		BlockedReceiptIDs: []string{},
		BlockedReasons:    map[string]string{},
	}
}

func buildWave(ref string, members []*domain.Receipt) *Wave {
	wave := &Wave{
		OutboundRef:  ref,
		ReceiptIDs:   make([]string, 0, len(members)),
		StatusCounts: make(map[domain.ReceiptStatus]int),
	}
	for _, r := range members {
		wave.ReceiptIDs = append(wave.ReceiptIDs, r.ID)
		wave.StatusCounts[r.Status]++
	}
	sort.Strings(wave.ReceiptIDs)

	if len(wave.StatusCounts) != 1 {
		wave.Status = WaveStatusMixed
		return wave
	}
	for status := range wave.StatusCounts {
		switch status {
		case domain.ReceiptStatusReadyForShipment:
			wave.Status = WaveStatusReady
		case domain.ReceiptStatusShippingInProgress:
			wave.Status = WaveStatusShipping
		default:
			wave.Status = string(status)
		}
	}
	return wave
}
