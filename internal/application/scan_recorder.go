package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
	"github.com/wms-platform/inbound-service/pkg/tracing"
)

var tracer = otel.Tracer("inbound-service/application")

// Scan outcomes reported to metrics
const (
	scanApplied   = "applied"
	scanDuplicate = "duplicate"
	scanRejected  = "rejected"
)

// ScanResult is the outcome of recording a scan
type ScanResult struct {
	Scan          *domain.Scan          `json:"scan"`
	Task          *domain.Task          `json:"task"`
	Pallet        *domain.Pallet        `json:"pallet,omitempty"`
	Discrepancies []*domain.Discrepancy `json:"discrepancies,omitempty"`
	// Duplicate is set when the request id was already recorded; nothing was applied
	Duplicate     bool `json:"duplicate"`
	TaskCompleted bool `json:"taskCompleted"`
}

// ScanRecorder records scans for one task type
type ScanRecorder struct {
	taskType domain.TaskType
	effect   scanEffect
	stores   Stores
	phases   PhaseChecker
	policy   RetryPolicy
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// Record applies a scan to the task exactly once per request id. Version conflicts re-run
// the whole attempt from fresh reads.
func (r *ScanRecorder) Record(ctx context.Context, cmd RecordScanCommand) (*ScanResult, error) {
	ctx, span := tracer.Start(ctx, "scan.record", trace.WithAttributes(
		attribute.String("task.id", cmd.TaskID),
		attribute.String("task.type", string(r.taskType)),
		attribute.String("scan.request_id", cmd.RequestID),
	))
	defer span.End()

	if strings.TrimSpace(cmd.RequestID) == "" || strings.TrimSpace(cmd.PalletCode) == "" {
		err := apperrors.ErrValidationWithFields("scan is incomplete", map[string]string{
			"requestId":  "required",
			"palletCode": "required",
		})
		r.metrics.RecordScan(string(r.taskType), scanRejected)
		tracing.RecordError(span, err)
		return nil, err
	}

	result, err := withOptimisticRetry(ctx, r.policy, r.metrics, "record_scan", "task", func(ctx context.Context) (*ScanResult, error) {
		return r.attempt(ctx, cmd)
	})
	if err != nil {
		r.metrics.RecordScan(string(r.taskType), scanRejected)
		tracing.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("scan.duplicate", result.Duplicate))
	if result.Duplicate {
		r.metrics.RecordScan(string(r.taskType), scanDuplicate)
		r.logger.Info("Duplicate scan ignored", "taskId", cmd.TaskID, "requestId", cmd.RequestID)
		return result, nil
	}

	r.metrics.RecordScan(string(r.taskType), scanApplied)
	for _, d := range result.Discrepancies {
		r.metrics.RecordDiscrepancy(string(d.Type))
		r.logger.Warn("Discrepancy detected",
			"receiptId", d.ReceiptID,
			"taskId", d.TaskID,
			"type", d.Type,
			"qtyExpected", d.QtyExpected,
			"qtyActual", d.QtyActual,
		)
	}
	r.logger.Info("Recorded scan",
		"taskId", result.Task.ID,
		"type", r.taskType,
		"palletCode", cmd.PalletCode,
		"quantity", cmd.Quantity,
		"qtyDone", result.Task.QtyDone,
		"taskCompleted", result.TaskCompleted,
	)

	if result.TaskCompleted && r.taskType != domain.TaskTypeShipping && r.phases != nil {
		if _, err := r.phases.CheckPhaseCompletion(ctx, result.Task.ReceiptID); err != nil {
			r.logger.WithError(err).Error("Receipt phase check failed",
				"receiptId", result.Task.ReceiptID,
				"taskId", result.Task.ID,
			)
		}
	}
	return result, nil
}

func (r *ScanRecorder) attempt(ctx context.Context, cmd RecordScanCommand) (*ScanResult, error) {
	task, err := r.stores.Tasks.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperrors.ErrNotFoundWithID("task", cmd.TaskID)
	}

	if existing, err := r.stores.Scans.FindByTaskAndRequestID(ctx, task.ID, cmd.RequestID); err != nil {
		return nil, err
	} else if existing != nil {
		return &ScanResult{Scan: existing, Task: task, Duplicate: true}, nil
	}

	if task.Type != r.taskType {
		return nil, apperrors.ErrPreconditionFailed(fmt.Sprintf("task %s is a %s task, not %s", task.ID, task.Type, r.taskType))
	}
	if _, err := task.AutoStartIfNeeded(); err != nil {
		return nil, err
	}

	receipt, err := r.stores.Receipts.FindByID(ctx, task.ReceiptID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, apperrors.ErrNotFoundWithID("receipt", task.ReceiptID)
	}

	pallet, err := r.stores.Pallets.FindByCode(ctx, strings.TrimSpace(cmd.PalletCode))
	if err != nil {
		return nil, err
	}

	plan, err := r.effect.apply(ctx, &scanInput{task: task, receipt: receipt, pallet: pallet, cmd: cmd})
	if err != nil {
		return nil, err
	}

	completed := false
	if task.IsFulfilled() {
		if err := task.Complete(); err != nil {
			return nil, err
		}
		completed = true
	}

	locationCode := cmd.LocationCode
	if plan.locationCode != "" {
		locationCode = plan.locationCode
	}
	scan := domain.NewScan(domain.Scan{
		TaskID:       task.ID,
		ReceiptID:    task.ReceiptID,
		RequestID:    cmd.RequestID,
		PalletCode:   plan.pallet.Code,
		SSCC:         cmd.SSCC,
		Barcode:      cmd.Barcode,
		Quantity:     cmd.Quantity,
		LocationCode: locationCode,
		DeviceID:     cmd.DeviceID,
		Lot:          cmd.Lot,
		Expiry:       cmd.Expiry,
		Discrepancy:  len(plan.discrepancies) > 0,
		Damaged:      cmd.Damaged,
		DamageType:   cmd.DamageType,
		DamageNote:   cmd.DamageNote,
		ScannedBy:    cmd.ScannedBy,
	})

	err = r.stores.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.stores.Scans.Append(ctx, scan); err != nil {
			return err
		}
		if err := r.stores.Tasks.Save(ctx, task); err != nil {
			return err
		}
		if err := r.stores.Pallets.Save(ctx, plan.pallet); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				// Another scan created a pallet with this code first; the next attempt reuses it.
				return fmt.Errorf("%w: pallet %s created concurrently", domain.ErrVersionConflict, plan.pallet.Code)
			}
			return err
		}
		if plan.movement != nil {
			if err := r.stores.Movements.Append(ctx, plan.movement); err != nil {
				return err
			}
		}
		for _, loc := range plan.locations {
			if err := r.stores.Locations.Save(ctx, loc); err != nil {
				return err
			}
		}
		for _, d := range plan.discrepancies {
			if err := r.stores.Discrepancies.Save(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateScan) {
		// A concurrent request with the same id won; report what it stored.
		existing, findErr := r.stores.Scans.FindByTaskAndRequestID(ctx, cmd.TaskID, cmd.RequestID)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, err
		}
		current, findErr := r.stores.Tasks.FindByID(ctx, cmd.TaskID)
		if findErr != nil {
			return nil, findErr
		}
		return &ScanResult{Scan: existing, Task: current, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	return &ScanResult{
		Scan:          scan,
		Task:          task,
		Pallet:        plan.pallet,
		Discrepancies: plan.discrepancies,
		TaskCompleted: completed,
	}, nil
}

// ScanService routes scans to the recorder of the task's type
type ScanService struct {
	tasks     domain.TaskRepository
	recorders map[domain.TaskType]*ScanRecorder
}

// NewScanService creates the receiving, placement and shipping recorders
func NewScanService(stores Stores, phases PhaseChecker, opts Options, logger *logging.Logger, m *metrics.Metrics) *ScanService {
	logger = logger.WithComponent("scan-recorder")
	recorder := func(taskType domain.TaskType, effect scanEffect) *ScanRecorder {
		return &ScanRecorder{
			taskType: taskType,
			effect:   effect,
			stores:   stores,
			phases:   phases,
			policy:   opts.Retry,
			logger:   logger,
			metrics:  m,
		}
	}

	return &ScanService{
		tasks: stores.Tasks,
		recorders: map[domain.TaskType]*ScanRecorder{
			domain.TaskTypeReceiving: recorder(domain.TaskTypeReceiving, &receivingEffect{
				locations:       stores.Locations,
				defaultLocation: opts.DefaultReceivingLocation,
			}),
			domain.TaskTypePlacement: recorder(domain.TaskTypePlacement, &placementEffect{
				locations: stores.Locations,
				pallets:   stores.Pallets,
				logger:    logger,
				metrics:   m,
			}),
			domain.TaskTypeShipping: recorder(domain.TaskTypeShipping, &shippingEffect{
				locations: stores.Locations,
				pallets:   stores.Pallets,
			}),
		},
	}
}

// RecordScan records a scan against the task named in cmd
func (s *ScanService) RecordScan(ctx context.Context, cmd RecordScanCommand) (*ScanResult, error) {
	task, err := s.tasks.FindByID(ctx, cmd.TaskID)
	if err != nil {
		return nil, toAppError(err, "task")
	}
	if task == nil {
		return nil, apperrors.ErrNotFoundWithID("task", cmd.TaskID)
	}

	recorder, ok := s.recorders[task.Type]
	if !ok {
		return nil, apperrors.ErrPreconditionFailed(fmt.Sprintf("no scan recorder for %s tasks", task.Type))
	}
	return recorder.Record(ctx, cmd)
}
