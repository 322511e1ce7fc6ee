package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
)

// StartReceivingResult is the outcome of startReceiving
type StartReceivingResult struct {
	Receipt      *domain.Receipt `json:"receipt"`
	TasksCreated int             `json:"tasksCreated"`
	Tasks        []*domain.Task  `json:"tasks"`
}

// PlacementResult is the outcome of startPlacement
type PlacementResult struct {
	Receipt      *domain.Receipt  `json:"receipt"`
	TasksCreated int              `json:"tasksCreated"`
	Tasks        []*domain.Task   `json:"tasks"`
	Failures     []PutawayFailure `json:"failures"`
}

// ShippingResult is the outcome of startShipping
type ShippingResult struct {
	Receipt      *domain.Receipt `json:"receipt"`
	TasksCreated int             `json:"tasksCreated"`
	Tasks        []*domain.Task  `json:"tasks"`
}

// ReceiptWorkflow drives a receipt through receiving, placement and shipping
type ReceiptWorkflow struct {
	stores  Stores
	planner *PutawayPlanner
	policy  RetryPolicy
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewReceiptWorkflow creates a new ReceiptWorkflow
func NewReceiptWorkflow(stores Stores, planner *PutawayPlanner, policy RetryPolicy, logger *logging.Logger, m *metrics.Metrics) *ReceiptWorkflow {
	return &ReceiptWorkflow{
		stores:  stores,
		planner: planner,
		policy:  policy,
		logger:  logger,
		metrics: m,
	}
}

// CreateReceipt creates a manual DRAFT receipt
func (s *ReceiptWorkflow) CreateReceipt(ctx context.Context, cmd CreateReceiptCommand) (*domain.Receipt, error) {
	lines := make([]domain.ReceiptLine, 0, len(cmd.Lines))
	for _, l := range cmd.Lines {
		lines = append(lines, l.toDomain())
	}

	docDate := cmd.DocDate
	if docDate.IsZero() {
		docDate = time.Now().UTC()
	}

	receipt, err := domain.NewReceipt(cmd.DocNo, docDate, cmd.Supplier, cmd.CrossDock, cmd.OutboundRef, domain.ReceiptSourceManual, "", lines)
	if err != nil {
		return nil, toAppError(err, "receipt")
	}

	if err := s.stores.Receipts.Save(ctx, receipt); err != nil {
		return nil, toAppError(fmt.Errorf("failed to save receipt: %w", err), "receipt")
	}

	s.logger.Info("Created receipt",
		"receiptId", receipt.ID,
		"docNo", receipt.DocNo,
		"crossDock", receipt.CrossDock,
		"lines", len(receipt.Lines),
	)
	return receipt, nil
}

// GetReceipt returns one receipt
func (s *ReceiptWorkflow) GetReceipt(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	receipt, err := s.stores.Receipts.FindByID(ctx, receiptID)
	if err != nil {
		return nil, toAppError(err, "receipt")
	}
	if receipt == nil {
		return nil, apperrors.ErrNotFoundWithID("receipt", receiptID)
	}
	return receipt, nil
}

// ListReceipts returns receipts matching the query, newest first
func (s *ReceiptWorkflow) ListReceipts(ctx context.Context, query ListReceiptsQuery) ([]*domain.Receipt, error) {
	filter := domain.ReceiptFilter{
		Status:      domain.ReceiptStatus(query.Status),
		CrossDock:   query.CrossDock,
		OutboundRef: query.OutboundRef,
		Limit:       query.Limit,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.ErrValidation(fmt.Sprintf("unknown receipt status %q", query.Status))
	}

	receipts, err := s.stores.Receipts.FindAll(ctx, filter)
	if err != nil {
		return nil, toAppError(err, "receipt")
	}
	return receipts, nil
}

// UpsertLine adds a line or replaces the one with the same line number
func (s *ReceiptWorkflow) UpsertLine(ctx context.Context, cmd UpsertLineCommand) (*domain.Receipt, error) {
	receipt, err := s.mutate(ctx, "upsert_line", cmd.ReceiptID, func(r *domain.Receipt) error {
		_, err := r.UpsertLine(cmd.LineInput.toDomain())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Upserted receipt line", "receiptId", receipt.ID, "lineNo", cmd.LineNo, "sku", cmd.SKU)
	return receipt, nil
}

// RemoveLine deletes a line from a DRAFT receipt
func (s *ReceiptWorkflow) RemoveLine(ctx context.Context, receiptID, lineID string) (*domain.Receipt, error) {
	receipt, err := s.mutate(ctx, "remove_line", receiptID, func(r *domain.Receipt) error {
		return r.RemoveLine(lineID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Removed receipt line", "receiptId", receipt.ID, "lineId", lineID)
	return receipt, nil
}

// DeleteReceipt removes a DRAFT or CANCELLED receipt together with its lines
func (s *ReceiptWorkflow) DeleteReceipt(ctx context.Context, receiptID string) error {
	receipt, err := s.GetReceipt(ctx, receiptID)
	if err != nil {
		return err
	}
	if !receipt.CanDelete() {
		return toAppError(fmt.Errorf("%w: receipt is %s", domain.ErrReceiptNotDeletable, receipt.Status), "receipt")
	}

	if err := s.stores.Receipts.Delete(ctx, receiptID); err != nil {
		return toAppError(fmt.Errorf("failed to delete receipt: %w", err), "receipt")
	}

	s.logger.Info("Deleted receipt", "receiptId", receiptID, "status", receipt.Status)
	return nil
}

// Confirm moves a DRAFT receipt to CONFIRMED
func (s *ReceiptWorkflow) Confirm(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	return s.transition(ctx, "confirm", receiptID, func(r *domain.Receipt) error {
		return r.Confirm()
	})
}

// StartReceiving opens receiving and creates one RECEIVING task per line that has none.
// Calling it again on an IN_PROGRESS receipt only fills in missing tasks.
func (s *ReceiptWorkflow) StartReceiving(ctx context.Context, receiptID string) (*StartReceivingResult, error) {
	var from domain.ReceiptStatus
	result, err := withOptimisticRetry(ctx, s.policy, s.metrics, "start_receiving", "receipt", func(ctx context.Context) (*StartReceivingResult, error) {
		receipt, err := s.GetReceipt(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		from = receipt.Status

		if err := receipt.StartReceiving(); err != nil {
			return nil, err
		}

		existing, err := s.stores.Tasks.FindByReceiptID(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		covered := make(map[string]bool)
		for _, t := range existing {
			if t.Type == domain.TaskTypeReceiving && t.Status != domain.TaskStatusCancelled {
				covered[t.LineID] = true
			}
		}

		var tasks []*domain.Task
		for i := range receipt.Lines {
			line := &receipt.Lines[i]
			if covered[line.ID] {
				continue
			}
			task, err := domain.NewTask(domain.TaskSpec{
				ReceiptID:   receipt.ID,
				LineID:      line.ID,
				Type:        domain.TaskTypeReceiving,
				QtyAssigned: line.QtyExpected,
			})
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}

		err = s.stores.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context) error {
			if receipt.Status != from {
				if err := s.stores.Receipts.Save(ctx, receipt); err != nil {
					return err
				}
			}
			for _, t := range tasks {
				if err := s.stores.Tasks.Save(ctx, t); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		return &StartReceivingResult{Receipt: receipt, TasksCreated: len(tasks), Tasks: tasks}, nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, result.Receipt, from)
	s.logger.Info("Started receiving", "receiptId", receiptID, "tasksCreated", result.TasksCreated)
	return result, nil
}

// CompleteReceiving closes receiving by hand once no RECEIVING task is still open
func (s *ReceiptWorkflow) CompleteReceiving(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	return s.transition(ctx, "complete_receiving", receiptID, func(r *domain.Receipt) error {
		if r.Status != domain.ReceiptStatusInProgress {
			return fmt.Errorf("%w: receipt is %s, expected IN_PROGRESS", domain.ErrInvalidReceiptTransition, r.Status)
		}
		tasks, err := s.stores.Tasks.FindByReceiptID(ctx, r.ID)
		if err != nil {
			return err
		}
		if !phaseDone(tasks, domain.TaskTypeReceiving) {
			return apperrors.ErrPreconditionFailed("receiving tasks are still open or none has been completed")
		}
		unresolved, err := s.stores.Discrepancies.CountUnresolved(ctx, r.ID)
		if err != nil {
			return err
		}
		return r.FinishReceiving(unresolved > 0)
	})
}

// ResolveAndContinue returns a PENDING_RESOLUTION receipt to IN_PROGRESS once its discrepancies are
// resolved. When every receiving task is already completed the receipt advances straight on.
func (s *ReceiptWorkflow) ResolveAndContinue(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	receipt, err := s.transition(ctx, "resolve_pending", receiptID, func(r *domain.Receipt) error {
		unresolved, err := s.stores.Discrepancies.CountUnresolved(ctx, r.ID)
		if err != nil {
			return err
		}
		if unresolved > 0 {
			return apperrors.ErrPreconditionFailed(fmt.Sprintf("receipt has %d unresolved discrepancies", unresolved))
		}
		return r.ResolveAndContinue()
	})
	if err != nil {
		return nil, err
	}

	advanced, err := s.CheckPhaseCompletion(ctx, receiptID)
	if err != nil {
		s.logger.WithError(err).Error("Receipt phase check failed", "receiptId", receiptID)
		return receipt, nil
	}
	if !advanced {
		return receipt, nil
	}
	current, err := s.stores.Receipts.FindByID(ctx, receiptID)
	if err != nil || current == nil {
		return receipt, nil
	}
	return current, nil
}

// CheckPhaseCompletion advances an IN_PROGRESS receipt whose receiving tasks are all done, or a
// PLACING receipt whose placement tasks are all done. It reports whether this call made the
// transition; a receipt that already moved on is not an error.
func (s *ReceiptWorkflow) CheckPhaseCompletion(ctx context.Context, receiptID string) (bool, error) {
	var from domain.ReceiptStatus
	receipt, err := withOptimisticRetry(ctx, s.policy, s.metrics, "phase_check", "receipt", func(ctx context.Context) (*domain.Receipt, error) {
		receipt, err := s.stores.Receipts.FindByID(ctx, receiptID)
		if err != nil || receipt == nil {
			return nil, err
		}
		from = receipt.Status

		var phase domain.TaskType
		switch receipt.Status {
		case domain.ReceiptStatusInProgress:
			phase = domain.TaskTypeReceiving
		case domain.ReceiptStatusPlacing:
			phase = domain.TaskTypePlacement
		default:
			return nil, nil
		}

		tasks, err := s.stores.Tasks.FindByReceiptID(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		if !phaseDone(tasks, phase) {
			return nil, nil
		}

		if phase == domain.TaskTypeReceiving {
			unresolved, err := s.stores.Discrepancies.CountUnresolved(ctx, receiptID)
			if err != nil {
				return nil, err
			}
			err = receipt.FinishReceiving(unresolved > 0)
			if err != nil {
				return nil, err
			}
		} else if err := receipt.CompletePlacement(); err != nil {
			return nil, err
		}

		if err := s.stores.Receipts.Save(ctx, receipt); err != nil {
			return nil, err
		}
		return receipt, nil
	})
	if err != nil || receipt == nil {
		return false, err
	}

	s.recordTransition(ctx, receipt, from)
	return true, nil
}

// Cancel cancels the receipt and every open task of it. An already cancelled receipt is returned as is.
func (s *ReceiptWorkflow) Cancel(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	var from domain.ReceiptStatus
	var cancelledTasks int
	receipt, err := withOptimisticRetry(ctx, s.policy, s.metrics, "cancel_receipt", "receipt", func(ctx context.Context) (*domain.Receipt, error) {
		receipt, err := s.GetReceipt(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		from = receipt.Status

		changed, err := receipt.Cancel()
		if err != nil || !changed {
			return receipt, err
		}

		tasks, err := s.stores.Tasks.FindByReceiptID(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		var open []*domain.Task
		for _, t := range tasks {
			if t.Status.IsTerminal() {
				continue
			}
			if err := t.Cancel(); err != nil {
				return nil, err
			}
			open = append(open, t)
		}

		err = s.stores.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.stores.Receipts.Save(ctx, receipt); err != nil {
				return err
			}
			for _, t := range open {
				if err := s.stores.Tasks.Save(ctx, t); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		cancelledTasks = len(open)
		return receipt, nil
	})
	if err != nil {
		return nil, err
	}

	if receipt.Status != from {
		s.recordTransition(ctx, receipt, from)
		s.logger.Info("Cancelled receipt", "receiptId", receiptID, "from", from, "tasksCancelled", cancelledTasks)
	}
	return receipt, nil
}

// StartPlacement plans putaway for every received pallet without an open placement task and
// moves an ACCEPTED receipt to PLACING. From ACCEPTED at least one task must come out of it.
func (s *ReceiptWorkflow) StartPlacement(ctx context.Context, receiptID string) (*PlacementResult, error) {
	var from domain.ReceiptStatus
	result, err := withOptimisticRetry(ctx, s.policy, s.metrics, "start_placement", "receipt", func(ctx context.Context) (*PlacementResult, error) {
		receipt, err := s.GetReceipt(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		from = receipt.Status
		if from != domain.ReceiptStatusAccepted && from != domain.ReceiptStatusPlacing {
			return nil, apperrors.ErrPreconditionFailed(fmt.Sprintf("receipt is %s, placement needs ACCEPTED or PLACING", from))
		}

		pallets, err := s.stores.Pallets.FindByReceiptID(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		tasks, err := s.stores.Tasks.FindByReceiptID(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		planned := make(map[string]bool)
		for _, t := range tasks {
			if t.Type == domain.TaskTypePlacement && t.Status.IsActive() {
				planned[t.PalletID] = true
			}
		}

		var pending []*domain.Pallet
		for _, p := range pallets {
			if p.IsPlaceable() && !planned[p.ID] {
				pending = append(pending, p)
			}
		}

		created, failures, err := s.planner.Plan(ctx, receipt, pending)
		if err != nil {
			return nil, err
		}

		if len(created) == 0 && from == domain.ReceiptStatusAccepted {
			appErr := apperrors.ErrPutawayExhausted(fmt.Sprintf("no placement task could be created for receipt %s", receipt.DocNo))
			if len(pending) == 0 {
				appErr.WithDetail("reason", "receipt has no received pallets awaiting putaway")
			}
			for _, f := range failures {
				appErr.WithDetail(f.PalletCode, f.Reason)
			}
			return nil, appErr
		}

		if err := receipt.StartPlacement(); err != nil {
			return nil, err
		}

		err = s.stores.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context) error {
			// Saved even when already PLACING so concurrent planners conflict on the receipt version.
			if err := s.stores.Receipts.Save(ctx, receipt); err != nil {
				return err
			}
			for _, t := range created {
				if err := s.stores.Tasks.Save(ctx, t); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		return &PlacementResult{
			Receipt:      receipt,
			TasksCreated: len(created),
			Tasks:        created,
			Failures:     failures,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, result.Receipt, from)
	s.logger.Info("Started placement",
		"receiptId", receiptID,
		"tasksCreated", result.TasksCreated,
		"failures", len(result.Failures),
	)
	return result, nil
}

// CompletePlacement moves PLACING to STOCKED by hand once every placement task is completed
func (s *ReceiptWorkflow) CompletePlacement(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	return s.transition(ctx, "complete_placement", receiptID, func(r *domain.Receipt) error {
		if r.Status != domain.ReceiptStatusPlacing {
			return fmt.Errorf("%w: receipt is %s, expected PLACING", domain.ErrInvalidReceiptTransition, r.Status)
		}
		tasks, err := s.stores.Tasks.FindByReceiptID(ctx, r.ID)
		if err != nil {
			return err
		}
		if !phaseDone(tasks, domain.TaskTypePlacement) {
			return apperrors.ErrPreconditionFailed("placement tasks are still open or none has been completed")
		}
		return r.CompletePlacement()
	})
}

// StartShipping moves a READY_FOR_SHIPMENT receipt to SHIPPING_IN_PROGRESS and stages one
// SHIPPING task per pallet holding stock
func (s *ReceiptWorkflow) StartShipping(ctx context.Context, receiptID string) (*ShippingResult, error) {
	var from domain.ReceiptStatus
	result, err := withOptimisticRetry(ctx, s.policy, s.metrics, "start_shipping", "receipt", func(ctx context.Context) (*ShippingResult, error) {
		receipt, err := s.GetReceipt(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		from = receipt.Status

		if err := receipt.StartShipping(); err != nil {
			return nil, err
		}

		pallets, err := s.stores.Pallets.FindByReceiptID(ctx, receiptID)
		if err != nil {
			return nil, err
		}

		var staged []*domain.Pallet
		var tasks []*domain.Task
		for _, p := range pallets {
			if !p.IsShippable() {
				continue
			}
			task, err := domain.NewTask(domain.TaskSpec{
				ReceiptID:        receipt.ID,
				LineID:           p.LineID,
				Type:             domain.TaskTypeShipping,
				PalletID:         p.ID,
				SourceLocationID: p.LocationID,
				QtyAssigned:      p.Quantity,
			})
			if err != nil {
				return nil, err
			}
			if err := p.StageForShipping(); err != nil {
				return nil, err
			}
			staged = append(staged, p)
			tasks = append(tasks, task)
		}

		err = s.stores.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.stores.Receipts.Save(ctx, receipt); err != nil {
				return err
			}
			for _, p := range staged {
				if err := s.stores.Pallets.Save(ctx, p); err != nil {
					return err
				}
			}
			for _, t := range tasks {
				if err := s.stores.Tasks.Save(ctx, t); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		return &ShippingResult{Receipt: receipt, TasksCreated: len(tasks), Tasks: tasks}, nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, result.Receipt, from)
	s.logger.Info("Started shipping", "receiptId", receiptID, "tasksCreated", result.TasksCreated)
	return result, nil
}

// CompleteShipping moves SHIPPING_IN_PROGRESS to SHIPPED once no shipping task is left open
func (s *ReceiptWorkflow) CompleteShipping(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	return s.transition(ctx, "complete_shipping", receiptID, func(r *domain.Receipt) error {
		if r.Status != domain.ReceiptStatusShippingInProgress {
			return fmt.Errorf("%w: receipt is %s, expected SHIPPING_IN_PROGRESS", domain.ErrInvalidReceiptTransition, r.Status)
		}
		tasks, err := s.stores.Tasks.FindByReceiptID(ctx, r.ID)
		if err != nil {
			return err
		}
		if open := countOpen(tasks, domain.TaskTypeShipping); open > 0 {
			return apperrors.ErrPreconditionFailed(fmt.Sprintf("%d shipping tasks are not completed", open))
		}
		return r.CompleteShipping()
	})
}

// mutate loads a receipt, applies fn and saves it, retrying from a fresh read on conflict
func (s *ReceiptWorkflow) mutate(ctx context.Context, operation, receiptID string, fn func(r *domain.Receipt) error) (*domain.Receipt, error) {
	return withOptimisticRetry(ctx, s.policy, s.metrics, operation, "receipt", func(ctx context.Context) (*domain.Receipt, error) {
		receipt, err := s.GetReceipt(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		if err := fn(receipt); err != nil {
			return nil, err
		}
		if err := s.stores.Receipts.Save(ctx, receipt); err != nil {
			return nil, err
		}
		return receipt, nil
	})
}

// transition is mutate for a status change, which is logged and counted once committed
func (s *ReceiptWorkflow) transition(ctx context.Context, operation, receiptID string, fn func(r *domain.Receipt) error) (*domain.Receipt, error) {
	var from domain.ReceiptStatus
	receipt, err := s.mutate(ctx, operation, receiptID, func(r *domain.Receipt) error {
		from = r.Status
		return fn(r)
	})
	if err != nil {
		return nil, err
	}
	s.recordTransition(ctx, receipt, from)
	return receipt, nil
}

func (s *ReceiptWorkflow) recordTransition(ctx context.Context, receipt *domain.Receipt, from domain.ReceiptStatus) {
	if receipt.Status == from {
		return
	}
	s.metrics.RecordReceiptTransition(string(from), string(receipt.Status))
	s.logger.Transition(ctx, "receipt", receipt.ID, string(from), string(receipt.Status))
}

// phaseDone reports whether every non-cancelled task of the type is COMPLETED and at least one is
func phaseDone(tasks []*domain.Task, taskType domain.TaskType) bool {
	completed := 0
	for _, t := range tasks {
		if t.Type != taskType || t.Status == domain.TaskStatusCancelled {
			continue
		}
		if t.Status != domain.TaskStatusCompleted {
			return false
		}
		completed++
	}
	return completed > 0
}

func countOpen(tasks []*domain.Task, taskType domain.TaskType) int {
	open := 0
	for _, t := range tasks {
		if t.Type == taskType && t.Status.IsActive() {
			open++
		}
	}
	return open
}
