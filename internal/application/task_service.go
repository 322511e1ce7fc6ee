package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
)

// PhaseChecker advances a receipt once the tasks of its current phase are done
type PhaseChecker interface {
	CheckPhaseCompletion(ctx context.Context, receiptID string) (bool, error)
}

// ReleaseResult is the outcome of releasing a task
type ReleaseResult struct {
	Task         *domain.Task `json:"task"`
	ScansDeleted int          `json:"scansDeleted"`
}

// TaskService handles the task lifecycle
type TaskService struct {
	stores  Stores
	phases  PhaseChecker
	policy  RetryPolicy
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewTaskService creates a new TaskService
func NewTaskService(stores Stores, phases PhaseChecker, policy RetryPolicy, logger *logging.Logger, m *metrics.Metrics) *TaskService {
	return &TaskService{
		stores:  stores,
		phases:  phases,
		policy:  policy,
		logger:  logger,
		metrics: m,
	}
}

// CreateTask creates a task by hand against an open receipt
func (s *TaskService) CreateTask(ctx context.Context, cmd CreateTaskCommand) (*domain.Task, error) {
	receipt, err := s.stores.Receipts.FindByID(ctx, cmd.ReceiptID)
	if err != nil {
		return nil, toAppError(err, "receipt")
	}
	if receipt == nil {
		return nil, apperrors.ErrNotFoundWithID("receipt", cmd.ReceiptID)
	}
	if receipt.Status.IsTerminal() {
		return nil, toAppError(fmt.Errorf("%w: receipt is %s", domain.ErrReceiptTerminal, receipt.Status), "receipt")
	}
	if cmd.LineID != "" && receipt.Line(cmd.LineID) == nil {
		return nil, apperrors.ErrNotFoundWithID("receipt line", cmd.LineID)
	}
	if cmd.PalletID != "" {
		pallet, err := s.stores.Pallets.FindByID(ctx, cmd.PalletID)
		if err != nil {
			return nil, toAppError(err, "pallet")
		}
		if pallet == nil {
			return nil, apperrors.ErrNotFoundWithID("pallet", cmd.PalletID)
		}
	}

	task, err := domain.NewTask(domain.TaskSpec{
		ReceiptID:        cmd.ReceiptID,
		LineID:           cmd.LineID,
		Type:             domain.TaskType(cmd.Type),
		PalletID:         cmd.PalletID,
		SourceLocationID: cmd.SourceLocationID,
		TargetLocationID: cmd.TargetLocationID,
		QtyAssigned:      cmd.QtyAssigned,
		Priority:         cmd.Priority,
	})
	if err != nil {
		return nil, toAppError(err, "task")
	}

	if err := s.stores.Tasks.Save(ctx, task); err != nil {
		return nil, toAppError(fmt.Errorf("failed to save task: %w", err), "task")
	}

	s.logger.Info("Created task",
		"taskId", task.ID,
		"receiptId", task.ReceiptID,
		"type", task.Type,
		"qtyAssigned", task.QtyAssigned,
	)
	return task, nil
}

// GetTask returns one task
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.stores.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, toAppError(err, "task")
	}
	if task == nil {
		return nil, apperrors.ErrNotFoundWithID("task", taskID)
	}
	return task, nil
}

// ListTasks returns tasks matching the query in creation order
func (s *TaskService) ListTasks(ctx context.Context, query ListTasksQuery) ([]*domain.Task, error) {
	filter := domain.TaskFilter{
		ReceiptID:   query.ReceiptID,
		Type:        domain.TaskType(query.Type),
		Status:      domain.TaskStatus(query.Status),
		AssigneeID:  query.AssigneeID,
		CreatedFrom: query.CreatedFrom,
		CreatedTo:   query.CreatedTo,
		Limit:       query.Limit,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.ErrValidation(fmt.Sprintf("unknown task status %q", query.Status))
	}

	tasks, err := s.stores.Tasks.FindAll(ctx, filter)
	if err != nil {
		return nil, toAppError(err, "task")
	}
	return tasks, nil
}

// AssignTask assigns or reassigns a NEW or ASSIGNED task
func (s *TaskService) AssignTask(ctx context.Context, cmd AssignTaskCommand) (*domain.Task, error) {
	task, err := s.mutate(ctx, "assign_task", cmd.TaskID, func(t *domain.Task) error {
		if cmd.RequireNew && t.Status != domain.TaskStatusNew {
			return apperrors.ErrForbidden("only NEW tasks can be self-assigned")
		}
		return t.Assign(cmd.AssigneeID, cmd.AssignedBy)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Audit(ctx, "assign", "task", task.ID, cmd.AssignedBy, map[string]any{"assigneeId": cmd.AssigneeID})
	return task, nil
}

// StartTask moves an ASSIGNED task to IN_PROGRESS
func (s *TaskService) StartTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.mutate(ctx, "start_task", taskID, func(t *domain.Task) error {
		return t.Start()
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Started task", "taskId", task.ID, "assigneeId", task.AssigneeID)
	return task, nil
}

// CompleteTask closes an IN_PROGRESS task. A receiving task closed short records an UNDER
// discrepancy with it. The receipt phase check runs once the completion is committed.
func (s *TaskService) CompleteTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := withOptimisticRetry(ctx, s.policy, s.metrics, "complete_task", "task", func(ctx context.Context) (*domain.Task, error) {
		task, err := s.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if err := task.Complete(); err != nil {
			return nil, err
		}

		var under *domain.Discrepancy
		if task.Type == domain.TaskTypeReceiving && task.QtyDone < task.QtyAssigned {
			under = domain.NewDiscrepancy(domain.DiscrepancySpec{
				ReceiptID:   task.ReceiptID,
				LineID:      task.LineID,
				TaskID:      task.ID,
				Type:        domain.DiscrepancyUnder,
				QtyExpected: task.QtyAssigned,
				QtyActual:   task.QtyDone,
				Description: fmt.Sprintf("received %d of %d", task.QtyDone, task.QtyAssigned),
			})
		}

		err = s.stores.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.stores.Tasks.Save(ctx, task); err != nil {
				return err
			}
			if under != nil {
				return s.stores.Discrepancies.Save(ctx, under)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if under != nil {
			s.metrics.RecordDiscrepancy(string(under.Type))
		}
		return task, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Completed task", "taskId", task.ID, "type", task.Type, "qtyDone", task.QtyDone)
	s.checkPhase(ctx, task)
	return task, nil
}

// CancelTask cancels a non-terminal task
func (s *TaskService) CancelTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.mutate(ctx, "cancel_task", taskID, func(t *domain.Task) error {
		return t.Cancel()
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cancelled task", "taskId", task.ID, "type", task.Type)
	s.checkPhase(ctx, task)
	return task, nil
}

// ReleaseTask returns an ASSIGNED or IN_PROGRESS task to NEW and deletes its scans in the same unit of work
func (s *TaskService) ReleaseTask(ctx context.Context, taskID string) (*ReleaseResult, error) {
	result, err := withOptimisticRetry(ctx, s.policy, s.metrics, "release_task", "task", func(ctx context.Context) (*ReleaseResult, error) {
		task, err := s.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if err := task.Release(); err != nil {
			return nil, err
		}

		deleted := 0
		err = s.stores.UnitOfWork.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.stores.Tasks.Save(ctx, task); err != nil {
				return err
			}
			n, err := s.stores.Scans.DeleteByTaskID(ctx, task.ID)
			deleted = n
			return err
		})
		if err != nil {
			return nil, err
		}
		return &ReleaseResult{Task: task, ScansDeleted: deleted}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Released task", "taskId", taskID, "scansDeleted", result.ScansDeleted)
	return result, nil
}

// SetPriority changes the priority of a non-terminal task
func (s *TaskService) SetPriority(ctx context.Context, cmd SetPriorityCommand) (*domain.Task, error) {
	return s.mutate(ctx, "set_priority", cmd.TaskID, func(t *domain.Task) error {
		return t.SetPriority(cmd.Priority)
	})
}

// ListScans returns the scans recorded against a task
func (s *TaskService) ListScans(ctx context.Context, taskID string) ([]*domain.Scan, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	scans, err := s.stores.Scans.FindByTaskID(ctx, taskID)
	if err != nil {
		return nil, toAppError(err, "scan")
	}
	return scans, nil
}

func (s *TaskService) mutate(ctx context.Context, operation, taskID string, fn func(t *domain.Task) error) (*domain.Task, error) {
	return withOptimisticRetry(ctx, s.policy, s.metrics, operation, "task", func(ctx context.Context) (*domain.Task, error) {
		task, err := s.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if err := fn(task); err != nil {
			return nil, err
		}
		if err := s.stores.Tasks.Save(ctx, task); err != nil {
			return nil, err
		}
		return task, nil
	})
}

// checkPhase runs the receipt phase check after a committed task change. Failures are logged only.
func (s *TaskService) checkPhase(ctx context.Context, task *domain.Task) {
	if task.Type == domain.TaskTypeShipping || s.phases == nil {
		return
	}
	if _, err := s.phases.CheckPhaseCompletion(ctx, task.ReceiptID); err != nil {
		s.logger.WithError(err).Error("Receipt phase check failed",
			"receiptId", task.ReceiptID,
			"taskId", task.ID,
		)
	}
}
