package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the kind of operator work
type TaskType string

const (
	TaskTypeReceiving TaskType = "RECEIVING"
	TaskTypePlacement TaskType = "PLACEMENT"
	TaskTypeShipping  TaskType = "SHIPPING"
)

// IsValid checks if the task type is valid
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeReceiving, TaskTypePlacement, TaskTypeShipping:
		return true
	default:
		return false
	}
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "NEW"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

var validTaskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusNew:        {TaskStatusAssigned, TaskStatusCancelled},
	TaskStatusAssigned:   {TaskStatusAssigned, TaskStatusInProgress, TaskStatusNew, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusNew, TaskStatusCancelled},
	TaskStatusCompleted:  {},
	TaskStatusCancelled:  {},
}

// IsValid checks if the status is valid
func (s TaskStatus) IsValid() bool {
	_, ok := validTaskTransitions[s]
	return ok
}

// CanTransitionTo checks if the status can transition to another status
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	for _, allowed := range validTaskTransitions[s] {
		if target == allowed {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the task is COMPLETED or CANCELLED
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// IsActive reports whether the task still has work pending
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusNew || s == TaskStatusAssigned || s == TaskStatusInProgress
}

// Task action names carried on TaskStatusChangedEvent
const (
	TaskActionAssign   = "assign"
	TaskActionStart    = "start"
	TaskActionComplete = "complete"
	TaskActionCancel   = "cancel"
	TaskActionRelease  = "release"
)

// Task is a unit of operator work on one receipt
type Task struct {
	ID               string     `bson:"_id" json:"id"`
	ReceiptID        string     `bson:"receiptId" json:"receiptId"`
	LineID           string     `bson:"lineId,omitempty" json:"lineId,omitempty"`
	Type             TaskType   `bson:"type" json:"type"`
	Status           TaskStatus `bson:"status" json:"status"`
	AssigneeID       string     `bson:"assigneeId,omitempty" json:"assigneeId,omitempty"`
	AssignedBy       string     `bson:"assignedBy,omitempty" json:"assignedBy,omitempty"`
	PalletID         string     `bson:"palletId,omitempty" json:"palletId,omitempty"`
	SourceLocationID string     `bson:"sourceLocationId,omitempty" json:"sourceLocationId,omitempty"`
	TargetLocationID string     `bson:"targetLocationId,omitempty" json:"targetLocationId,omitempty"`
	QtyAssigned      int        `bson:"qtyAssigned" json:"qtyAssigned"`
	QtyDone          int        `bson:"qtyDone" json:"qtyDone"`
	Priority         int        `bson:"priority" json:"priority"`
	CreatedAt        time.Time  `bson:"createdAt" json:"createdAt"`
	AssignedAt       *time.Time `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`
	StartedAt        *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	ClosedAt         *time.Time `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	Version          int64      `bson:"version" json:"version"`

	eventSource `bson:"-" json:"-"`
}

// TaskSpec carries the fields of a new task
type TaskSpec struct {
	ReceiptID        string
	LineID           string
	Type             TaskType
	PalletID         string
	SourceLocationID string
	TargetLocationID string
	QtyAssigned      int
	Priority         int
}

// NewTask creates a task in NEW
func NewTask(spec TaskSpec) (*Task, error) {
	if !spec.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskType, spec.Type)
	}
	if spec.QtyAssigned < 0 {
		return nil, ErrInvalidQuantity
	}

	now := time.Now().UTC()
	t := &Task{
		ID:               uuid.New().String(),
		ReceiptID:        spec.ReceiptID,
		LineID:           spec.LineID,
		Type:             spec.Type,
		Status:           TaskStatusNew,
		PalletID:         spec.PalletID,
		SourceLocationID: spec.SourceLocationID,
		TargetLocationID: spec.TargetLocationID,
		QtyAssigned:      spec.QtyAssigned,
		Priority:         spec.Priority,
		CreatedAt:        now,
	}

	t.addDomainEvent(&TaskCreatedEvent{
		TaskID:           t.ID,
		ReceiptID:        t.ReceiptID,
		Type:             t.Type,
		PalletID:         t.PalletID,
		TargetLocationID: t.TargetLocationID,
		QtyAssigned:      t.QtyAssigned,
		OccurredAt_:      now,
	})
	return t, nil
}

// Assign assigns or reassigns a NEW or ASSIGNED task
func (t *Task) Assign(assigneeID, assignedBy string) error {
	if assigneeID == "" {
		return ErrAssigneeRequired
	}
	if t.Status != TaskStatusNew && t.Status != TaskStatusAssigned {
		return fmt.Errorf("%w: cannot assign a %s task", ErrInvalidTaskTransition, t.Status)
	}

	now := time.Now().UTC()
	t.AssigneeID = assigneeID
	t.AssignedBy = assignedBy
	t.AssignedAt = &now
	return t.transitionTo(TaskStatusAssigned, TaskActionAssign)
}

// Start moves an ASSIGNED task to IN_PROGRESS
func (t *Task) Start() error {
	if t.Status != TaskStatusAssigned {
		return fmt.Errorf("%w: cannot start a %s task", ErrInvalidTaskTransition, t.Status)
	}

	now := time.Now().UTC()
	t.StartedAt = &now
	return t.transitionTo(TaskStatusInProgress, TaskActionStart)
}

// AutoStartIfNeeded starts an ASSIGNED task, accepts an IN_PROGRESS one and rejects anything else
func (t *Task) AutoStartIfNeeded() (bool, error) {
	switch t.Status {
	case TaskStatusInProgress:
		return false, nil
	case TaskStatusAssigned:
		return true, t.Start()
	default:
		return false, fmt.Errorf("%w: task is %s, scans need ASSIGNED or IN_PROGRESS", ErrInvalidTaskTransition, t.Status)
	}
}

// Complete moves an IN_PROGRESS task to COMPLETED
func (t *Task) Complete() error {
	if t.Status != TaskStatusInProgress {
		return fmt.Errorf("%w: cannot complete a %s task", ErrInvalidTaskTransition, t.Status)
	}

	now := time.Now().UTC()
	t.ClosedAt = &now
	return t.transitionTo(TaskStatusCompleted, TaskActionComplete)
}

// Cancel cancels a non-terminal task
func (t *Task) Cancel() error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: task is %s", ErrTaskTerminal, t.Status)
	}

	now := time.Now().UTC()
	t.ClosedAt = &now
	return t.transitionTo(TaskStatusCancelled, TaskActionCancel)
}

// Release returns an ASSIGNED or IN_PROGRESS task to NEW and clears its progress.
// The caller deletes the task's scans in the same unit of work.
func (t *Task) Release() error {
	if t.Status != TaskStatusAssigned && t.Status != TaskStatusInProgress {
		return fmt.Errorf("%w: cannot release a %s task", ErrInvalidTaskTransition, t.Status)
	}

	t.AssigneeID = ""
	t.AssignedBy = ""
	t.AssignedAt = nil
	t.StartedAt = nil
	t.QtyDone = 0
	return t.transitionTo(TaskStatusNew, TaskActionRelease)
}

// SetPriority changes the priority of a non-terminal task
func (t *Task) SetPriority(priority int) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: task is %s", ErrTaskTerminal, t.Status)
	}
	t.Priority = priority
	return nil
}

// AddProgress adds scanned quantity
func (t *Task) AddProgress(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	t.QtyDone += qty
	return nil
}

// IsFulfilled reports whether the scanned quantity covers the assignment
func (t *Task) IsFulfilled() bool {
	return t.QtyDone >= t.QtyAssigned
}

func (t *Task) transitionTo(target TaskStatus, action string) error {
	if !t.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTaskTransition, t.Status, target)
	}

	from := t.Status
	t.Status = target

	t.addDomainEvent(&TaskStatusChangedEvent{
		TaskID:      t.ID,
		ReceiptID:   t.ReceiptID,
		Type:        t.Type,
		Action:      action,
		From:        from,
		To:          target,
		AssigneeID:  t.AssigneeID,
		QtyDone:     t.QtyDone,
		OccurredAt_: time.Now().UTC(),
	})
	return nil
}
