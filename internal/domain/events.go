package domain

import "time"

// DomainEvent represents a domain event
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	// ReceiptRef is the receipt the event belongs to, used as the CloudEvent receipt extension
	ReceiptRef() string
}

// ReceiptCreatedEvent is emitted when a receipt is created manually or by import
type ReceiptCreatedEvent struct {
	ReceiptID   string        `json:"receiptId"`
	DocNo       string        `json:"docNo"`
	Supplier    string        `json:"supplier"`
	CrossDock   bool          `json:"crossDock"`
	OutboundRef string        `json:"outboundRef,omitempty"`
	Source      ReceiptSource `json:"source"`
	LineCount   int           `json:"lineCount"`
	OccurredAt_ time.Time     `json:"occurredAt"`
}

func (e *ReceiptCreatedEvent) EventType() string     { return "wms.inbound.receipt-created" }
func (e *ReceiptCreatedEvent) OccurredAt() time.Time { return e.OccurredAt_ }
func (e *ReceiptCreatedEvent) ReceiptRef() string    { return e.ReceiptID }

// ReceiptStatusChangedEvent is emitted on every receipt transition
type ReceiptStatusChangedEvent struct {
	ReceiptID   string        `json:"receiptId"`
	DocNo       string        `json:"docNo"`
	From        ReceiptStatus `json:"from"`
	To          ReceiptStatus `json:"to"`
	OccurredAt_ time.Time     `json:"occurredAt"`
}

func (e *ReceiptStatusChangedEvent) EventType() string     { return "wms.inbound.receipt-status-changed" }
func (e *ReceiptStatusChangedEvent) OccurredAt() time.Time { return e.OccurredAt_ }
func (e *ReceiptStatusChangedEvent) ReceiptRef() string    { return e.ReceiptID }

// TaskCreatedEvent is emitted when a task is generated or created manually
type TaskCreatedEvent struct {
	TaskID           string    `json:"taskId"`
	ReceiptID        string    `json:"receiptId"`
	Type             TaskType  `json:"type"`
	PalletID         string    `json:"palletId,omitempty"`
	TargetLocationID string    `json:"targetLocationId,omitempty"`
	QtyAssigned      int       `json:"qtyAssigned"`
	OccurredAt_      time.Time `json:"occurredAt"`
}

func (e *TaskCreatedEvent) EventType() string     { return "wms.inbound.task-created" }
func (e *TaskCreatedEvent) OccurredAt() time.Time { return e.OccurredAt_ }
func (e *TaskCreatedEvent) ReceiptRef() string    { return e.ReceiptID }

// TaskStatusChangedEvent covers assign, start, complete, cancel and release
type TaskStatusChangedEvent struct {
	TaskID      string     `json:"taskId"`
	ReceiptID   string     `json:"receiptId"`
	Type        TaskType   `json:"type"`
	Action      string     `json:"action"`
	From        TaskStatus `json:"from"`
	To          TaskStatus `json:"to"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	QtyDone     int        `json:"qtyDone"`
	OccurredAt_ time.Time  `json:"occurredAt"`
}

func (e *TaskStatusChangedEvent) EventType() string     { return "wms.inbound.task-status-changed" }
func (e *TaskStatusChangedEvent) OccurredAt() time.Time { return e.OccurredAt_ }
func (e *TaskStatusChangedEvent) ReceiptRef() string    { return e.ReceiptID }

// ScanRecordedEvent is emitted for each scan that applied effects
type ScanRecordedEvent struct {
	ScanID      string    `json:"scanId"`
	TaskID      string    `json:"taskId"`
	ReceiptID   string    `json:"receiptId"`
	RequestID   string    `json:"requestId"`
	PalletCode  string    `json:"palletCode"`
	Quantity    int       `json:"quantity"`
	Discrepancy bool      `json:"discrepancy"`
	OccurredAt_ time.Time `json:"occurredAt"`
}

func (e *ScanRecordedEvent) EventType() string     { return "wms.inbound.scan-recorded" }
func (e *ScanRecordedEvent) OccurredAt() time.Time { return e.OccurredAt_ }
func (e *ScanRecordedEvent) ReceiptRef() string    { return e.ReceiptID }

// DiscrepancyDetectedEvent is emitted when a scan or a short close records a discrepancy
type DiscrepancyDetectedEvent struct {
	DiscrepancyID string          `json:"discrepancyId"`
	ReceiptID     string          `json:"receiptId"`
	LineID        string          `json:"lineId,omitempty"`
	TaskID        string          `json:"taskId,omitempty"`
	Type          DiscrepancyType `json:"type"`
	QtyExpected   int             `json:"qtyExpected"`
	QtyActual     int             `json:"qtyActual"`
	OccurredAt_   time.Time       `json:"occurredAt"`
}

func (e *DiscrepancyDetectedEvent) EventType() string     { return "wms.inbound.discrepancy-detected" }
func (e *DiscrepancyDetectedEvent) OccurredAt() time.Time { return e.OccurredAt_ }
func (e *DiscrepancyDetectedEvent) ReceiptRef() string    { return e.ReceiptID }

// DiscrepancyResolvedEvent is emitted when an operator resolves a discrepancy
type DiscrepancyResolvedEvent struct {
	DiscrepancyID string    `json:"discrepancyId"`
	ReceiptID     string    `json:"receiptId"`
	ResolvedBy    string    `json:"resolvedBy"`
	Note          string    `json:"note,omitempty"`
	OccurredAt_   time.Time `json:"occurredAt"`
}

func (e *DiscrepancyResolvedEvent) EventType() string     { return "wms.inbound.discrepancy-resolved" }
func (e *DiscrepancyResolvedEvent) OccurredAt() time.Time { return e.OccurredAt_ }
func (e *DiscrepancyResolvedEvent) ReceiptRef() string    { return e.ReceiptID }

// PalletMovedEvent mirrors a PalletMovement for inventory consumers
type PalletMovedEvent struct {
	MovementID     string       `json:"movementId"`
	PalletID       string       `json:"palletId"`
	PalletCode     string       `json:"palletCode"`
	ReceiptID      string       `json:"receiptId"`
	Type           MovementType `json:"type"`
	FromLocationID string       `json:"fromLocationId,omitempty"`
	ToLocationID   string       `json:"toLocationId,omitempty"`
	Quantity       int          `json:"quantity"`
	TaskID         string       `json:"taskId,omitempty"`
	OccurredAt_    time.Time    `json:"occurredAt"`
}

func (e *PalletMovedEvent) EventType() string     { return "wms.inventory.pallet-moved" }
func (e *PalletMovedEvent) OccurredAt() time.Time { return e.OccurredAt_ }
func (e *PalletMovedEvent) ReceiptRef() string    { return e.ReceiptID }

// eventSource holds pending domain events for an aggregate
type eventSource struct {
	events []DomainEvent
}

func (s *eventSource) addDomainEvent(event DomainEvent) {
	s.events = append(s.events, event)
}

// GetDomainEvents returns the pending events
func (s *eventSource) GetDomainEvents() []DomainEvent {
	return s.events
}

// ClearDomainEvents drops the pending events once they are stored
func (s *eventSource) ClearDomainEvents() {
	s.events = nil
}
