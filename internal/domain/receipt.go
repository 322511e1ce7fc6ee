package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReceiptStatus represents the status of a receipt
type ReceiptStatus string

const (
	ReceiptStatusDraft              ReceiptStatus = "DRAFT"
	ReceiptStatusConfirmed          ReceiptStatus = "CONFIRMED"
	ReceiptStatusInProgress         ReceiptStatus = "IN_PROGRESS"
	ReceiptStatusPendingResolution  ReceiptStatus = "PENDING_RESOLUTION"
	ReceiptStatusAccepted           ReceiptStatus = "ACCEPTED"
	ReceiptStatusReadyForShipment   ReceiptStatus = "READY_FOR_SHIPMENT"
	ReceiptStatusPlacing            ReceiptStatus = "PLACING"
	ReceiptStatusStocked            ReceiptStatus = "STOCKED"
	ReceiptStatusShippingInProgress ReceiptStatus = "SHIPPING_IN_PROGRESS"
	ReceiptStatusShipped            ReceiptStatus = "SHIPPED"
	ReceiptStatusCancelled          ReceiptStatus = "CANCELLED"
)

var validReceiptTransitions = map[ReceiptStatus][]ReceiptStatus{
	ReceiptStatusDraft:              {ReceiptStatusConfirmed, ReceiptStatusCancelled},
	ReceiptStatusConfirmed:          {ReceiptStatusInProgress, ReceiptStatusCancelled},
	ReceiptStatusInProgress:         {ReceiptStatusPendingResolution, ReceiptStatusAccepted, ReceiptStatusReadyForShipment, ReceiptStatusCancelled},
	ReceiptStatusPendingResolution:  {ReceiptStatusInProgress, ReceiptStatusCancelled},
	ReceiptStatusAccepted:           {ReceiptStatusPlacing, ReceiptStatusCancelled},
	ReceiptStatusReadyForShipment:   {ReceiptStatusShippingInProgress, ReceiptStatusCancelled},
	ReceiptStatusPlacing:            {ReceiptStatusStocked, ReceiptStatusCancelled},
	ReceiptStatusShippingInProgress: {ReceiptStatusShipped, ReceiptStatusCancelled},
	ReceiptStatusStocked:            {},
	ReceiptStatusShipped:            {},
	ReceiptStatusCancelled:          {},
}

// IsValid checks if the status is valid
func (s ReceiptStatus) IsValid() bool {
	_, ok := validReceiptTransitions[s]
	return ok
}

// CanTransitionTo checks if the status can transition to another status
func (s ReceiptStatus) CanTransitionTo(target ReceiptStatus) bool {
	for _, allowed := range validReceiptTransitions[s] {
		if target == allowed {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s ReceiptStatus) IsTerminal() bool {
	return len(validReceiptTransitions[s]) == 0
}

// ReceiptSource records how the receipt entered the system
type ReceiptSource string

const (
	ReceiptSourceManual ReceiptSource = "MANUAL"
	ReceiptSourceImport ReceiptSource = "IMPORT"
)

// ReceiptLine is one expected SKU and quantity on a receipt
type ReceiptLine struct {
	ID             string     `bson:"id" json:"id"`
	LineNo         int        `bson:"lineNo" json:"lineNo"`
	SKU            string     `bson:"sku" json:"sku"`
	ProductName    string     `bson:"productName,omitempty" json:"productName,omitempty"`
	Packaging      string     `bson:"packaging,omitempty" json:"packaging,omitempty"`
	UOM            string     `bson:"uom" json:"uom"`
	QtyExpected    int        `bson:"qtyExpected" json:"qtyExpected"`
	ExpectedSSCC   string     `bson:"expectedSscc,omitempty" json:"expectedSscc,omitempty"`
	ExpectedLot    string     `bson:"expectedLot,omitempty" json:"expectedLot,omitempty"`
	ExpectedExpiry *time.Time `bson:"expectedExpiry,omitempty" json:"expectedExpiry,omitempty"`
}

func (l *ReceiptLine) validate() error {
	if strings.TrimSpace(l.SKU) == "" || l.QtyExpected <= 0 || l.LineNo <= 0 {
		return ErrInvalidLine
	}
	return nil
}

// Receipt is the aggregate root for a receiving document
type Receipt struct {
	ID          string        `bson:"_id" json:"id"`
	DocNo       string        `bson:"docNo" json:"docNo"`
	DocDate     time.Time     `bson:"docDate" json:"docDate"`
	Supplier    string        `bson:"supplier" json:"supplier"`
	CrossDock   bool          `bson:"crossDock" json:"crossDock"`
	OutboundRef string        `bson:"outboundRef,omitempty" json:"outboundRef,omitempty"`
	Status      ReceiptStatus `bson:"status" json:"status"`
	Source      ReceiptSource `bson:"source" json:"source"`
	MessageID   string        `bson:"messageId,omitempty" json:"messageId,omitempty"`
	Lines       []ReceiptLine `bson:"lines" json:"lines"`
	Version     int64         `bson:"version" json:"version"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`

	eventSource `bson:"-" json:"-"`
}

// NewReceipt creates a DRAFT receipt. Line ids are assigned here.
func NewReceipt(docNo string, docDate time.Time, supplier string, crossDock bool, outboundRef string, source ReceiptSource, messageID string, lines []ReceiptLine) (*Receipt, error) {
	outboundRef = strings.TrimSpace(outboundRef)
	if crossDock && outboundRef == "" {
		return nil, ErrOutboundRefRequired
	}

	now := time.Now().UTC()
	r := &Receipt{
		ID:          uuid.New().String(),
		DocNo:       docNo,
		DocDate:     docDate,
		Supplier:    supplier,
		CrossDock:   crossDock,
		OutboundRef: outboundRef,
		Status:      ReceiptStatusDraft,
		Source:      source,
		MessageID:   messageID,
		Lines:       make([]ReceiptLine, 0, len(lines)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, line := range lines {
		if err := r.addLine(line); err != nil {
			return nil, err
		}
	}

	r.addDomainEvent(&ReceiptCreatedEvent{
		ReceiptID:   r.ID,
		DocNo:       docNo,
		Supplier:    supplier,
		CrossDock:   crossDock,
		OutboundRef: outboundRef,
		Source:      source,
		LineCount:   len(r.Lines),
		OccurredAt_: now,
	})

	return r, nil
}

func (r *Receipt) addLine(line ReceiptLine) error {
	if err := line.validate(); err != nil {
		return err
	}
	for _, existing := range r.Lines {
		if existing.LineNo == line.LineNo {
			return fmt.Errorf("%w: %d", ErrDuplicateLineNo, line.LineNo)
		}
	}
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	r.Lines = append(r.Lines, line)
	return nil
}

// UpsertLine replaces the line with the same line number or appends a new one
func (r *Receipt) UpsertLine(line ReceiptLine) (*ReceiptLine, error) {
	if r.Status != ReceiptStatusDraft {
		return nil, ErrReceiptNotEditable
	}
	if err := line.validate(); err != nil {
		return nil, err
	}

	for i := range r.Lines {
		if r.Lines[i].LineNo == line.LineNo {
			line.ID = r.Lines[i].ID
			r.Lines[i] = line
			r.touch()
			return &r.Lines[i], nil
		}
	}

	if err := r.addLine(line); err != nil {
		return nil, err
	}
	r.touch()
	return &r.Lines[len(r.Lines)-1], nil
}

// RemoveLine deletes a line while the receipt is DRAFT
func (r *Receipt) RemoveLine(lineID string) error {
	if r.Status != ReceiptStatusDraft {
		return ErrReceiptNotEditable
	}
	for i := range r.Lines {
		if r.Lines[i].ID == lineID {
			r.Lines = append(r.Lines[:i], r.Lines[i+1:]...)
			r.touch()
			return nil
		}
	}
	return ErrLineNotFound
}

// Line returns the line with the given id, or nil
func (r *Receipt) Line(lineID string) *ReceiptLine {
	for i := range r.Lines {
		if r.Lines[i].ID == lineID {
			return &r.Lines[i]
		}
	}
	return nil
}

// CanDelete reports whether the receipt may be removed
func (r *Receipt) CanDelete() bool {
	return r.Status == ReceiptStatusDraft || r.Status == ReceiptStatusCancelled
}

// Confirm moves a DRAFT receipt with at least one line to CONFIRMED
func (r *Receipt) Confirm() error {
	if r.Status == ReceiptStatusDraft && len(r.Lines) == 0 {
		return ErrNoLines
	}
	return r.transitionTo(ReceiptStatusConfirmed)
}

// StartReceiving moves CONFIRMED to IN_PROGRESS. Calling it on IN_PROGRESS is allowed and changes nothing.
func (r *Receipt) StartReceiving() error {
	if r.Status == ReceiptStatusInProgress {
		return nil
	}
	return r.transitionTo(ReceiptStatusInProgress)
}

// ReceivingOutcome is the status a finished receiving phase leads to
func (r *Receipt) ReceivingOutcome(hasUnresolvedDiscrepancies bool) ReceiptStatus {
	switch {
	case hasUnresolvedDiscrepancies:
		return ReceiptStatusPendingResolution
	case r.CrossDock:
		return ReceiptStatusReadyForShipment
	default:
		return ReceiptStatusAccepted
	}
}

// FinishReceiving closes the receiving phase of an IN_PROGRESS receipt
func (r *Receipt) FinishReceiving(hasUnresolvedDiscrepancies bool) error {
	if r.Status != ReceiptStatusInProgress {
		return fmt.Errorf("%w: %s is not IN_PROGRESS", ErrInvalidReceiptTransition, r.Status)
	}
	return r.transitionTo(r.ReceivingOutcome(hasUnresolvedDiscrepancies))
}

// ResolveAndContinue returns a PENDING_RESOLUTION receipt to IN_PROGRESS
func (r *Receipt) ResolveAndContinue() error {
	if r.Status != ReceiptStatusPendingResolution {
		return fmt.Errorf("%w: %s is not PENDING_RESOLUTION", ErrInvalidReceiptTransition, r.Status)
	}
	return r.transitionTo(ReceiptStatusInProgress)
}

// StartPlacement moves ACCEPTED to PLACING. On PLACING it only refreshes UpdatedAt.
func (r *Receipt) StartPlacement() error {
	if r.Status == ReceiptStatusPlacing {
		r.touch()
		return nil
	}
	return r.transitionTo(ReceiptStatusPlacing)
}

// CompletePlacement moves PLACING to STOCKED
func (r *Receipt) CompletePlacement() error {
	return r.transitionTo(ReceiptStatusStocked)
}

// StartShipping moves READY_FOR_SHIPMENT to SHIPPING_IN_PROGRESS
func (r *Receipt) StartShipping() error {
	return r.transitionTo(ReceiptStatusShippingInProgress)
}

// CompleteShipping moves SHIPPING_IN_PROGRESS to SHIPPED
func (r *Receipt) CompleteShipping() error {
	return r.transitionTo(ReceiptStatusShipped)
}

// Cancel cancels a non-terminal receipt. It returns false when the receipt was already cancelled.
func (r *Receipt) Cancel() (bool, error) {
	if r.Status == ReceiptStatusCancelled {
		return false, nil
	}
	if r.Status.IsTerminal() {
		return false, fmt.Errorf("%w: %s", ErrReceiptTerminal, r.Status)
	}
	return true, r.transitionTo(ReceiptStatusCancelled)
}

func (r *Receipt) transitionTo(target ReceiptStatus) error {
	if !r.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidReceiptTransition, r.Status, target)
	}

	from := r.Status
	r.Status = target
	r.touch()

	r.addDomainEvent(&ReceiptStatusChangedEvent{
		ReceiptID:   r.ID,
		DocNo:       r.DocNo,
		From:        from,
		To:          target,
		OccurredAt_: r.UpdatedAt,
	})
	return nil
}

func (r *Receipt) touch() {
	r.UpdatedAt = time.Now().UTC()
}

// IsCrossDockWaveMember reports whether the receipt takes part in outbound wave grouping
func (r *Receipt) IsCrossDockWaveMember() bool {
	return r.CrossDock && r.OutboundRef != ""
}
