package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PalletStatus represents the physical state of a pallet
type PalletStatus string

const (
	PalletStatusEmpty      PalletStatus = "EMPTY"
	PalletStatusReceiving  PalletStatus = "RECEIVING"
	PalletStatusReceived   PalletStatus = "RECEIVED"
	PalletStatusStored     PalletStatus = "STORED"
	PalletStatusInTransit  PalletStatus = "IN_TRANSIT"
	PalletStatusPlaced     PalletStatus = "PLACED"
	PalletStatusPicking    PalletStatus = "PICKING"
	PalletStatusShipped    PalletStatus = "SHIPPED"
	PalletStatusDamaged    PalletStatus = "DAMAGED"
	PalletStatusQuarantine PalletStatus = "QUARANTINE"
)

// Pallet is a physical unit of inventory
type Pallet struct {
	ID         string       `bson:"_id" json:"id"`
	Code       string       `bson:"code" json:"code"`
	Status     PalletStatus `bson:"status" json:"status"`
	SKU        string       `bson:"sku,omitempty" json:"sku,omitempty"`
	Lot        string       `bson:"lot,omitempty" json:"lot,omitempty"`
	Expiry     *time.Time   `bson:"expiry,omitempty" json:"expiry,omitempty"`
	Quantity   int          `bson:"quantity" json:"quantity"`
	UOM        string       `bson:"uom,omitempty" json:"uom,omitempty"`
	LocationID string       `bson:"locationId,omitempty" json:"locationId,omitempty"`
	ReceiptID  string       `bson:"receiptId,omitempty" json:"receiptId,omitempty"`
	LineID     string       `bson:"lineId,omitempty" json:"lineId,omitempty"`
	Version    int64        `bson:"version" json:"version"`
	CreatedAt  time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// NewReceivingPallet creates a pallet for the first scan of an unknown code
func NewReceivingPallet(code, receiptID string, line *ReceiptLine) *Pallet {
	now := time.Now().UTC()
	return &Pallet{
		ID:        uuid.New().String(),
		Code:      strings.TrimSpace(code),
		Status:    PalletStatusReceiving,
		SKU:       line.SKU,
		UOM:       line.UOM,
		ReceiptID: receiptID,
		LineID:    line.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanReceiveFor reports whether receiving scans for the given line may add to this pallet
func (p *Pallet) CanReceiveFor(lineID string) bool {
	switch p.Status {
	case PalletStatusEmpty:
		return true
	case PalletStatusReceiving, PalletStatusReceived:
		return p.LineID == "" || p.LineID == lineID
	default:
		return false
	}
}

// Receive adds received quantity at the receiving location.
// A damage scan marks the pallet DAMAGED.
func (p *Pallet) Receive(receiptID string, line *ReceiptLine, qty int, locationID, lot string, expiry *time.Time, damaged bool) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if !p.CanReceiveFor(line.ID) {
		return fmt.Errorf("%w: pallet %s is %s", ErrInvalidPalletState, p.Code, p.Status)
	}

	p.ReceiptID = receiptID
	p.LineID = line.ID
	p.SKU = line.SKU
	p.UOM = line.UOM
	p.Quantity += qty
	p.LocationID = locationID
	if lot != "" {
		p.Lot = lot
	}
	if expiry != nil {
		p.Expiry = expiry
	}
	p.Status = PalletStatusReceived
	if damaged {
		p.Status = PalletStatusDamaged
	}
	p.touch()
	return nil
}

// IsPlaceable reports whether the pallet waits for putaway
func (p *Pallet) IsPlaceable() bool {
	return p.Status == PalletStatusReceived && p.Quantity > 0
}

// Place moves the pallet to its storage location
func (p *Pallet) Place(locationID string) error {
	if p.Status != PalletStatusReceived && p.Status != PalletStatusInTransit {
		return fmt.Errorf("%w: pallet %s is %s", ErrInvalidPalletState, p.Code, p.Status)
	}
	p.LocationID = locationID
	p.Status = PalletStatusPlaced
	p.touch()
	return nil
}

// IsShippable reports whether a cross-dock pallet can be staged for shipping
func (p *Pallet) IsShippable() bool {
	return (p.Status == PalletStatusReceived || p.Status == PalletStatusPlaced) && p.Quantity > 0
}

// StageForShipping marks the pallet PICKING when its shipping task is created
func (p *Pallet) StageForShipping() error {
	if !p.IsShippable() {
		return fmt.Errorf("%w: pallet %s is %s", ErrInvalidPalletState, p.Code, p.Status)
	}
	p.Status = PalletStatusPicking
	p.touch()
	return nil
}

// Pick removes qty from the pallet. At zero the pallet is SHIPPED and leaves its location.
func (p *Pallet) Pick(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > p.Quantity {
		return fmt.Errorf("%w: requested %d, pallet %s holds %d", ErrInsufficientQty, qty, p.Code, p.Quantity)
	}
	switch p.Status {
	case PalletStatusPicking, PalletStatusReceived, PalletStatusPlaced:
	default:
		return fmt.Errorf("%w: pallet %s is %s", ErrInvalidPalletState, p.Code, p.Status)
	}

	p.Quantity -= qty
	p.Status = PalletStatusPicking
	if p.Quantity == 0 {
		p.Status = PalletStatusShipped
		p.LocationID = ""
	}
	p.touch()
	return nil
}

func (p *Pallet) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// MovementType classifies a pallet movement
type MovementType string

const (
	MovementReceive MovementType = "RECEIVE"
	MovementPlace   MovementType = "PLACE"
	MovementMove    MovementType = "MOVE"
	MovementPick    MovementType = "PICK"
	MovementAdjust  MovementType = "ADJUST"
)

// PalletMovement is an append-only audit record of a pallet change
type PalletMovement struct {
	ID             string       `bson:"_id" json:"id"`
	PalletID       string       `bson:"palletId" json:"palletId"`
	PalletCode     string       `bson:"palletCode" json:"palletCode"`
	ReceiptID      string       `bson:"receiptId,omitempty" json:"receiptId,omitempty"`
	Type           MovementType `bson:"type" json:"type"`
	FromLocationID string       `bson:"fromLocationId,omitempty" json:"fromLocationId,omitempty"`
	ToLocationID   string       `bson:"toLocationId,omitempty" json:"toLocationId,omitempty"`
	Quantity       int          `bson:"quantity" json:"quantity"`
	TaskID         string       `bson:"taskId,omitempty" json:"taskId,omitempty"`
	Actor          string       `bson:"actor,omitempty" json:"actor,omitempty"`
	OccurredAt     time.Time    `bson:"occurredAt" json:"occurredAt"`
}

// NewPalletMovement records a movement of pallet from one location to another
func NewPalletMovement(pallet *Pallet, movementType MovementType, from, to string, qty int, taskID, actor string) *PalletMovement {
	return &PalletMovement{
		ID:             uuid.New().String(),
		PalletID:       pallet.ID,
		PalletCode:     pallet.Code,
		ReceiptID:      pallet.ReceiptID,
		Type:           movementType,
		FromLocationID: from,
		ToLocationID:   to,
		Quantity:       qty,
		TaskID:         taskID,
		Actor:          actor,
		OccurredAt:     time.Now().UTC(),
	}
}

// Event returns the inventory event for this movement
func (m *PalletMovement) Event() DomainEvent {
	return &PalletMovedEvent{
		MovementID:     m.ID,
		PalletID:       m.PalletID,
		PalletCode:     m.PalletCode,
		ReceiptID:      m.ReceiptID,
		Type:           m.Type,
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		Quantity:       m.Quantity,
		TaskID:         m.TaskID,
		OccurredAt_:    m.OccurredAt,
	}
}
