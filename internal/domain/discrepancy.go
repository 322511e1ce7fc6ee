package domain

import (
	"time"

	"github.com/google/uuid"
)

// DiscrepancyType classifies a mismatch between expected and actual
type DiscrepancyType string

const (
	DiscrepancyOver         DiscrepancyType = "OVER"
	DiscrepancyUnder        DiscrepancyType = "UNDER"
	DiscrepancySSCCMismatch DiscrepancyType = "SSCC_MISMATCH"
	DiscrepancyLotMismatch  DiscrepancyType = "LOT_MISMATCH"
	DiscrepancyDamage       DiscrepancyType = "DAMAGE"
)

// Discrepancy records a detected mismatch until an operator resolves it
type Discrepancy struct {
	ID             string          `bson:"_id" json:"id"`
	ReceiptID      string          `bson:"receiptId" json:"receiptId"`
	LineID         string          `bson:"lineId,omitempty" json:"lineId,omitempty"`
	TaskID         string          `bson:"taskId,omitempty" json:"taskId,omitempty"`
	PalletID       string          `bson:"palletId,omitempty" json:"palletId,omitempty"`
	Type           DiscrepancyType `bson:"type" json:"type"`
	QtyExpected    int             `bson:"qtyExpected" json:"qtyExpected"`
	QtyActual      int             `bson:"qtyActual" json:"qtyActual"`
	Description    string          `bson:"description" json:"description"`
	Resolved       bool            `bson:"resolved" json:"resolved"`
	ResolvedBy     string          `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	ResolutionNote string          `bson:"resolutionNote,omitempty" json:"resolutionNote,omitempty"`
	CreatedAt      time.Time       `bson:"createdAt" json:"createdAt"`
	ResolvedAt     *time.Time      `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	Version        int64           `bson:"version" json:"version"`

	eventSource `bson:"-" json:"-"`
}

// DiscrepancySpec carries the fields of a new discrepancy
type DiscrepancySpec struct {
	ReceiptID   string
	LineID      string
	TaskID      string
	PalletID    string
	Type        DiscrepancyType
	QtyExpected int
	QtyActual   int
	Description string
}

// NewDiscrepancy creates an unresolved discrepancy
func NewDiscrepancy(spec DiscrepancySpec) *Discrepancy {
	now := time.Now().UTC()
	d := &Discrepancy{
		ID:          uuid.New().String(),
		ReceiptID:   spec.ReceiptID,
		LineID:      spec.LineID,
		TaskID:      spec.TaskID,
		PalletID:    spec.PalletID,
		Type:        spec.Type,
		QtyExpected: spec.QtyExpected,
		QtyActual:   spec.QtyActual,
		Description: spec.Description,
		CreatedAt:   now,
	}

	d.addDomainEvent(&DiscrepancyDetectedEvent{
		DiscrepancyID: d.ID,
		ReceiptID:     d.ReceiptID,
		LineID:        d.LineID,
		TaskID:        d.TaskID,
		Type:          d.Type,
		QtyExpected:   d.QtyExpected,
		QtyActual:     d.QtyActual,
		OccurredAt_:   now,
	})
	return d
}

// Resolve closes the discrepancy
func (d *Discrepancy) Resolve(resolvedBy, note string) error {
	if d.Resolved {
		return ErrDiscrepancyResolved
	}

	now := time.Now().UTC()
	d.Resolved = true
	d.ResolvedBy = resolvedBy
	d.ResolutionNote = note
	d.ResolvedAt = &now

	d.addDomainEvent(&DiscrepancyResolvedEvent{
		DiscrepancyID: d.ID,
		ReceiptID:     d.ReceiptID,
		ResolvedBy:    resolvedBy,
		Note:          note,
		OccurredAt_:   now,
	})
	return nil
}
