package domain

import (
	"time"

	"github.com/google/uuid"
)

// Scan is an append-only record of one barcode scan against a task.
// (TaskID, RequestID) is unique.
type Scan struct {
	ID           string     `bson:"_id" json:"id"`
	TaskID       string     `bson:"taskId" json:"taskId"`
	ReceiptID    string     `bson:"receiptId" json:"receiptId"`
	RequestID    string     `bson:"requestId" json:"requestId"`
	PalletCode   string     `bson:"palletCode" json:"palletCode"`
	SSCC         string     `bson:"sscc,omitempty" json:"sscc,omitempty"`
	Barcode      string     `bson:"barcode,omitempty" json:"barcode,omitempty"`
	Quantity     int        `bson:"quantity" json:"quantity"`
	LocationCode string     `bson:"locationCode,omitempty" json:"locationCode,omitempty"`
	DeviceID     string     `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	Lot          string     `bson:"lot,omitempty" json:"lot,omitempty"`
	Expiry       *time.Time `bson:"expiry,omitempty" json:"expiry,omitempty"`
	Discrepancy  bool       `bson:"discrepancy" json:"discrepancy"`
	Damaged      bool       `bson:"damaged" json:"damaged"`
	DamageType   string     `bson:"damageType,omitempty" json:"damageType,omitempty"`
	DamageNote   string     `bson:"damageNote,omitempty" json:"damageNote,omitempty"`
	ScannedBy    string     `bson:"scannedBy,omitempty" json:"scannedBy,omitempty"`
	ScannedAt    time.Time  `bson:"scannedAt" json:"scannedAt"`
}

// NewScan stamps a scan with an id and time
func NewScan(s Scan) *Scan {
	s.ID = uuid.New().String()
	s.ScannedAt = time.Now().UTC()
	return &s
}

// Event returns the event announcing this scan
func (s *Scan) Event() DomainEvent {
	return &ScanRecordedEvent{
		ScanID:      s.ID,
		TaskID:      s.TaskID,
		ReceiptID:   s.ReceiptID,
		RequestID:   s.RequestID,
		PalletCode:  s.PalletCode,
		Quantity:    s.Quantity,
		Discrepancy: s.Discrepancy,
		OccurredAt_: s.ScannedAt,
	}
}
