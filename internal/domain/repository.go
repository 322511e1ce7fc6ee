package domain

import (
	"context"
	"time"
)

// Versioned aggregates (Receipt, Task, Pallet, Location, Discrepancy) are saved compare-and-set:
// Version 0 inserts, any other value must equal the stored version. A successful save advances
// the in-memory Version and stores the pending domain events in the same unit of work.
// FindByID-style lookups return nil, nil when nothing matches.

// ReceiptRepository defines receipt persistence
type ReceiptRepository interface {
	Save(ctx context.Context, receipt *Receipt) error
	FindByID(ctx context.Context, id string) (*Receipt, error)
	// FindByMessageID looks up an imported receipt by its dedup key
	FindByMessageID(ctx context.Context, messageID string) (*Receipt, error)
	FindAll(ctx context.Context, filter ReceiptFilter) ([]*Receipt, error)
	Delete(ctx context.Context, id string) error
}

// ReceiptFilter selects receipts. Zero values do not filter.
type ReceiptFilter struct {
	Status      ReceiptStatus
	CrossDock   *bool
	OutboundRef string
	// WithOutboundRef keeps only receipts whose outbound reference is set
	WithOutboundRef bool
	Limit           int
}

// TaskRepository defines task persistence
type TaskRepository interface {
	Save(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, id string) (*Task, error)
	FindByReceiptID(ctx context.Context, receiptID string) ([]*Task, error)
	FindAll(ctx context.Context, filter TaskFilter) ([]*Task, error)
	// CountActivePlacementsTo counts NEW, ASSIGNED and IN_PROGRESS placement tasks targeting a location
	CountActivePlacementsTo(ctx context.Context, locationID string) (int, error)
}

// TaskFilter selects tasks. Zero values do not filter.
type TaskFilter struct {
	ReceiptID   string
	Type        TaskType
	Status      TaskStatus
	AssigneeID  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
}

// PalletRepository defines pallet persistence
type PalletRepository interface {
	Save(ctx context.Context, pallet *Pallet) error
	FindByID(ctx context.Context, id string) (*Pallet, error)
	FindByCode(ctx context.Context, code string) (*Pallet, error)
	FindByReceiptID(ctx context.Context, receiptID string) ([]*Pallet, error)
	// CountAtLocation counts pallets currently located at locationID
	CountAtLocation(ctx context.Context, locationID string) (int, error)
	// LocationsHoldingSKU returns the distinct location ids of pallets with stock of sku
	LocationsHoldingSKU(ctx context.Context, sku string) ([]string, error)
}

// MovementRepository stores the append-only pallet movement log
type MovementRepository interface {
	Append(ctx context.Context, movement *PalletMovement) error
	FindByPalletID(ctx context.Context, palletID string) ([]*PalletMovement, error)
}

// ScanRepository stores the append-only scan log
type ScanRepository interface {
	// Append fails with ErrDuplicateScan when (TaskID, RequestID) already exists
	Append(ctx context.Context, scan *Scan) error
	FindByTaskAndRequestID(ctx context.Context, taskID, requestID string) (*Scan, error)
	FindByTaskID(ctx context.Context, taskID string) ([]*Scan, error)
	// DeleteByTaskID removes every scan of a task and returns how many were removed
	DeleteByTaskID(ctx context.Context, taskID string) (int, error)
}

// DiscrepancyRepository defines discrepancy persistence
type DiscrepancyRepository interface {
	Save(ctx context.Context, discrepancy *Discrepancy) error
	FindByID(ctx context.Context, id string) (*Discrepancy, error)
	FindAll(ctx context.Context, filter DiscrepancyFilter) ([]*Discrepancy, error)
	CountUnresolved(ctx context.Context, receiptID string) (int, error)
}

// DiscrepancyFilter selects discrepancies. Zero values do not filter.
type DiscrepancyFilter struct {
	ReceiptID string
	Type      DiscrepancyType
	Resolved  *bool
}

// LocationRepository defines location persistence
type LocationRepository interface {
	Save(ctx context.Context, location *Location) error
	FindByID(ctx context.Context, id string) (*Location, error)
	FindByCode(ctx context.Context, code string) (*Location, error)
	FindAll(ctx context.Context, filter LocationFilter) ([]*Location, error)
}

// LocationFilter selects locations. Zero values do not filter.
type LocationFilter struct {
	Zones    []string
	Type     LocationType
	Statuses []LocationStatus
	IDs      []string
}

// PutawayRuleRepository defines putaway rule persistence. Rules are master data saved without version checks.
type PutawayRuleRepository interface {
	Save(ctx context.Context, rule *PutawayRule) error
	FindByID(ctx context.Context, id string) (*PutawayRule, error)
	FindAll(ctx context.Context) ([]*PutawayRule, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SkuStorageConfigRepository defines SKU storage config persistence
type SkuStorageConfigRepository interface {
	Save(ctx context.Context, config *SkuStorageConfig) error
	FindBySKU(ctx context.Context, sku string) (*SkuStorageConfig, error)
}

// UnitOfWork groups repository writes so they commit or roll back together.
// Repositories called with the ctx passed to fn join the unit of work.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
