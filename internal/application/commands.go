package application

import (
	"time"

	"github.com/wms-platform/inbound-service/internal/domain"
)

// LineInput represents one receipt line in a create or upsert request
type LineInput struct {
	LineNo         int        `json:"lineNo" binding:"required,min=1"`
	SKU            string     `json:"sku" binding:"required"`
	ProductName    string     `json:"productName"`
	Packaging      string     `json:"packaging"`
	UOM            string     `json:"uom"`
	QtyExpected    int        `json:"qtyExpected" binding:"required,min=1"`
	ExpectedSSCC   string     `json:"expectedSscc"`
	ExpectedLot    string     `json:"expectedLot"`
	ExpectedExpiry *time.Time `json:"expectedExpiry"`
}

func (l LineInput) toDomain() domain.ReceiptLine {
	uom := l.UOM
	if uom == "" {
		uom = "EA"
	}
	return domain.ReceiptLine{
		LineNo:         l.LineNo,
		SKU:            l.SKU,
		ProductName:    l.ProductName,
		Packaging:      l.Packaging,
		UOM:            uom,
		QtyExpected:    l.QtyExpected,
		ExpectedSSCC:   l.ExpectedSSCC,
		ExpectedLot:    l.ExpectedLot,
		ExpectedExpiry: l.ExpectedExpiry,
	}
}

// CreateReceiptCommand represents a command to create a manual receipt
type CreateReceiptCommand struct {
	DocNo       string      `json:"docNo" binding:"required"`
	DocDate     time.Time   `json:"docDate"`
	Supplier    string      `json:"supplier" binding:"required"`
	CrossDock   bool        `json:"crossDock"`
	OutboundRef string      `json:"outboundRef"`
	Lines       []LineInput `json:"lines" binding:"dive"`
}

// UpsertLineCommand represents a command to add or replace a receipt line
type UpsertLineCommand struct {
	ReceiptID string `json:"-"`
	LineInput
}

// ListReceiptsQuery filters the receipt list
type ListReceiptsQuery struct {
	Status      string `form:"status"`
	OutboundRef string `form:"outboundRef"`
	CrossDock   *bool  `form:"crossDock"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// CreateTaskCommand represents a command to create a task by hand
type CreateTaskCommand struct {
	ReceiptID        string `json:"receiptId" binding:"required"`
	LineID           string `json:"lineId"`
	Type             string `json:"type" binding:"required,oneof=RECEIVING PLACEMENT SHIPPING"`
	PalletID         string `json:"palletId"`
	SourceLocationID string `json:"sourceLocationId"`
	TargetLocationID string `json:"targetLocationId"`
	QtyAssigned      int    `json:"qtyAssigned" binding:"min=0"`
	Priority         int    `json:"priority"`
}

// AssignTaskCommand represents a command to assign a task to an operator
type AssignTaskCommand struct {
	TaskID     string `json:"-"`
	AssigneeID string `json:"assigneeId" binding:"required"`
	AssignedBy string `json:"-"`
	// RequireNew rejects the assignment unless the task is still NEW when it is written
	RequireNew bool `json:"-"`
}

// SetPriorityCommand represents a command to change task priority
type SetPriorityCommand struct {
	TaskID   string `json:"-"`
	Priority int    `json:"priority"`
}

// ListTasksQuery filters the task list
type ListTasksQuery struct {
	ReceiptID   string     `form:"receiptId"`
	Type        string     `form:"type" binding:"omitempty,oneof=RECEIVING PLACEMENT SHIPPING"`
	Status      string     `form:"status"`
	AssigneeID  string     `form:"assigneeId"`
	CreatedFrom *time.Time `form:"createdFrom" time_format:"2006-01-02T15:04:05Z07:00"`
	CreatedTo   *time.Time `form:"createdTo" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit       int        `form:"limit" binding:"omitempty,min=1,max=500"`
}

// RecordScanCommand represents one barcode scan against a task
type RecordScanCommand struct {
	TaskID       string     `json:"-"`
	RequestID    string     `json:"requestId" binding:"required"`
	PalletCode   string     `json:"palletCode" binding:"required"`
	Quantity     int        `json:"quantity" binding:"min=0"`
	SSCC         string     `json:"sscc"`
	Barcode      string     `json:"barcode"`
	LocationCode string     `json:"locationCode"`
	DeviceID     string     `json:"deviceId"`
	Lot          string     `json:"lot"`
	Expiry       *time.Time `json:"expiry"`
	Damaged      bool       `json:"damaged"`
	DamageType   string     `json:"damageType"`
	DamageNote   string     `json:"damageNote"`
	ScannedBy    string     `json:"-"`
}

// ResolveDiscrepancyCommand represents a command to close a discrepancy
type ResolveDiscrepancyCommand struct {
	DiscrepancyID string `json:"-"`
	Note          string `json:"note" binding:"required"`
	ResolvedBy    string `json:"-"`
}

// ListDiscrepanciesQuery filters the discrepancy list
type ListDiscrepanciesQuery struct {
	ReceiptID string `form:"receiptId"`
	Type      string `form:"type" binding:"omitempty,oneof=OVER UNDER SSCC_MISMATCH LOT_MISMATCH DAMAGE"`
	Resolved  *bool  `form:"resolved"`
}

// CreateLocationCommand represents a command to register a location
type CreateLocationCommand struct {
	Code       string `json:"code" binding:"required"`
	Zone       string `json:"zone"`
	Type       string `json:"type" binding:"required,oneof=RECEIVING STORAGE PICKING SHIPPING QUARANTINE"`
	MaxPallets int    `json:"maxPallets" binding:"required,min=1"`
	Sequence   int    `json:"sequence"`
}

// ListLocationsQuery filters the location list
type ListLocationsQuery struct {
	Zone   string `form:"zone"`
	Type   string `form:"type"`
	Status string `form:"status"`
}

// PutawayRuleCommand represents a command to create or replace a putaway rule
type PutawayRuleCommand struct {
	RuleID             string `json:"-"`
	Name               string `json:"name" binding:"required"`
	Priority           int    `json:"priority"`
	Zone               string `json:"zone"`
	VelocityClass      string `json:"velocityClass"`
	SKUCategory        string `json:"skuCategory"`
	Strategy           string `json:"strategy" binding:"required,oneof=CLOSEST_AVAILABLE ABC_VELOCITY CONSOLIDATION FIFO_DIRECTED"`
	TargetLocationType string `json:"targetLocationType"`
	Active             *bool  `json:"active"`
}

// SkuConfigCommand represents a command to upsert SKU storage preferences
type SkuConfigCommand struct {
	SKU           string `json:"-"`
	PreferredZone string `json:"preferredZone"`
	VelocityClass string `json:"velocityClass"`
	Category      string `json:"category"`
	HazmatClass   string `json:"hazmatClass"`
	MinStock      int    `json:"minStock" binding:"min=0"`
	MaxStock      int    `json:"maxStock" binding:"min=0"`
}
