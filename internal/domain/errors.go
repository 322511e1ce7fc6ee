package domain

import "errors"

// Store errors
var (
	// ErrVersionConflict is returned by a save whose expected version is stale
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicateScan is returned when a scan with the same task and request id already exists
	ErrDuplicateScan = errors.New("duplicate scan")
	// ErrDuplicateKey is returned when a unique code or key is already taken
	ErrDuplicateKey = errors.New("duplicate key")
)

// Receipt errors
var (
	ErrInvalidReceiptTransition = errors.New("invalid receipt status transition")
	ErrReceiptNotEditable       = errors.New("receipt lines can only change while DRAFT")
	ErrReceiptNotDeletable      = errors.New("only DRAFT or CANCELLED receipts can be deleted")
	ErrNoLines                  = errors.New("receipt must have at least one line")
	ErrOutboundRefRequired      = errors.New("outbound reference is required for cross-dock receipts")
	ErrLineNotFound             = errors.New("receipt line not found")
	ErrDuplicateLineNo          = errors.New("line number already used on this receipt")
	ErrInvalidLine              = errors.New("receipt line requires sku and positive expected quantity")
	ErrReceiptTerminal          = errors.New("receipt is in a terminal state")
)

// Task errors
var (
	ErrInvalidTaskTransition = errors.New("invalid task status transition")
	ErrTaskTerminal          = errors.New("task is in a terminal state")
	ErrAssigneeRequired      = errors.New("assignee is required")
	ErrInvalidTaskType       = errors.New("invalid task type")
)

// Pallet errors
var (
	ErrInvalidPalletState = errors.New("pallet is not in a state that allows this operation")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInsufficientQty    = errors.New("quantity exceeds what is on the pallet")
)

// Discrepancy errors
var (
	ErrDiscrepancyResolved = errors.New("discrepancy already resolved")
)

// Master data errors
var (
	ErrInvalidStrategy     = errors.New("invalid putaway strategy")
	ErrInvalidLocationType = errors.New("invalid location type")
	ErrInvalidCapacity     = errors.New("location capacity must be positive")
)
