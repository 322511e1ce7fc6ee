package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocationType classifies a physical slot
type LocationType string

const (
	LocationTypeReceiving  LocationType = "RECEIVING"
	LocationTypeStorage    LocationType = "STORAGE"
	LocationTypePicking    LocationType = "PICKING"
	LocationTypeShipping   LocationType = "SHIPPING"
	LocationTypeQuarantine LocationType = "QUARANTINE"
)

// IsValid checks if the location type is valid
func (t LocationType) IsValid() bool {
	switch t {
	case LocationTypeReceiving, LocationTypeStorage, LocationTypePicking,
		LocationTypeShipping, LocationTypeQuarantine:
		return true
	default:
		return false
	}
}

// LocationStatus represents slot availability
type LocationStatus string

const (
	LocationStatusAvailable LocationStatus = "AVAILABLE"
	LocationStatusOccupied  LocationStatus = "OCCUPIED"
	LocationStatusBlocked   LocationStatus = "BLOCKED"
)

// Location is a physical inventory slot
type Location struct {
	ID         string         `bson:"_id" json:"id"`
	Code       string         `bson:"code" json:"code"`
	Zone       string         `bson:"zone" json:"zone"`
	Type       LocationType   `bson:"type" json:"type"`
	Status     LocationStatus `bson:"status" json:"status"`
	MaxPallets int            `bson:"maxPallets" json:"maxPallets"`
	// Sequence is the walk order from the dock; lower is closer
	Sequence  int       `bson:"sequence" json:"sequence"`
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewLocation creates an AVAILABLE location
func NewLocation(code, zone string, locationType LocationType, maxPallets, sequence int) (*Location, error) {
	if !locationType.IsValid() {
		return nil, ErrInvalidLocationType
	}
	if maxPallets <= 0 {
		return nil, ErrInvalidCapacity
	}

	now := time.Now().UTC()
	return &Location{
		ID:         uuid.New().String(),
		Code:       strings.TrimSpace(code),
		Zone:       zone,
		Type:       locationType,
		Status:     LocationStatusAvailable,
		MaxPallets: maxPallets,
		Sequence:   sequence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// HasRoom reports whether occupancy leaves space for another pallet
func (l *Location) HasRoom(occupancy int) bool {
	return occupancy < l.MaxPallets
}

// Occupy marks the location as holding stock. It returns false when nothing changed.
func (l *Location) Occupy() bool {
	if l.Status != LocationStatusAvailable {
		return false
	}
	l.Status = LocationStatusOccupied
	l.UpdatedAt = time.Now().UTC()
	return true
}

// Vacate marks an OCCUPIED location AVAILABLE again
func (l *Location) Vacate() bool {
	if l.Status != LocationStatusOccupied {
		return false
	}
	l.Status = LocationStatusAvailable
	l.UpdatedAt = time.Now().UTC()
	return true
}
