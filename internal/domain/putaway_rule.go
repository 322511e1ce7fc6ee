package domain

import (
	"time"

	"github.com/google/uuid"
)

// StrategyKind names one of the compiled putaway strategies
type StrategyKind string

const (
	StrategyClosestAvailable StrategyKind = "CLOSEST_AVAILABLE"
	StrategyABCVelocity      StrategyKind = "ABC_VELOCITY"
	StrategyConsolidation    StrategyKind = "CONSOLIDATION"
	StrategyFIFODirected     StrategyKind = "FIFO_DIRECTED"
)

// IsValid checks if the strategy kind is one of the compiled set
func (s StrategyKind) IsValid() bool {
	switch s {
	case StrategyClosestAvailable, StrategyABCVelocity, StrategyConsolidation, StrategyFIFODirected:
		return true
	default:
		return false
	}
}

// PutawayRule binds matching predicates to a strategy. Empty predicates match anything.
type PutawayRule struct {
	ID                 string       `bson:"_id" json:"id" yaml:"id"`
	Name               string       `bson:"name" json:"name" yaml:"name"`
	Priority           int          `bson:"priority" json:"priority" yaml:"priority"`
	Zone               string       `bson:"zone,omitempty" json:"zone,omitempty" yaml:"zone"`
	VelocityClass      string       `bson:"velocityClass,omitempty" json:"velocityClass,omitempty" yaml:"velocityClass"`
	SKUCategory        string       `bson:"skuCategory,omitempty" json:"skuCategory,omitempty" yaml:"skuCategory"`
	Strategy           StrategyKind `bson:"strategy" json:"strategy" yaml:"strategy"`
	TargetLocationType LocationType `bson:"targetLocationType,omitempty" json:"targetLocationType,omitempty" yaml:"targetLocationType"`
	Active             bool         `bson:"active" json:"active" yaml:"active"`
	CreatedAt          time.Time    `bson:"createdAt" json:"createdAt" yaml:"-"`
}

// NewPutawayRule creates an active rule
func NewPutawayRule(name string, priority int, zone, velocityClass, skuCategory string, strategy StrategyKind, target LocationType) (*PutawayRule, error) {
	rule := &PutawayRule{
		ID:                 uuid.New().String(),
		Name:               name,
		Priority:           priority,
		Zone:               zone,
		VelocityClass:      velocityClass,
		SKUCategory:        skuCategory,
		Strategy:           strategy,
		TargetLocationType: target,
		Active:             true,
		CreatedAt:          time.Now().UTC(),
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate checks the strategy and target type
func (r *PutawayRule) Validate() error {
	if !r.Strategy.IsValid() {
		return ErrInvalidStrategy
	}
	if r.TargetLocationType != "" && !r.TargetLocationType.IsValid() {
		return ErrInvalidLocationType
	}
	return nil
}

// Matches reports whether every non-empty predicate equals the given value
func (r *PutawayRule) Matches(zone, velocityClass, skuCategory string) bool {
	if r.Zone != "" && r.Zone != zone {
		return false
	}
	if r.VelocityClass != "" && r.VelocityClass != velocityClass {
		return false
	}
	if r.SKUCategory != "" && r.SKUCategory != skuCategory {
		return false
	}
	return true
}

// TargetType returns the location type the rule places into, STORAGE by default
func (r *PutawayRule) TargetType() LocationType {
	if r.TargetLocationType == "" {
		return LocationTypeStorage
	}
	return r.TargetLocationType
}

// SkuStorageConfig holds the storage preferences of one SKU
type SkuStorageConfig struct {
	SKU           string    `bson:"_id" json:"sku"`
	PreferredZone string    `bson:"preferredZone,omitempty" json:"preferredZone,omitempty"`
	VelocityClass string    `bson:"velocityClass,omitempty" json:"velocityClass,omitempty"`
	Category      string    `bson:"category,omitempty" json:"category,omitempty"`
	HazmatClass   string    `bson:"hazmatClass,omitempty" json:"hazmatClass,omitempty"`
	MinStock      int       `bson:"minStock" json:"minStock"`
	MaxStock      int       `bson:"maxStock" json:"maxStock"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}
