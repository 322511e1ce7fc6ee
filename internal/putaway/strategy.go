package putaway

import (
	"context"
	"sort"

	"github.com/wms-platform/inbound-service/internal/domain"
)

// PlacementContext describes where a pallet would prefer to go
type PlacementContext struct {
	ReceiptID         string
	SKU               string
	PreferredZone     string
	VelocityClass     string
	SKUCategory       string
	CurrentLocationID string
}

// Inventory is the read model the strategies work against
type Inventory interface {
	Locations(ctx context.Context, filter domain.LocationFilter) ([]*domain.Location, error)
	// Occupancy counts pallets at the location plus active placement tasks targeting it
	Occupancy(ctx context.Context, locationID string) (int, error)
	LocationsHoldingSKU(ctx context.Context, sku string) ([]string, error)
}

// strategyFunc returns at most one location, or nil when it finds none
type strategyFunc func(ctx context.Context, inv Inventory, rule *domain.PutawayRule, pc PlacementContext) (*domain.Location, error)

var strategies = map[domain.StrategyKind]strategyFunc{
	domain.StrategyClosestAvailable: closestAvailable,
	// ABC velocity and FIFO directed keep the closest-available behaviour until zone-by-velocity
	// and expiry-driven slotting are defined.
	domain.StrategyABCVelocity:   closestAvailable,
	domain.StrategyConsolidation: consolidation,
	domain.StrategyFIFODirected:  closestAvailable,
}

func preferredZones(rule *domain.PutawayRule, pc PlacementContext) []string {
	var zones []string
	if rule.Zone != "" {
		zones = append(zones, rule.Zone)
	}
	if pc.PreferredZone != "" && pc.PreferredZone != rule.Zone {
		zones = append(zones, pc.PreferredZone)
	}
	return zones
}

func closestAvailable(ctx context.Context, inv Inventory, rule *domain.PutawayRule, pc PlacementContext) (*domain.Location, error) {
	candidates, err := inv.Locations(ctx, domain.LocationFilter{
		Zones:    preferredZones(rule, pc),
		Type:     rule.TargetType(),
		Statuses: []domain.LocationStatus{domain.LocationStatusAvailable},
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Sequence != candidates[j].Sequence {
			return candidates[i].Sequence < candidates[j].Sequence
		}
		return candidates[i].ID < candidates[j].ID
	})

	return firstWithRoom(ctx, inv, candidates, pc.CurrentLocationID)
}

func consolidation(ctx context.Context, inv Inventory, rule *domain.PutawayRule, pc PlacementContext) (*domain.Location, error) {
	if pc.SKU != "" {
		ids, err := inv.LocationsHoldingSKU(ctx, pc.SKU)
		if err != nil {
			return nil, err
		}

		if len(ids) > 0 {
			candidates, err := inv.Locations(ctx, domain.LocationFilter{
				IDs:      ids,
				Type:     rule.TargetType(),
				Statuses: []domain.LocationStatus{domain.LocationStatusAvailable, domain.LocationStatusOccupied},
			})
			if err != nil {
				return nil, err
			}

			sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

			loc, err := firstWithRoom(ctx, inv, candidates, pc.CurrentLocationID)
			if err != nil || loc != nil {
				return loc, err
			}
		}
	}

	return closestAvailable(ctx, inv, rule, pc)
}

func firstWithRoom(ctx context.Context, inv Inventory, candidates []*domain.Location, skipID string) (*domain.Location, error) {
	for _, loc := range candidates {
		if loc.ID == skipID {
			continue
		}
		occupancy, err := inv.Occupancy(ctx, loc.ID)
		if err != nil {
			return nil, err
		}
		if loc.HasRoom(occupancy) {
			return loc, nil
		}
	}
	return nil, nil
}

// RepositoryInventory answers inventory questions from the repositories
type RepositoryInventory struct {
	locations domain.LocationRepository
	pallets   domain.PalletRepository
	tasks     domain.TaskRepository
}

// NewRepositoryInventory creates an Inventory backed by the stores
func NewRepositoryInventory(locations domain.LocationRepository, pallets domain.PalletRepository, tasks domain.TaskRepository) *RepositoryInventory {
	return &RepositoryInventory{locations: locations, pallets: pallets, tasks: tasks}
}

func (i *RepositoryInventory) Locations(ctx context.Context, filter domain.LocationFilter) ([]*domain.Location, error) {
	return i.locations.FindAll(ctx, filter)
}

func (i *RepositoryInventory) Occupancy(ctx context.Context, locationID string) (int, error) {
	stored, err := i.pallets.CountAtLocation(ctx, locationID)
	if err != nil {
		return 0, err
	}
	inbound, err := i.tasks.CountActivePlacementsTo(ctx, locationID)
	if err != nil {
		return 0, err
	}
	return stored + inbound, nil
}

func (i *RepositoryInventory) LocationsHoldingSKU(ctx context.Context, sku string) ([]string, error) {
	return i.pallets.LocationsHoldingSKU(ctx, sku)
}
