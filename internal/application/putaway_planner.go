package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/internal/putaway"
	"github.com/wms-platform/inbound-service/pkg/logging"
	"github.com/wms-platform/inbound-service/pkg/metrics"
)

// PutawayFailure explains why a pallet got no placement task
type PutawayFailure struct {
	PalletID   string `json:"palletId"`
	PalletCode string `json:"palletCode"`
	Reason     string `json:"reason"`
}

// PutawayPlanner turns placeable pallets into PLACEMENT tasks
type PutawayPlanner struct {
	rules      domain.PutawayRuleRepository
	skuConfigs domain.SkuStorageConfigRepository
	inventory  putaway.Inventory
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewPutawayPlanner creates a planner reading rules, configs and occupancy from the stores
func NewPutawayPlanner(stores Stores, logger *logging.Logger, m *metrics.Metrics) *PutawayPlanner {
	return &PutawayPlanner{
		rules:      stores.Rules,
		skuConfigs: stores.SkuConfigs,
		inventory:  putaway.NewRepositoryInventory(stores.Locations, stores.Pallets, stores.Tasks),
		logger:     logger.WithComponent("putaway-planner"),
		metrics:    m,
	}
}

// Plan builds one placement task per pallet that the rules can place. A pallet without a
// destination becomes a PutawayFailure and never stops its siblings. Tasks are not saved.
func (p *PutawayPlanner) Plan(ctx context.Context, receipt *domain.Receipt, pallets []*domain.Pallet) ([]*domain.Task, []PutawayFailure, error) {
	// Destinations chosen earlier in the same run count against capacity.
	inv := &plannedInventory{Inventory: p.inventory, planned: make(map[string]int)}
	matcher := putaway.NewMatcher(p.rules, inv, p.logger)

	var tasks []*domain.Task
	var failures []PutawayFailure

	for _, pallet := range pallets {
		pc, err := p.placementContext(ctx, receipt, pallet)
		if err != nil {
			return nil, nil, err
		}

		decision, err := matcher.Locate(ctx, pallet, pc)
		if errors.Is(err, putaway.ErrNoLocation) {
			p.metrics.RecordPutawayFailure("no_location")
			failures = append(failures, PutawayFailure{
				PalletID:   pallet.ID,
				PalletCode: pallet.Code,
				Reason:     "no location with free capacity matches the putaway rules",
			})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to locate pallet %s: %w", pallet.Code, err)
		}

		task, err := domain.NewTask(domain.TaskSpec{
			ReceiptID:        receipt.ID,
			LineID:           pallet.LineID,
			Type:             domain.TaskTypePlacement,
			PalletID:         pallet.ID,
			SourceLocationID: pallet.LocationID,
			TargetLocationID: decision.Location.ID,
			QtyAssigned:      pallet.Quantity,
		})
		if err != nil {
			return nil, nil, err
		}
		inv.planned[decision.Location.ID]++
		tasks = append(tasks, task)

		p.logger.Debug("Planned putaway",
			"receiptId", receipt.ID,
			"palletCode", pallet.Code,
			"locationCode", decision.Location.Code,
			"ruleId", decision.RuleID,
			"strategy", decision.Strategy,
		)
	}

	return tasks, failures, nil
}

func (p *PutawayPlanner) placementContext(ctx context.Context, receipt *domain.Receipt, pallet *domain.Pallet) (putaway.PlacementContext, error) {
	pc := putaway.PlacementContext{
		ReceiptID:         receipt.ID,
		SKU:               pallet.SKU,
		CurrentLocationID: pallet.LocationID,
	}

	cfg, err := p.skuConfigs.FindBySKU(ctx, pallet.SKU)
	if err != nil {
		return pc, fmt.Errorf("failed to load storage config for %s: %w", pallet.SKU, err)
	}
	if cfg != nil {
		pc.PreferredZone = cfg.PreferredZone
		pc.VelocityClass = cfg.VelocityClass
		pc.SKUCategory = cfg.Category
	}
	return pc, nil
}

type plannedInventory struct {
	putaway.Inventory
	planned map[string]int
}

func (i *plannedInventory) Occupancy(ctx context.Context, locationID string) (int, error) {
	n, err := i.Inventory.Occupancy(ctx, locationID)
	if err != nil {
		return 0, err
	}
	return n + i.planned[locationID], nil
}
