package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/logging"
)

// MasterDataService maintains locations, putaway rules and SKU storage configs
type MasterDataService struct {
	locations  domain.LocationRepository
	rules      domain.PutawayRuleRepository
	skuConfigs domain.SkuStorageConfigRepository
	logger     *logging.Logger
}

// NewMasterDataService creates a new MasterDataService
func NewMasterDataService(stores Stores, logger *logging.Logger) *MasterDataService {
	return &MasterDataService{
		locations:  stores.Locations,
		rules:      stores.Rules,
		skuConfigs: stores.SkuConfigs,
		logger:     logger,
	}
}

// CreateLocation registers a location. Codes are unique.
func (s *MasterDataService) CreateLocation(ctx context.Context, cmd CreateLocationCommand) (*domain.Location, error) {
	loc, err := domain.NewLocation(cmd.Code, cmd.Zone, domain.LocationType(cmd.Type), cmd.MaxPallets, cmd.Sequence)
	if err != nil {
		return nil, toAppError(err, "location")
	}
	if err := s.locations.Save(ctx, loc); err != nil {
		return nil, toAppError(fmt.Errorf("failed to save location %s: %w", cmd.Code, err), "location")
	}

	s.logger.Info("Created location", "locationId", loc.ID, "code", loc.Code, "zone", loc.Zone, "type", loc.Type)
	return loc, nil
}

// GetLocation returns one location
func (s *MasterDataService) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	loc, err := s.locations.FindByID(ctx, id)
	if err != nil {
		return nil, toAppError(err, "location")
	}
	if loc == nil {
		return nil, apperrors.ErrNotFoundWithID("location", id)
	}
	return loc, nil
}

// ListLocations returns locations ordered by code
func (s *MasterDataService) ListLocations(ctx context.Context, query ListLocationsQuery) ([]*domain.Location, error) {
	filter := domain.LocationFilter{Type: domain.LocationType(query.Type)}
	if query.Zone != "" {
		filter.Zones = []string{query.Zone}
	}
	if query.Status != "" {
		filter.Statuses = []domain.LocationStatus{domain.LocationStatus(query.Status)}
	}

	locs, err := s.locations.FindAll(ctx, filter)
	if err != nil {
		return nil, toAppError(err, "location")
	}
	return locs, nil
}

// CreateRule adds a putaway rule
func (s *MasterDataService) CreateRule(ctx context.Context, cmd PutawayRuleCommand) (*domain.PutawayRule, error) {
	rule, err := domain.NewPutawayRule(cmd.Name, cmd.Priority, cmd.Zone, cmd.VelocityClass, cmd.SKUCategory,
		domain.StrategyKind(cmd.Strategy), domain.LocationType(cmd.TargetLocationType))
	if err != nil {
		return nil, toAppError(err, "putaway rule")
	}
	if cmd.Active != nil {
		rule.Active = *cmd.Active
	}

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, toAppError(fmt.Errorf("failed to save putaway rule: %w", err), "putaway rule")
	}

	s.logger.Info("Created putaway rule", "ruleId", rule.ID, "priority", rule.Priority, "strategy", rule.Strategy)
	return rule, nil
}

// UpdateRule replaces the editable fields of a rule. CreatedAt, and so tie-break order, is kept.
func (s *MasterDataService) UpdateRule(ctx context.Context, cmd PutawayRuleCommand) (*domain.PutawayRule, error) {
	rule, err := s.GetRule(ctx, cmd.RuleID)
	if err != nil {
		return nil, err
	}

	rule.Name = cmd.Name
	rule.Priority = cmd.Priority
	rule.Zone = cmd.Zone
	rule.VelocityClass = cmd.VelocityClass
	rule.SKUCategory = cmd.SKUCategory
	rule.Strategy = domain.StrategyKind(cmd.Strategy)
	rule.TargetLocationType = domain.LocationType(cmd.TargetLocationType)
	if cmd.Active != nil {
		rule.Active = *cmd.Active
	}
	if err := rule.Validate(); err != nil {
		return nil, toAppError(err, "putaway rule")
	}

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, toAppError(fmt.Errorf("failed to save putaway rule: %w", err), "putaway rule")
	}

	s.logger.Info("Updated putaway rule", "ruleId", rule.ID, "priority", rule.Priority, "active", rule.Active)
	return rule, nil
}

// GetRule returns one putaway rule
func (s *MasterDataService) GetRule(ctx context.Context, id string) (*domain.PutawayRule, error) {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return nil, toAppError(err, "putaway rule")
	}
	if rule == nil {
		return nil, apperrors.ErrNotFoundWithID("putaway rule", id)
	}
	return rule, nil
}

// ListRules returns every putaway rule in evaluation order
func (s *MasterDataService) ListRules(ctx context.Context) ([]*domain.PutawayRule, error) {
	rules, err := s.rules.FindAll(ctx)
	if err != nil {
		return nil, toAppError(err, "putaway rule")
	}
	return rules, nil
}

// DeleteRule removes a putaway rule
func (s *MasterDataService) DeleteRule(ctx context.Context, id string) error {
	if _, err := s.GetRule(ctx, id); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return toAppError(fmt.Errorf("failed to delete putaway rule: %w", err), "putaway rule")
	}

	s.logger.Info("Deleted putaway rule", "ruleId", id)
	return nil
}

// UpsertSkuConfig stores the storage preferences of a SKU
func (s *MasterDataService) UpsertSkuConfig(ctx context.Context, cmd SkuConfigCommand) (*domain.SkuStorageConfig, error) {
	if cmd.MaxStock > 0 && cmd.MinStock > cmd.MaxStock {
		return nil, apperrors.ErrValidationWithFields("invalid stock bounds", map[string]string{
			"minStock": "must not exceed maxStock",
		})
	}

	cfg := &domain.SkuStorageConfig{
		SKU:           cmd.SKU,
		PreferredZone: cmd.PreferredZone,
		VelocityClass: cmd.VelocityClass,
		Category:      cmd.Category,
		HazmatClass:   cmd.HazmatClass,
		MinStock:      cmd.MinStock,
		MaxStock:      cmd.MaxStock,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.skuConfigs.Save(ctx, cfg); err != nil {
		return nil, toAppError(fmt.Errorf("failed to save storage config for %s: %w", cmd.SKU, err), "sku config")
	}

	s.logger.Info("Upserted SKU storage config", "sku", cfg.SKU, "preferredZone", cfg.PreferredZone, "velocityClass", cfg.VelocityClass)
	return cfg, nil
}

// GetSkuConfig returns the storage preferences of a SKU
func (s *MasterDataService) GetSkuConfig(ctx context.Context, sku string) (*domain.SkuStorageConfig, error) {
	cfg, err := s.skuConfigs.FindBySKU(ctx, sku)
	if err != nil {
		return nil, toAppError(err, "sku config")
	}
	if cfg == nil {
		return nil, apperrors.ErrNotFoundWithID("sku config", sku)
	}
	return cfg, nil
}
