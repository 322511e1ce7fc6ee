// Package rules loads putaway rules and starter master data from YAML.
package rules

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/pkg/logging"
)

//go:embed default_seed.yaml
var defaultSeed []byte

// Seed is the YAML document shape
type Seed struct {
	Rules      []domain.PutawayRule `yaml:"rules"`
	Locations  []LocationSeed       `yaml:"locations"`
	SkuConfigs []SkuConfigSeed      `yaml:"skuConfigs"`
}

// LocationSeed describes a location to create when its code is unknown
type LocationSeed struct {
	Code       string              `yaml:"code"`
	Zone       string              `yaml:"zone"`
	Type       domain.LocationType `yaml:"type"`
	MaxPallets int                 `yaml:"maxPallets"`
	Sequence   int                 `yaml:"sequence"`
}

// SkuConfigSeed describes a SKU storage preference
type SkuConfigSeed struct {
	SKU           string `yaml:"sku"`
	PreferredZone string `yaml:"preferredZone"`
	VelocityClass string `yaml:"velocityClass"`
	Category      string `yaml:"category"`
}

// Result counts what Apply created
type Result struct {
	Rules      int
	Locations  int
	SkuConfigs int
}

// Load reads a seed file. An empty path returns the built-in seed.
func Load(path string) (*Seed, error) {
	if path == "" {
		return Parse(defaultSeed)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a seed document
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	now := time.Now().UTC()
	for i := range seed.Rules {
		rule := &seed.Rules[i]
		if rule.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		rule.Active = true
		// keeps file order as the tie-breaker among equal priorities
		rule.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
	}
	return &seed, nil
}

// Repositories are the stores a seed is applied to
type Repositories struct {
	Rules      domain.PutawayRuleRepository
	Locations  domain.LocationRepository
	SkuConfigs domain.SkuStorageConfigRepository
}

// Apply stores the seed. Rules are only written into an empty rule store; locations and
// SKU configs are added when missing and never overwritten.
func Apply(ctx context.Context, seed *Seed, repos Repositories, logger *logging.Logger) (*Result, error) {
	result := &Result{}

	existing, err := repos.Rules.Count(ctx)
	if err != nil {
		return nil, err
	}
	if existing == 0 {
		for i := range seed.Rules {
			if err := repos.Rules.Save(ctx, &seed.Rules[i]); err != nil {
				return nil, fmt.Errorf("failed to seed rule %s: %w", seed.Rules[i].ID, err)
			}
			result.Rules++
		}
	}

	for _, ls := range seed.Locations {
		found, err := repos.Locations.FindByCode(ctx, ls.Code)
		if err != nil {
			return nil, err
		}
		if found != nil {
			continue
		}
		loc, err := domain.NewLocation(ls.Code, ls.Zone, ls.Type, ls.MaxPallets, ls.Sequence)
		if err != nil {
			return nil, fmt.Errorf("location %s: %w", ls.Code, err)
		}
		if err := repos.Locations.Save(ctx, loc); err != nil {
			return nil, fmt.Errorf("failed to seed location %s: %w", ls.Code, err)
		}
		result.Locations++
	}

	for _, cs := range seed.SkuConfigs {
		found, err := repos.SkuConfigs.FindBySKU(ctx, cs.SKU)
		if err != nil {
			return nil, err
		}
		if found != nil {
			continue
		}
		config := &domain.SkuStorageConfig{
			SKU:           cs.SKU,
			PreferredZone: cs.PreferredZone,
			VelocityClass: cs.VelocityClass,
			Category:      cs.Category,
		}
		if err := repos.SkuConfigs.Save(ctx, config); err != nil {
			return nil, fmt.Errorf("failed to seed sku config %s: %w", cs.SKU, err)
		}
		result.SkuConfigs++
	}

	logger.Info("Applied master data seed",
		"rules", result.Rules,
		"locations", result.Locations,
		"skuConfigs", result.SkuConfigs,
	)
	return result, nil
}
