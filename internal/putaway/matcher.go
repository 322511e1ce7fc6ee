package putaway

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/pkg/logging"
)

// ErrNoLocation is returned when no active rule yields a location for a pallet
var ErrNoLocation = errors.New("no putaway location found")

// Decision is the outcome of a successful match
type Decision struct {
	Location *domain.Location
	RuleID   string
	RuleName string
	Strategy domain.StrategyKind
}

// Matcher walks the putaway rules in priority order and asks each matching rule's strategy for a location
type Matcher struct {
	rules     domain.PutawayRuleRepository
	inventory Inventory
	logger    *logging.Logger
}

// NewMatcher creates a rule matcher
func NewMatcher(rules domain.PutawayRuleRepository, inventory Inventory, logger *logging.Logger) *Matcher {
	return &Matcher{
		rules:     rules,
		inventory: inventory,
		logger:    logger.WithComponent("putaway-matcher"),
	}
}

// Locate finds a location for pallet. Rules are tried by ascending priority; a rule whose
// strategy finds nothing falls through to the next matching rule.
func (m *Matcher) Locate(ctx context.Context, pallet *domain.Pallet, pc PlacementContext) (*Decision, error) {
	rules, err := m.rules.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load putaway rules: %w", err)
	}

	for _, rule := range orderedActive(rules) {
		if !rule.Matches(pc.PreferredZone, pc.VelocityClass, pc.SKUCategory) {
			continue
		}

		strategy, ok := strategies[rule.Strategy]
		if !ok {
			m.logger.Warn("Skipping rule with unknown strategy", "ruleId", rule.ID, "strategy", rule.Strategy)
			continue
		}

		loc, err := strategy(ctx, m.inventory, rule, pc)
		if err != nil {
			return nil, fmt.Errorf("strategy %s of rule %s failed: %w", rule.Strategy, rule.ID, err)
		}
		if loc == nil {
			m.logger.Debug("Rule found no location, trying next",
				"ruleId", rule.ID,
				"strategy", rule.Strategy,
				"palletCode", pallet.Code,
			)
			continue
		}

		return &Decision{
			Location: loc,
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Strategy: rule.Strategy,
		}, nil
	}

	return nil, fmt.Errorf("%w for pallet %s", ErrNoLocation, pallet.Code)
}

// orderedActive keeps active rules sorted by (Priority, CreatedAt, ID)
func orderedActive(rules []*domain.PutawayRule) []*domain.PutawayRule {
	active := make([]*domain.PutawayRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return active
}
