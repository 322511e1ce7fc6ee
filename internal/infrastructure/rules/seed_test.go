package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/internal/infrastructure/memory"
	"github.com/wms-platform/inbound-service/pkg/logging"
)

func TestDefaultSeedParses(t *testing.T) {
	seed, err := Load("")
	require.NoError(t, err)
	require.Len(t, seed.Rules, 3)
	assert.Equal(t, domain.StrategyConsolidation, seed.Rules[1].Strategy)
	assert.True(t, seed.Rules[0].Active)
	assert.True(t, seed.Rules[0].CreatedAt.Before(seed.Rules[1].CreatedAt))
	assert.NotEmpty(t, seed.Locations)
}

func TestParseRejectsUnknownStrategy(t *testing.T) {
	_, err := Parse([]byte("rules:\n  - id: r1\n    name: bad\n    priority: 1\n    strategy: RANDOM\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidStrategy)

	_, err = Parse([]byte("rules:\n  - name: no id\n    strategy: CLOSEST_AVAILABLE\n"))
	assert.Error(t, err)
}

func TestApplyOnlySeedsEmptyRuleStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	repos := Repositories{Rules: store.PutawayRules(), Locations: store.Locations(), SkuConfigs: store.SkuConfigs()}

	seed, err := Parse([]byte(`
rules:
  - id: r1
    name: first
    priority: 1
    strategy: CLOSEST_AVAILABLE
locations:
  - code: A-01
    zone: A
    type: STORAGE
    maxPallets: 1
skuConfigs:
  - sku: SKU-001
    preferredZone: A
`))
	require.NoError(t, err)

	result, err := Apply(ctx, seed, repos, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, &Result{Rules: 1, Locations: 1, SkuConfigs: 1}, result)

	again, err := Apply(ctx, seed, repos, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, &Result{}, again)

	n, err := store.PutawayRules().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
