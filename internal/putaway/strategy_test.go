package putaway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/inbound-service/internal/domain"
)

func TestClosestAvailableOrdersBySequenceThenID(t *testing.T) {
	inv := &stubInventory{locations: []*domain.Location{
		location("S-09", "A", 9, 1, domain.LocationStatusAvailable),
		location("S-03b", "A", 3, 1, domain.LocationStatusAvailable),
		location("S-03a", "A", 3, 1, domain.LocationStatusAvailable),
		location("S-01", "A", 1, 1, domain.LocationStatusBlocked),
	}}

	loc, err := closestAvailable(context.Background(), inv, rule("r", 1, "", domain.StrategyClosestAvailable), PlacementContext{})
	require.NoError(t, err)
	assert.Equal(t, "S-03a", loc.ID)
}

func TestClosestAvailableSkipsFullAndCurrentLocations(t *testing.T) {
	inv := &stubInventory{
		locations: []*domain.Location{
			location("S-01", "A", 1, 2, domain.LocationStatusAvailable),
			location("S-02", "A", 2, 1, domain.LocationStatusAvailable),
			location("S-03", "A", 3, 1, domain.LocationStatusAvailable),
		},
		occupancy: map[string]int{"S-01": 2},
	}

	loc, err := closestAvailable(context.Background(), inv, rule("r", 1, "", domain.StrategyClosestAvailable), PlacementContext{CurrentLocationID: "S-02"})
	require.NoError(t, err)
	assert.Equal(t, "S-03", loc.ID)
}

func TestClosestAvailableRestrictsToPreferredZones(t *testing.T) {
	inv := &stubInventory{locations: []*domain.Location{
		location("A-01", "A", 1, 1, domain.LocationStatusAvailable),
		location("B-01", "B", 2, 1, domain.LocationStatusAvailable),
	}}

	loc, err := closestAvailable(context.Background(), inv, rule("r", 1, "", domain.StrategyClosestAvailable), PlacementContext{PreferredZone: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B-01", loc.ID)
}

func TestConsolidationPrefersLocationsHoldingSKU(t *testing.T) {
	inv := &stubInventory{
		locations: []*domain.Location{
			location("A-01", "A", 1, 1, domain.LocationStatusAvailable),
			location("C-02", "C", 9, 3, domain.LocationStatusOccupied),
			location("C-01", "C", 8, 1, domain.LocationStatusOccupied),
		},
		occupancy: map[string]int{"C-01": 1, "C-02": 1},
		holding:   map[string][]string{"SKU-001": {"C-02", "C-01"}},
	}

	loc, err := consolidation(context.Background(), inv, rule("r", 1, "", domain.StrategyConsolidation), PlacementContext{SKU: "SKU-001"})
	require.NoError(t, err)
	assert.Equal(t, "C-02", loc.ID, "C-01 holds the SKU but is full")
}

func TestConsolidationFallsBackToClosestAvailable(t *testing.T) {
	inv := &stubInventory{
		locations: []*domain.Location{
			location("A-01", "A", 1, 1, domain.LocationStatusAvailable),
			location("C-01", "C", 8, 1, domain.LocationStatusOccupied),
		},
		occupancy: map[string]int{"C-01": 1},
		holding:   map[string][]string{"SKU-001": {"C-01"}},
	}

	loc, err := consolidation(context.Background(), inv, rule("r", 1, "", domain.StrategyConsolidation), PlacementContext{SKU: "SKU-001"})
	require.NoError(t, err)
	assert.Equal(t, "A-01", loc.ID)
}

func TestPlaceholderStrategiesDelegateToClosestAvailable(t *testing.T) {
	inv := &stubInventory{locations: []*domain.Location{
		location("S-02", "A", 2, 1, domain.LocationStatusAvailable),
		location("S-01", "A", 1, 1, domain.LocationStatusAvailable),
	}}

	for _, kind := range []domain.StrategyKind{domain.StrategyABCVelocity, domain.StrategyFIFODirected} {
		loc, err := strategies[kind](context.Background(), inv, rule("r", 1, "", kind), PlacementContext{})
		require.NoError(t, err)
		assert.Equal(t, "S-01", loc.ID, kind)
	}
}

func TestStrategyTableCoversEveryKind(t *testing.T) {
	for _, kind := range []domain.StrategyKind{
		domain.StrategyClosestAvailable, domain.StrategyABCVelocity,
		domain.StrategyConsolidation, domain.StrategyFIFODirected,
	} {
		assert.Contains(t, strategies, kind)
	}
}
