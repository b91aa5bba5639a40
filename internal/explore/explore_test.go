package explore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/params"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Policies = 6
	cfg.Seed = 42
	return cfg
}

func TestGenerateIsDeterministic(t *testing.T) {
	p := params.Defaults()
	a := Generate(testConfig(), p)
	b := Generate(testConfig(), p)
	assert.Equal(t, a, b)

	other := testConfig()
	other.Seed = 43
	assert.NotEqual(t, a, Generate(other, p))
}

func TestGenerateCoversEveryDecadeWithinBounds(t *testing.T) {
	p := params.Defaults()
	policies := Generate(testConfig(), p)
	require.Len(t, policies, 6)

	for _, pol := range policies {
		require.Len(t, pol.Decisions, 8)
		for d, dv := range pol.Decisions {
			assert.Equal(t, 2026+10*d, dv.Year)
			assert.Equal(t, 4.5, dv.ClimateScenario)

			values := map[string]float64{
				"planting_trees_amount":       dv.PlantingTreesAmount,
				"house_migration_amount":      dv.HouseMigrationAmount,
				"dam_levee_construction_cost": dv.DamLeveeConstructionCost,
				"paddy_dam_construction_cost": dv.PaddyDamConstructionCost,
				"capacity_building_cost":      dv.CapacityBuildingCost,
				"transportation_invest":       dv.TransportationInvest,
				"agricultural_RnD_cost":       dv.AgriculturalRnDCost,
			}
			for _, lever := range Levers {
				v := values[lever.Name]
				assert.GreaterOrEqual(t, v, 0.0, lever.Name)
				assert.LessOrEqual(t, v, lever.Max, lever.Name)
			}
		}
	}

	// Every decade of the horizon resolves to a row.
	table := engine.DecadeTable(policies[0].Decisions, p)
	for _, year := range p.Years(p.StartYear) {
		assert.Equal(t, engine.DecadeYear(year, p), table.Resolve(year, p).Year, "year %d", year)
	}
}

func TestSweepRanksBestFirst(t *testing.T) {
	o := engine.NewOrchestrator(params.Defaults(), params.DefaultScenarios())
	o.Workers = 3

	outcomes, err := Sweep(context.Background(), o, testConfig())
	require.NoError(t, err)
	require.Len(t, outcomes, 6)

	seen := map[int]bool{}
	for i, out := range outcomes {
		seen[out.Policy.ID] = true
		require.Len(t, out.Blocks, 3)
		assert.Equal(t, meanTotal(out.Blocks), out.Score)
		if i > 0 {
			assert.GreaterOrEqual(t, outcomes[i-1].Score, out.Score)
		}
	}
	assert.Len(t, seen, 6)

	again, err := Sweep(context.Background(), o, testConfig())
	require.NoError(t, err)
	assert.Equal(t, outcomes, again)
}

func TestSweepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Sweep(ctx, engine.NewOrchestrator(params.Defaults(), params.DefaultScenarios()), testConfig())
	require.ErrorIs(t, err, context.Canceled)
}
