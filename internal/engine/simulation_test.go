package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/adaptation-sim/internal/params"
)

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(params.Defaults(), params.DefaultScenarios())
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("Quantum Mode")
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestResolveShapes(t *testing.T) {
	p := params.Defaults()

	fixed := Fixed([]DecisionVars{{Year: 2026, PlantingTreesAmount: 1}, {Year: 2030, PlantingTreesAmount: 2}})
	assert.Equal(t, 2.0, fixed.Resolve(2026, p).PlantingTreesAmount)
	assert.Equal(t, 2.0, fixed.Resolve(2099, p).PlantingTreesAmount)
	assert.Equal(t, DecisionVars{}, Fixed(nil).Resolve(2040, p))

	single := Single(DecisionVars{Year: 2040, HouseMigrationAmount: 5})
	assert.Equal(t, 5.0, single.Resolve(2077, p).HouseMigrationAmount)

	table := DecadeTable([]DecisionVars{
		{Year: 2026, DamLeveeConstructionCost: 1},
		{Year: 2036, DamLeveeConstructionCost: 2},
	}, p)
	assert.Equal(t, 1.0, table.Resolve(2035, p).DamLeveeConstructionCost)
	assert.Equal(t, 2.0, table.Resolve(2036, p).DamLeveeConstructionCost)
	assert.Equal(t, DecisionVars{}, table.Resolve(2046, p), "missing decade applies nothing")

	offset := DecadeTable([]DecisionVars{{Year: 2050, DamLeveeConstructionCost: 3}}, p)
	assert.Equal(t, 3.0, offset.Resolve(2046, p).DamLeveeConstructionCost)
	assert.Equal(t, 3.0, offset.Resolve(2055, p).DamLeveeConstructionCost)
	assert.Equal(t, DecisionVars{}, offset.Resolve(2056, p))
	assert.Equal(t, 2050, offset.FirstYear())

	latest := DecadeTable([]DecisionVars{{Year: 2027, PaddyDamConstructionCost: 1}, {Year: 2030, PaddyDamConstructionCost: 2}}, p)
	assert.Equal(t, 2.0, latest.Resolve(2026, p).PaddyDamConstructionCost, "last row in a decade wins")

	assert.Equal(t, 2026, DecadeYear(2026, p))
	assert.Equal(t, 2096, DecadeYear(2100, p))
	assert.Equal(t, 2016, DecadeYear(2025, p))
}

func TestScenarioSelection(t *testing.T) {
	p := params.Defaults()
	rcp, ok := Fixed([]DecisionVars{{ClimateScenario: 2.6}, {ClimateScenario: 8.5}}).Scenario()
	assert.True(t, ok)
	assert.Equal(t, 2.6, rcp)

	rcp, ok = DecadeTable([]DecisionVars{{Year: 2036, ClimateScenario: 6.0}, {Year: 2026, ClimateScenario: 1.9}}, p).Scenario()
	assert.True(t, ok)
	assert.Equal(t, 1.9, rcp)

	_, ok = Fixed(nil).Scenario()
	assert.False(t, ok)
}

func TestEnsembleProducesKTimesY(t *testing.T) {
	o := newTestOrchestrator()
	o.Workers = 2
	req := Request{
		Mode:           ModeEnsemble,
		NumSimulations: 4,
		Seed:           99,
		Decisions:      Fixed([]DecisionVars{{Year: 2026, ClimateScenario: 4.5, PlantingTreesAmount: 10}}),
	}

	var streamed int
	res, err := o.Run(context.Background(), req, RecordSinkFunc(func(Record) error {
		streamed++
		return nil
	}))
	require.NoError(t, err)

	years := o.Params.TotalYears()
	require.Len(t, res.Records, 4*years)
	assert.Equal(t, 4*years, streamed)
	assert.Equal(t, uint64(99), res.Seed)
	assert.Equal(t, 4.5, res.RCP)

	for i, rec := range res.Records {
		require.NotNil(t, rec.Simulation)
		assert.Equal(t, i/years, *rec.Simulation)
		assert.Equal(t, o.Params.StartYear+i%years, rec.Year)
	}
}

func TestEnsembleSinkSeesRunsInOrder(t *testing.T) {
	o := newTestOrchestrator()
	o.Workers = 3
	years := o.Params.TotalYears()

	var got []Record
	res, err := o.Run(context.Background(), Request{Mode: ModeEnsemble, NumSimulations: 6, Seed: 12}, RecordSinkFunc(func(r Record) error {
		got = append(got, r)
		return nil
	}))
	require.NoError(t, err)
	require.Len(t, got, 6*years)
	assert.Equal(t, res.Records, got)
}

func TestEnsembleStopsOnSinkError(t *testing.T) {
	o := newTestOrchestrator()
	o.Workers = 1

	full := errors.New("archive full")
	var calls int
	_, err := o.Run(context.Background(), Request{Mode: ModeEnsemble, NumSimulations: 50, Seed: 2}, RecordSinkFunc(func(Record) error {
		calls++
		if calls == 10 {
			return full
		}
		return nil
	}))
	require.ErrorIs(t, err, full)
	assert.Equal(t, 10, calls, "no records after the failing one")
}

func TestEnsembleReproducibleAcrossWorkerCounts(t *testing.T) {
	req := Request{Mode: ModeEnsemble, NumSimulations: 3, Seed: 7}

	one := newTestOrchestrator()
	one.Workers = 1
	many := newTestOrchestrator()
	many.Workers = 8

	a, err := one.Run(context.Background(), req, nil)
	require.NoError(t, err)
	b, err := many.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Records, b.Records)

	// Runs draw independently.
	years := one.Params.TotalYears()
	assert.NotEqual(t, a.Records[0].Temperature, a.Records[years].Temperature)
}

func TestEnsembleHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestOrchestrator().Run(ctx, Request{Mode: ModeEnsemble, NumSimulations: 5, Seed: 1}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPredictConcreteScenario(t *testing.T) {
	water, crop := 1000.0, 100.0
	req := Request{
		Mode:      ModePredict,
		Year:      2026,
		Seed:      2026,
		Initial:   InitialValues{AvailableWater: &water, CropYield: &crop},
		Decisions: DecadeTable([]DecisionVars{{Year: 2026, ClimateScenario: 4.5}}, params.Defaults()),
	}
	res, err := newTestOrchestrator().Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 75)

	for _, rec := range res.Records[:2] {
		assert.Equal(t, 0.0, rec.MunicipalCost, "year %d", rec.Year)
		assert.GreaterOrEqual(t, rec.FloodDamage, 0.0)
		assert.Nil(t, rec.Simulation)
	}
	assert.Equal(t, 2026, res.Records[0].Year)
	assert.Equal(t, 2100, res.Records[74].Year)
}

func TestPredictAppliesOffBoundaryDecision(t *testing.T) {
	p := params.Defaults()
	req := Request{
		Mode: ModePredict,
		Year: 2050,
		Seed: 5,
		Decisions: DecadeTable([]DecisionVars{
			{Year: 2050, DamLeveeConstructionCost: 1, PlantingTreesAmount: 10, ClimateScenario: 4.5},
		}, p),
	}
	res, err := newTestOrchestrator().Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 51)

	levee := municipalCost(DecisionVars{DamLeveeConstructionCost: 1, PlantingTreesAmount: 10}, p)
	require.Positive(t, levee)
	for _, rec := range res.Records {
		want := 0.0
		if rec.Year <= 2055 {
			want = levee
		}
		assert.Equal(t, want, rec.MunicipalCost, "year %d", rec.Year)
	}
}

func TestPredictStartsMidHorizon(t *testing.T) {
	res, err := newTestOrchestrator().Run(context.Background(), Request{Mode: ModePredict, Year: 2090, Seed: 1}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Records, 11)

	_, err = newTestOrchestrator().Run(context.Background(), Request{Mode: ModePredict, Year: 2101, Seed: 1}, nil)
	require.ErrorIs(t, err, ErrYearOutOfRange)
}

func TestSequentialStepsOneYear(t *testing.T) {
	o := newTestOrchestrator()
	dv := DecisionVars{Year: 2040, DamLeveeConstructionCost: 1, ClimateScenario: 2.6}
	res, err := o.Run(context.Background(), Request{Mode: ModeSequential, Year: 2040, Seed: 3, Decisions: Single(dv)}, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 2040, res.Records[0].Year)
	assert.Equal(t, 1e8, res.Records[0].MunicipalCost)
	assert.Equal(t, 1.0, res.Final.LeveeInvestmentTotal)
	assert.Equal(t, 0.0, res.Final.LeveeLevel)

	// The returned state resumes the next year.
	next := res.Final.Values()
	res2, err := o.Run(context.Background(), Request{Mode: ModeSequential, Year: 2041, Seed: 3, Initial: next, Decisions: Single(DecisionVars{Year: 2041})}, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Final.LeveeInvestmentTotal, res2.Final.LeveeInvestmentTotal)

	_, err = o.Run(context.Background(), Request{Mode: ModeSequential, Year: 2020, Seed: 3}, nil)
	require.ErrorIs(t, err, ErrYearOutOfRange)
}

func TestRecordModeIsNotSimulated(t *testing.T) {
	_, err := newTestOrchestrator().Run(context.Background(), Request{Mode: ModeRecord}, nil)
	require.ErrorIs(t, err, ErrNotSimulated)

	_, err = newTestOrchestrator().Run(context.Background(), Request{Mode: "nope"}, nil)
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestSinkErrorStopsRun(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := newTestOrchestrator().Run(context.Background(), Request{Mode: ModePredict, Year: 2026, Seed: 1},
		RecordSinkFunc(func(Record) error {
			calls++
			if calls == 3 {
				return boom
			}
			return nil
		}))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}
