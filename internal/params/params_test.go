package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsHorizon(t *testing.T) {
	p := Defaults()
	assert.Equal(t, 75, p.TotalYears())

	years := p.Years(2026)
	require.Len(t, years, 75)
	assert.Equal(t, 2026, years[0])
	assert.Equal(t, 2100, years[len(years)-1])

	assert.Equal(t, []int{2099, 2100}, p.Years(2099))
	assert.Len(t, p.Years(1990), 75, "start before horizon clamps to start_year")
	assert.Nil(t, p.Years(2101))
	require.NoError(t, p.Validate())
}

func TestWithScenario(t *testing.T) {
	p := Defaults()
	sc := DefaultScenarios()

	hot := p.WithScenario(sc, 8.5)
	assert.Equal(t, 0.06, hot.TempTrend)
	assert.Equal(t, 1.5, hot.ExtremePrecipIntensityTrend)
	assert.Equal(t, 0.0, hot.PrecipUncertaintyTrend)
	assert.Equal(t, 0.04, p.TempTrend, "base set must not be patched")

	same := p.WithScenario(sc, 3.3)
	assert.Equal(t, p, same, "unknown code falls back to an empty override")

	assert.Equal(t, []float64{1.9, 2.6, 4.5, 6.0, 8.5}, sc.Codes())
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
params:
  temp_trend: 0.05
  tree_growup_year: 15
  unit_costs:
    levee: 5
scenarios:
  4.5:
    temp_trend: 0.03
`), 0o644))

	p, sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, p.TempTrend)
	assert.Equal(t, 15, p.TreeGrowupYear)
	assert.Equal(t, 5.0, p.UnitCosts.Levee)
	assert.Equal(t, 10_000_000.0, p.UnitCosts.RnD, "untouched keys keep defaults")
	assert.Equal(t, 1700.0, p.BasePrecip)

	require.Len(t, sc, 1)
	patched := p.WithScenario(sc, 4.5)
	assert.Equal(t, 0.03, patched.TempTrend)
	assert.Equal(t, p.ExtremePrecipFreqTrend, patched.ExtremePrecipFreqTrend)
}

func TestLoadRejectsBadHorizon(t *testing.T) {
	_, _, err := Parse([]byte("params:\n  start_year: 2100\n  end_year: 2026\n"))
	require.Error(t, err)

	_, _, err = Parse([]byte("params:\n  house_total: 0\n"))
	require.Error(t, err)

	p, sc, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)
	assert.Len(t, sc, 5)
}
