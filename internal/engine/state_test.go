package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/adaptation-sim/internal/params"
)

func TestInitialValuesDefaults(t *testing.T) {
	p := params.Defaults()
	s, err := InitialValues{}.State(p)
	require.NoError(t, err)

	assert.Equal(t, 100.0, s.EcosystemLevel)
	assert.Equal(t, 3000.0, s.AvailableWater)
	assert.Equal(t, 15000.0, s.RiskyHouses)
	assert.Equal(t, 0.0, s.NonRiskyHouses)
	assert.Equal(t, 100.0, s.UrbanLevel)
	assert.Equal(t, 100.0, s.MunicipalDemand)
	assert.Equal(t, 26.0, s.TempThresholdCrop)
	assert.Empty(t, s.Planting.Map())
}

func TestInitialValuesRejectsNoHouses(t *testing.T) {
	zero := 0.0
	_, err := InitialValues{RiskyHouseTotal: &zero}.State(params.Defaults())
	require.ErrorIs(t, err, ErrNoHouses)
}

func TestValuesRoundTrip(t *testing.T) {
	p := params.Defaults()
	s, err := InitialValues{}.State(p)
	require.NoError(t, err)
	s.Planting = s.Planting.With(2030, 40).With(2200, 1)
	s.LeveeLevel = 20

	raw, err := json.Marshal(s.Values())
	require.NoError(t, err)

	var iv InitialValues
	require.NoError(t, json.Unmarshal(raw, &iv))
	back, err := iv.State(p)
	require.NoError(t, err)

	assert.Equal(t, s, back)
	assert.Equal(t, map[int]float64{2030: 40}, back.Planting.Map(), "years outside the horizon are dropped")
}

func TestPartialInitialValues(t *testing.T) {
	var iv InitialValues
	require.NoError(t, json.Unmarshal([]byte(`{"available_water": 1000, "crop_yield": 100}`), &iv))
	s, err := iv.State(params.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, s.AvailableWater)
	assert.Equal(t, 100.0, s.CropYield)
	assert.Equal(t, 15000.0, s.RiskyHouses)
}
