package engine

import (
	"errors"

	"github.com/talgya/adaptation-sim/internal/params"
)

// ErrNoHouses is returned when an initial state has no houses at all;
// migration ratios and per-house burdens are undefined for it.
var ErrNoHouses = errors.New("total house count is zero")

// PlantingHistory records the amount planted each year of the horizon.
// It is indexed by offset from the horizon start, so a lookup for a year
// before the start (or after the end) reads as zero.
type PlantingHistory struct {
	start    int
	amounts  []float64
	recorded []bool
}

// NewPlantingHistory sizes a history to the horizon of p.
func NewPlantingHistory(p params.Set) PlantingHistory {
	n := p.TotalYears()
	return PlantingHistory{
		start:    p.StartYear,
		amounts:  make([]float64, n),
		recorded: make([]bool, n),
	}
}

func (h PlantingHistory) index(year int) (int, bool) {
	i := year - h.start
	return i, i >= 0 && i < len(h.amounts)
}

// At returns the amount planted in year, or 0 if none was recorded.
func (h PlantingHistory) At(year int) float64 {
	if i, ok := h.index(year); ok {
		return h.amounts[i]
	}
	return 0
}

// With returns a copy of h with amount recorded for year. Years outside
// the horizon are dropped.
func (h PlantingHistory) With(year int, amount float64) PlantingHistory {
	next := PlantingHistory{
		start:    h.start,
		amounts:  append([]float64(nil), h.amounts...),
		recorded: append([]bool(nil), h.recorded...),
	}
	if i, ok := next.index(year); ok {
		next.amounts[i] = amount
		next.recorded[i] = true
	}
	return next
}

// Map returns the recorded years and amounts.
func (h PlantingHistory) Map() map[int]float64 {
	out := make(map[int]float64)
	for i, ok := range h.recorded {
		if ok {
			out[h.start+i] = h.amounts[i]
		}
	}
	return out
}

// State is the simulation state threaded from one year to the next.
type State struct {
	// Climate.
	Temperature       float64
	Precipitation     float64
	HotDays           float64
	ExtremePrecipFreq float64

	// Hydrology.
	MunicipalDemand float64
	AvailableWater  float64

	// Forestry.
	ForestArea float64
	Planting   PlantingHistory

	// Agriculture.
	CropYield          float64
	PaddyDamArea       float64
	HighTempTolerance  float64
	RnDInvestmentTotal float64
	TempThresholdCrop  float64

	// Flood defence.
	LeveeLevel           float64
	LeveeInvestmentTotal float64

	// Housing.
	RiskyHouses    float64
	NonRiskyHouses float64

	// Social and fiscal.
	ResidentCapacity    float64
	UrbanLevel          float64
	ResidentBurden      float64
	EcosystemLevel      float64
	TransportationLevel float64
}

// TotalHouses returns the combined house count.
func (s State) TotalHouses() float64 {
	return s.RiskyHouses + s.NonRiskyHouses
}

// InitialValues is a partial state as supplied by a caller. Nil fields
// take parameter-derived defaults. Field names follow the wire format of
// the sequential-mode state record.
type InitialValues struct {
	Temp                   *float64        `json:"temp,omitempty" yaml:"temp,omitempty"`
	Precip                 *float64        `json:"precip,omitempty" yaml:"precip,omitempty"`
	MunicipalDemand        *float64        `json:"municipal_demand,omitempty" yaml:"municipal_demand,omitempty"`
	AvailableWater         *float64        `json:"available_water,omitempty" yaml:"available_water,omitempty"`
	CropYield              *float64        `json:"crop_yield,omitempty" yaml:"crop_yield,omitempty"`
	HotDays                *float64        `json:"hot_days,omitempty" yaml:"hot_days,omitempty"`
	ExtremePrecipFreq      *float64        `json:"extreme_precip_freq,omitempty" yaml:"extreme_precip_freq,omitempty"`
	EcosystemLevel         *float64        `json:"ecosystem_level,omitempty" yaml:"ecosystem_level,omitempty"`
	LeveeLevel             *float64        `json:"levee_level,omitempty" yaml:"levee_level,omitempty"`
	HighTempToleranceLevel *float64        `json:"high_temp_tolerance_level,omitempty" yaml:"high_temp_tolerance_level,omitempty"`
	ForestArea             *float64        `json:"forest_area,omitempty" yaml:"forest_area,omitempty"`
	PlantingHistory        map[int]float64 `json:"planting_history,omitempty" yaml:"planting_history,omitempty"`
	UrbanLevel             *float64        `json:"urban_level,omitempty" yaml:"urban_level,omitempty"`
	ResidentCapacity       *float64        `json:"resident_capacity,omitempty" yaml:"resident_capacity,omitempty"`
	TransportationLevel    *float64        `json:"transportation_level,omitempty" yaml:"transportation_level,omitempty"`
	LeveeInvestmentTotal   *float64        `json:"levee_investment_total,omitempty" yaml:"levee_investment_total,omitempty"`
	RnDInvestmentTotal     *float64        `json:"RnD_investment_total,omitempty" yaml:"RnD_investment_total,omitempty"`
	RiskyHouseTotal        *float64        `json:"risky_house_total,omitempty" yaml:"risky_house_total,omitempty"`
	NonRiskyHouseTotal     *float64        `json:"non_risky_house_total,omitempty" yaml:"non_risky_house_total,omitempty"`
	PaddyDamArea           *float64        `json:"paddy_dam_area,omitempty" yaml:"paddy_dam_area,omitempty"`
	ResidentBurden         *float64        `json:"resident_burden,omitempty" yaml:"resident_burden,omitempty"`
	BiodiversityLevel      *float64        `json:"biodiversity_level,omitempty" yaml:"biodiversity_level,omitempty"`
	TempThresholdCrop      *float64        `json:"temp_threshold_crop,omitempty" yaml:"temp_threshold_crop,omitempty"`
}

func or(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// State resolves the partial record into a full state for p.
func (iv InitialValues) State(p params.Set) (State, error) {
	s := State{
		Temperature:       or(iv.Temp, p.BaseTemp),
		Precipitation:     or(iv.Precip, p.BasePrecip),
		HotDays:           or(iv.HotDays, p.InitialHotDays),
		ExtremePrecipFreq: or(iv.ExtremePrecipFreq, p.BaseExtremePrecipFreq),

		MunicipalDemand: or(iv.MunicipalDemand, p.InitialMunicipalDemand),
		AvailableWater:  or(iv.AvailableWater, p.MaxAvailableWater),

		ForestArea: or(iv.ForestArea, p.InitialForestArea),
		Planting:   NewPlantingHistory(p),

		CropYield:          or(iv.CropYield, 0),
		PaddyDamArea:       or(iv.PaddyDamArea, 0),
		HighTempTolerance:  or(iv.HighTempToleranceLevel, 0),
		RnDInvestmentTotal: or(iv.RnDInvestmentTotal, 0),
		TempThresholdCrop:  or(iv.TempThresholdCrop, p.TempThresholdCropIni),

		LeveeLevel:           or(iv.LeveeLevel, 0),
		LeveeInvestmentTotal: or(iv.LeveeInvestmentTotal, 0),

		RiskyHouses:    or(iv.RiskyHouseTotal, p.HouseTotal),
		NonRiskyHouses: or(iv.NonRiskyHouseTotal, 0),

		ResidentCapacity:    or(iv.ResidentCapacity, 0),
		UrbanLevel:          or(iv.UrbanLevel, 100),
		ResidentBurden:      or(iv.ResidentBurden, 0),
		EcosystemLevel:      or(iv.EcosystemLevel, 100),
		TransportationLevel: or(iv.TransportationLevel, 0),
	}
	for year, amount := range iv.PlantingHistory {
		s.Planting = s.Planting.With(year, amount)
	}
	if s.TotalHouses() <= 0 {
		return State{}, ErrNoHouses
	}
	return s, nil
}

func ptr(v float64) *float64 { return &v }

// Values returns the full state as a wire record, so a driver can persist
// it and resume a later year from it.
func (s State) Values() InitialValues {
	return InitialValues{
		Temp:                   ptr(s.Temperature),
		Precip:                 ptr(s.Precipitation),
		MunicipalDemand:        ptr(s.MunicipalDemand),
		AvailableWater:         ptr(s.AvailableWater),
		CropYield:              ptr(s.CropYield),
		HotDays:                ptr(s.HotDays),
		ExtremePrecipFreq:      ptr(s.ExtremePrecipFreq),
		EcosystemLevel:         ptr(s.EcosystemLevel),
		LeveeLevel:             ptr(s.LeveeLevel),
		HighTempToleranceLevel: ptr(s.HighTempTolerance),
		ForestArea:             ptr(s.ForestArea),
		PlantingHistory:        s.Planting.Map(),
		UrbanLevel:             ptr(s.UrbanLevel),
		ResidentCapacity:       ptr(s.ResidentCapacity),
		TransportationLevel:    ptr(s.TransportationLevel),
		LeveeInvestmentTotal:   ptr(s.LeveeInvestmentTotal),
		RnDInvestmentTotal:     ptr(s.RnDInvestmentTotal),
		RiskyHouseTotal:        ptr(s.RiskyHouses),
		NonRiskyHouseTotal:     ptr(s.NonRiskyHouses),
		PaddyDamArea:           ptr(s.PaddyDamArea),
		ResidentBurden:         ptr(s.ResidentBurden),
		BiodiversityLevel:      ptr(s.EcosystemLevel),
		TempThresholdCrop:      ptr(s.TempThresholdCrop),
	}
}
