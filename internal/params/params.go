// Package params holds the coefficient set that drives a simulation run and
// the RCP climate-scenario overrides that patch it before a run starts.
package params

// UnitCosts converts each spend decision into municipal currency.
type UnitCosts struct {
	Levee            float64 `yaml:"levee" json:"levee"`
	RnD              float64 `yaml:"rnd" json:"rnd"`
	PaddyDam         float64 `yaml:"paddy_dam" json:"paddy_dam"`
	CapacityBuilding float64 `yaml:"capacity_building" json:"capacity_building"`
	Transportation   float64 `yaml:"transportation" json:"transportation"`
}

// Set is the full coefficient bundle for one run. It is a value type:
// copies are independent, so a run may patch its own copy freely.
type Set struct {
	StartYear int `yaml:"start_year" json:"start_year"`
	EndYear   int `yaml:"end_year" json:"end_year"`

	// Terrain.
	TotalArea      float64 `yaml:"total_area" json:"total_area"`
	PaddyFieldArea float64 `yaml:"paddy_field_area" json:"paddy_field_area"`

	// Temperature, precipitation, hot days.
	BaseTemp                      float64 `yaml:"base_temp" json:"base_temp"`
	TempTrend                     float64 `yaml:"temp_trend" json:"temp_trend"`
	TempUncertainty               float64 `yaml:"temp_uncertainty" json:"temp_uncertainty"`
	BasePrecip                    float64 `yaml:"base_precip" json:"base_precip"`
	PrecipTrend                   float64 `yaml:"precip_trend" json:"precip_trend"`
	BasePrecipUncertainty         float64 `yaml:"base_precip_uncertainty" json:"base_precip_uncertainty"`
	PrecipUncertaintyTrend        float64 `yaml:"precip_uncertainty_trend" json:"precip_uncertainty_trend"`
	BaseExtremePrecipFreq         float64 `yaml:"base_extreme_precip_freq" json:"base_extreme_precip_freq"`
	ExtremePrecipFreqTrend        float64 `yaml:"extreme_precip_freq_trend" json:"extreme_precip_freq_trend"`
	ExtremePrecipIntensityTrend   float64 `yaml:"extreme_precip_intensity_trend" json:"extreme_precip_intensity_trend"`
	ExtremePrecipUncertaintyTrend float64 `yaml:"extreme_precip_uncertainty_trend" json:"extreme_precip_uncertainty_trend"`
	BaseMu                        float64 `yaml:"base_mu" json:"base_mu"`
	BaseBeta                      float64 `yaml:"base_beta" json:"base_beta"`
	InitialHotDays                float64 `yaml:"initial_hot_days" json:"initial_hot_days"`
	TempToHotDaysCoeff            float64 `yaml:"temp_to_hot_days_coeff" json:"temp_to_hot_days_coeff"`
	HotDaysUncertainty            float64 `yaml:"hot_days_uncertainty" json:"hot_days_uncertainty"`

	// Municipal water demand, mirrored by household growth.
	InitialMunicipalDemand     float64 `yaml:"initial_municipal_demand" json:"initial_municipal_demand"`
	MunicipalDemandTrend       float64 `yaml:"municipal_demand_trend" json:"municipal_demand_trend"`
	MunicipalDemandUncertainty float64 `yaml:"municipal_demand_uncertainty" json:"municipal_demand_uncertainty"`

	// Housing.
	HouseTotal       float64 `yaml:"house_total" json:"house_total"`
	CostPerMigration float64 `yaml:"cost_per_migration" json:"cost_per_migration"`

	// Water cycle.
	MaxAvailableWater                 float64 `yaml:"max_available_water" json:"max_available_water"`
	EvapotranspirationAmount          float64 `yaml:"evapotranspiration_amount" json:"evapotranspiration_amount"`
	EvapotranspirationTempSensitivity float64 `yaml:"evapotranspiration_temp_sensitivity" json:"evapotranspiration_temp_sensitivity"`
	EcosystemThreshold                float64 `yaml:"ecosystem_threshold" json:"ecosystem_threshold"`
	RunoffCoef                        float64 `yaml:"runoff_coef" json:"runoff_coef"`

	// Forest.
	CostPer1000Trees         float64 `yaml:"cost_per_1000trees" json:"cost_per_1000trees"`
	ForestDegradationRate    float64 `yaml:"forest_degradation_rate" json:"forest_degradation_rate"`
	TreeGrowupYear           int     `yaml:"tree_growup_year" json:"tree_growup_year"`
	InitialForestArea        float64 `yaml:"initial_forest_area" json:"initial_forest_area"`
	ForestFloodReductionCoef float64 `yaml:"forest_flood_reduction_coef" json:"forest_flood_reduction_coef"`
	ForestWaterRetentionCoef float64 `yaml:"forest_water_retention_coef" json:"forest_water_retention_coef"`
	ForestEcosystemBoostCoef float64 `yaml:"forest_ecosystem_boost_coef" json:"forest_ecosystem_boost_coef"`
	EcosystemBoostCap        float64 `yaml:"ecosystem_boost_cap" json:"ecosystem_boost_cap"`
	CO2AbsorptionPerHa       float64 `yaml:"co2_absorption_per_ha" json:"co2_absorption_per_ha"`

	// Agriculture.
	TempCoefficient            float64 `yaml:"temp_coefficient" json:"temp_coefficient"`
	MaxPotentialYield          float64 `yaml:"max_potential_yield" json:"max_potential_yield"`
	OptimalIrrigationAmount    float64 `yaml:"optimal_irrigation_amount" json:"optimal_irrigation_amount"`
	HighTempToleranceIncrement float64 `yaml:"high_temp_tolerance_increment" json:"high_temp_tolerance_increment"`
	NecessaryWaterForCrops     float64 `yaml:"necessary_water_for_crops" json:"necessary_water_for_crops"`
	PaddyDamCostPerHa          float64 `yaml:"paddy_dam_cost_per_ha" json:"paddy_dam_cost_per_ha"`
	PaddyDamYieldCoef          float64 `yaml:"paddy_dam_yield_coef" json:"paddy_dam_yield_coef"`
	RipeningTempOffset         float64 `yaml:"ripening_temp_offset" json:"ripening_temp_offset"`

	// Agricultural R&D.
	RnDInvestmentThreshold     float64 `yaml:"RnD_investment_threshold" json:"RnD_investment_threshold"`
	RnDInvestmentRequiredYears float64 `yaml:"RnD_investment_required_years" json:"RnD_investment_required_years"`
	TempThresholdCropIni       float64 `yaml:"temp_threshold_crop_ini" json:"temp_threshold_crop_ini"`
	TempCriticalCrop           float64 `yaml:"temp_critical_crop" json:"temp_critical_crop"`

	// Flood disasters.
	FloodDamageCoefficient       float64 `yaml:"flood_damage_coefficient" json:"flood_damage_coefficient"`
	LeveeLevelIncrement          float64 `yaml:"levee_level_increment" json:"levee_level_increment"`
	LeveeInvestmentThreshold     float64 `yaml:"levee_investment_threshold" json:"levee_investment_threshold"`
	LeveeInvestmentRequiredYears float64 `yaml:"levee_investment_required_years" json:"levee_investment_required_years"`
	FloodRecoveryCostCoef        float64 `yaml:"flood_recovery_cost_coef" json:"flood_recovery_cost_coef"`
	ThresholdNoiseRatio          float64 `yaml:"threshold_noise_ratio" json:"threshold_noise_ratio"`

	// Transportation (not yet coupled to any stage).
	TransportLevelCoef     float64 `yaml:"transport_level_coef" json:"transport_level_coef"`
	DistanceUrbanLevelCoef float64 `yaml:"distance_urban_level_coef" json:"distance_urban_level_coef"`

	// Resident awareness.
	CapacityBuildingCoefficient  float64 `yaml:"capacity_building_coefficient" json:"capacity_building_coefficient"`
	ResidentCapacityDegradeRatio float64 `yaml:"resident_capacity_degrade_ratio" json:"resident_capacity_degrade_ratio"`
	MaxResidentCapacity          float64 `yaml:"max_resident_capacity" json:"max_resident_capacity"`

	// Side effects of levees, floods, and drought.
	LeveeEcosystemDamageCoef float64 `yaml:"levee_ecosystem_damage_coef" json:"levee_ecosystem_damage_coef"`
	FloodCropDamageCoef      float64 `yaml:"flood_crop_damage_coef" json:"flood_crop_damage_coef"`
	FloodUrbanDamageCoef     float64 `yaml:"flood_urban_damage_coef" json:"flood_urban_damage_coef"`
	WaterEcosystemCoef       float64 `yaml:"water_ecosystem_coef" json:"water_ecosystem_coef"`
	WaterStressExponent      float64 `yaml:"water_stress_exponent" json:"water_stress_exponent"`
	PaddyDamFloodCoef        float64 `yaml:"paddy_dam_flood_coef" json:"paddy_dam_flood_coef"`

	UnitCosts UnitCosts `yaml:"unit_costs" json:"unit_costs"`
}

// Defaults returns the calibrated coefficient set for 2026–2100.
func Defaults() Set {
	return Set{
		StartYear: 2026,
		EndYear:   2100,

		TotalArea:      10000,
		PaddyFieldArea: 1000,

		BaseTemp:                      15.0,
		TempTrend:                     0.04,
		TempUncertainty:               0.5,
		BasePrecip:                    1700.0,
		PrecipTrend:                   0,
		BasePrecipUncertainty:         50,
		PrecipUncertaintyTrend:        5,
		BaseExtremePrecipFreq:         0.1,
		ExtremePrecipFreqTrend:        0.05,
		ExtremePrecipIntensityTrend:   0.2,
		ExtremePrecipUncertaintyTrend: 0.05,
		BaseMu:                        180,
		BaseBeta:                      20,
		InitialHotDays:                30.0,
		TempToHotDaysCoeff:            2.0,
		HotDaysUncertainty:            2.0,

		InitialMunicipalDemand:     100.0,
		MunicipalDemandTrend:       0,
		MunicipalDemandUncertainty: 0.01,

		HouseTotal:       15000,
		CostPerMigration: 1_000_000,

		MaxAvailableWater:                 3000.0,
		EvapotranspirationAmount:          300.0,
		EvapotranspirationTempSensitivity: 0.05,
		EcosystemThreshold:                800.0,
		RunoffCoef:                        0.55,

		CostPer1000Trees:         2_310_000,
		ForestDegradationRate:    0.01,
		TreeGrowupYear:           20,
		InitialForestArea:        0.0,
		ForestFloodReductionCoef: 0.4,
		ForestWaterRetentionCoef: 0.2,
		ForestEcosystemBoostCoef: 0.01,
		EcosystemBoostCap:        5.0,
		CO2AbsorptionPerHa:       5.0,

		TempCoefficient:            1.0,
		MaxPotentialYield:          5000.0,
		OptimalIrrigationAmount:    30.0,
		HighTempToleranceIncrement: 0.2,
		NecessaryWaterForCrops:     330, // m3/ha
		PaddyDamCostPerHa:          1.5,
		PaddyDamYieldCoef:          0.01,
		RipeningTempOffset:         10.0,

		RnDInvestmentThreshold:     5.0,
		RnDInvestmentRequiredYears: 5,
		TempThresholdCropIni:       26.0,
		TempCriticalCrop:           30.0,

		FloodDamageCoefficient:       100_000,
		LeveeLevelIncrement:          20.0,
		LeveeInvestmentThreshold:     2.0,
		LeveeInvestmentRequiredYears: 10,
		FloodRecoveryCostCoef:        0.001,
		ThresholdNoiseRatio:          0.1,

		TransportLevelCoef:     1.0,
		DistanceUrbanLevelCoef: 1.0,

		CapacityBuildingCoefficient:  0.01,
		ResidentCapacityDegradeRatio: 0.05,
		MaxResidentCapacity:          0.95,

		LeveeEcosystemDamageCoef: 0.0001,
		FloodCropDamageCoef:      0.00001,
		FloodUrbanDamageCoef:     0.000001,
		WaterEcosystemCoef:       0.01,
		WaterStressExponent:      1.3,
		PaddyDamFloodCoef:        10.0,

		UnitCosts: UnitCosts{
			Levee:            100_000_000,
			RnD:              10_000_000,
			PaddyDam:         1_000_000,
			CapacityBuilding: 1_000_000,
			Transportation:   10_000_000,
		},
	}
}

// TotalYears is the number of simulated years in the horizon, inclusive.
func (s Set) TotalYears() int {
	if s.EndYear < s.StartYear {
		return 0
	}
	return s.EndYear - s.StartYear + 1
}

// Years returns the ordered years from start through end_year.
// A start before the horizon is clamped to start_year.
func (s Set) Years(start int) []int {
	if start < s.StartYear {
		start = s.StartYear
	}
	if start > s.EndYear {
		return nil
	}
	years := make([]int, 0, s.EndYear-start+1)
	for y := start; y <= s.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// Elapsed returns the number of years since the horizon start.
func (s Set) Elapsed(year int) float64 {
	return float64(year - s.StartYear)
}
