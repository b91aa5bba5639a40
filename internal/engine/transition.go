package engine

import (
	"math"

	"github.com/talgya/adaptation-sim/internal/entropy"
	"github.com/talgya/adaptation-sim/internal/params"
)

// climate is the stochastic forcing drawn at the start of a year.
type climate struct {
	temp         float64
	precip       float64
	hotDays      float64
	extremeFreq  float64
	rainEvents   []float64
	demandGrowth float64
}

func drawClimate(year int, p params.Set, rng *entropy.Stream) climate {
	dt := p.Elapsed(year)

	var c climate
	c.temp = p.BaseTemp + p.TempTrend*dt + rng.Normal(0, p.TempUncertainty)
	precipSigma := p.BasePrecipUncertainty + p.PrecipUncertaintyTrend*dt
	c.precip = math.Max(0, p.BasePrecip+p.PrecipTrend*dt+rng.Normal(0, precipSigma))
	c.hotDays = p.InitialHotDays + (c.temp-p.BaseTemp)*p.TempToHotDaysCoeff + rng.Normal(0, p.HotDaysUncertainty)
	c.hotDays = math.Max(c.hotDays, 0)

	c.extremeFreq = math.Max(p.BaseExtremePrecipFreq+p.ExtremePrecipFreqTrend*dt, 0)
	events := rng.Poisson(c.extremeFreq)
	// Location and scale both drift with the intensity trend.
	mu := math.Max(p.BaseMu+p.ExtremePrecipIntensityTrend*dt, 0)
	beta := math.Max(p.BaseBeta+p.ExtremePrecipIntensityTrend*dt, 0)
	c.rainEvents = rng.Gumbel(mu, beta, events)

	c.demandGrowth = p.MunicipalDemandTrend + rng.Normal(0, p.MunicipalDemandUncertainty)
	return c
}

// noisyThreshold draws the cumulative spend needed to trigger a step.
func noisyThreshold(perYear, years float64, p params.Set, rng *entropy.Stream) float64 {
	return rng.Normal(perYear*years, perYear*p.ThresholdNoiseRatio)
}

// Step advances prev by one year under dv. It never fails: every
// quantity is clamped into its valid range instead.
func Step(year int, prev State, dv DecisionVars, p params.Set, rng *entropy.Stream) (State, Record) {
	c := drawClimate(year, p, rng)
	next := prev

	next.Temperature = c.temp
	next.Precipitation = c.precip
	next.HotDays = c.hotDays
	next.ExtremePrecipFreq = c.extremeFreq
	next.MunicipalDemand = prev.MunicipalDemand * (1 + c.demandGrowth)

	// Forestry: trees mature a fixed number of years after planting.
	next.Planting = prev.Planting.With(year, dv.PlantingTreesAmount)
	matured := next.Planting.At(year - p.TreeGrowupYear)
	naturalLoss := prev.ForestArea * p.ForestDegradationRate
	next.ForestArea = math.Max(prev.ForestArea+matured-naturalLoss, 0)

	forestShare := next.ForestArea / p.TotalArea
	floodReduction := p.ForestFloodReductionCoef * forestShare
	retention := p.ForestWaterRetentionCoef * forestShare
	ecosystemBoost := math.Min(next.ForestArea*p.ForestEcosystemBoostCoef, p.EcosystemBoostCap)

	// Water balance.
	evap := p.EvapotranspirationAmount * (1 + (c.temp-p.BaseTemp)*p.EvapotranspirationTempSensitivity)
	water := prev.AvailableWater + c.precip - evap - next.MunicipalDemand - p.RunoffCoef*c.precip + retention*c.precip
	next.AvailableWater = clamp(water, 0, p.MaxAvailableWater)

	// Agriculture.
	ripening := c.temp + p.RipeningTempOffset
	excess := math.Max(ripening-(p.TempThresholdCropIni+prev.HighTempTolerance), 0)
	heatStress := math.Min(excess/(p.TempCriticalCrop-p.TempThresholdCropIni), 1)
	next.PaddyDamArea = prev.PaddyDamArea + dv.PaddyDamConstructionCost/p.PaddyDamCostPerHa
	paddyShare := math.Min(next.PaddyDamArea/p.PaddyFieldArea, 1)
	paddyYieldImpact := p.PaddyDamYieldCoef * paddyShare
	waterShare := math.Min(next.AvailableWater/p.NecessaryWaterForCrops, 1)
	next.CropYield = p.MaxPotentialYield * (1 - heatStress) * waterShare * (1 - paddyYieldImpact)

	// Irrigation is a second draw on the same year's water.
	next.AvailableWater = math.Max(next.AvailableWater-p.NecessaryWaterForCrops, 0)

	// R&D resets its counter when it pays out.
	next.RnDInvestmentTotal = prev.RnDInvestmentTotal + dv.AgriculturalRnDCost
	if next.RnDInvestmentTotal >= noisyThreshold(p.RnDInvestmentThreshold, p.RnDInvestmentRequiredYears, p, rng) {
		next.HighTempTolerance = prev.HighTempTolerance + p.HighTempToleranceIncrement
		next.RnDInvestmentTotal = 0
	}

	// Migration. Growth and the ratio both use last year's house total.
	totalHouses := prev.TotalHouses()
	next.RiskyHouses = math.Max(prev.RiskyHouses-dv.HouseMigrationAmount+totalHouses*c.demandGrowth, 0)
	next.NonRiskyHouses = prev.NonRiskyHouses + dv.HouseMigrationAmount
	var migrationRatio float64
	if totalHouses > 0 {
		migrationRatio = next.NonRiskyHouses / totalHouses
	}

	// Levees keep whatever was spent beyond the threshold.
	next.LeveeInvestmentTotal = prev.LeveeInvestmentTotal + dv.DamLeveeConstructionCost
	if threshold := noisyThreshold(p.LeveeInvestmentThreshold, p.LeveeInvestmentRequiredYears, p, rng); next.LeveeInvestmentTotal >= threshold {
		next.LeveeLevel = prev.LeveeLevel + p.LeveeLevelIncrement
		next.LeveeInvestmentTotal -= threshold
	}

	// Flood damage.
	paddyLevel := p.PaddyDamFloodCoef * paddyShare
	var floodImpact float64
	for _, rain := range c.rainEvents {
		overflow := math.Max(rain-next.LeveeLevel-paddyLevel, 0) * (1 - floodReduction)
		floodImpact += overflow * p.FloodDamageCoefficient
	}
	floodDamage := floodImpact * (1 - prev.ResidentCapacity) * (1 - migrationRatio)
	next.CropYield = math.Max(next.CropYield-floodDamage*p.FloodCropDamageCoef, 0)

	// Ecosystem.
	eco := math.Max(prev.EcosystemLevel-p.LeveeEcosystemDamageCoef*next.LeveeLevel+ecosystemBoost, 0)
	if next.AvailableWater < p.EcosystemThreshold {
		shortfall := p.EcosystemThreshold - next.AvailableWater
		eco -= p.WaterEcosystemCoef * math.Pow(shortfall, p.WaterStressExponent)
	}
	next.EcosystemLevel = math.Max(eco, 0)

	next.UrbanLevel = (1 - migrationRatio) * 100

	capacity := prev.ResidentCapacity*(1-p.ResidentCapacityDegradeRatio) + dv.CapacityBuildingCost*p.CapacityBuildingCoefficient
	next.ResidentCapacity = math.Min(capacity, p.MaxResidentCapacity)

	cost := municipalCost(dv, p)
	next.ResidentBurden = floodDamage * p.FloodRecoveryCostCoef
	if totalHouses > 0 {
		next.ResidentBurden += cost / totalHouses
	}

	rec := Record{
		Year:                   year,
		Temperature:            next.Temperature,
		Precipitation:          next.Precipitation,
		AvailableWater:         next.AvailableWater,
		CropYield:              next.CropYield,
		MunicipalDemand:        next.MunicipalDemand,
		FloodDamage:            floodDamage,
		LeveeLevel:             next.LeveeLevel,
		HighTempTolerance:      next.HighTempTolerance,
		HotDays:                next.HotDays,
		ExtremePrecipFrequency: next.ExtremePrecipFreq,
		ExtremePrecipEvents:    len(c.rainEvents),
		EcosystemLevel:         next.EcosystemLevel,
		MunicipalCost:          cost,
		UrbanLevel:             next.UrbanLevel,
		ResidentBurden:         next.ResidentBurden,
		LeveeInvestmentTotal:   next.LeveeInvestmentTotal,
		RnDInvestmentTotal:     next.RnDInvestmentTotal,
		ResidentCapacity:       next.ResidentCapacity,
		ForestArea:             next.ForestArea,
		PlantingHistory:        next.Planting.Map(),
		RiskyHouseTotal:        next.RiskyHouses,
		NonRiskyHouseTotal:     next.NonRiskyHouses,
		TransportationLevel:    next.TransportationLevel,
		PaddyDamArea:           next.PaddyDamArea,
		BiodiversityLevel:      next.EcosystemLevel,

		PlantingTreesAmount:      dv.PlantingTreesAmount,
		HouseMigrationAmount:     dv.HouseMigrationAmount,
		DamLeveeConstructionCost: dv.DamLeveeConstructionCost,
		PaddyDamConstructionCost: dv.PaddyDamConstructionCost,
		CapacityBuildingCost:     dv.CapacityBuildingCost,
		AgriculturalRnDCost:      dv.AgriculturalRnDCost,
		TransportationInvest:     dv.TransportationInvest,
	}
	return next, rec
}

// municipalCost prices one year of decisions.
func municipalCost(dv DecisionVars, p params.Set) float64 {
	u := p.UnitCosts
	return dv.DamLeveeConstructionCost*u.Levee +
		dv.AgriculturalRnDCost*u.RnD +
		dv.PaddyDamConstructionCost*u.PaddyDam +
		dv.CapacityBuildingCost*u.CapacityBuilding +
		dv.PlantingTreesAmount*p.CostPer1000Trees +
		dv.HouseMigrationAmount*p.CostPerMigration +
		dv.TransportationInvest*u.Transportation
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
