package engine

// Record is the flat per-year snapshot a run emits. JSON names match the
// wire format clients already consume.
type Record struct {
	Year                   int             `json:"Year"`
	Temperature            float64         `json:"Temperature (℃)"`
	Precipitation          float64         `json:"Precipitation (mm)"`
	AvailableWater         float64         `json:"Available Water"`
	CropYield              float64         `json:"Crop Yield"`
	MunicipalDemand        float64         `json:"Municipal Demand"`
	FloodDamage            float64         `json:"Flood Damage"`
	LeveeLevel             float64         `json:"Levee Level"`
	HighTempTolerance      float64         `json:"High Temp Tolerance Level"`
	HotDays                float64         `json:"Hot Days"`
	ExtremePrecipFrequency float64         `json:"Extreme Precip Frequency"`
	ExtremePrecipEvents    int             `json:"Extreme Precip Events"`
	EcosystemLevel         float64         `json:"Ecosystem Level"`
	MunicipalCost          float64         `json:"Municipal Cost"`
	UrbanLevel             float64         `json:"Urban Level"`
	ResidentBurden         float64         `json:"Resident Burden"`
	LeveeInvestmentTotal   float64         `json:"Levee investment total"`
	RnDInvestmentTotal     float64         `json:"RnD investment total"`
	ResidentCapacity       float64         `json:"Resident capacity"`
	ForestArea             float64         `json:"Forest Area"`
	PlantingHistory        map[int]float64 `json:"planting_history"`
	RiskyHouseTotal        float64         `json:"risky_house_total"`
	NonRiskyHouseTotal     float64         `json:"non_risky_house_total"`
	TransportationLevel    float64         `json:"transportation_level"`
	PaddyDamArea           float64         `json:"paddy_dam_area"`
	BiodiversityLevel      float64         `json:"biodiversity_level"`

	// Decisions applied this year.
	PlantingTreesAmount      float64 `json:"planting_trees_amount"`
	HouseMigrationAmount     float64 `json:"house_migration_amount"`
	DamLeveeConstructionCost float64 `json:"dam_levee_construction_cost"`
	PaddyDamConstructionCost float64 `json:"paddy_dam_construction_cost"`
	CapacityBuildingCost     float64 `json:"capacity_building_cost"`
	AgriculturalRnDCost      float64 `json:"agricultural_RnD_cost"`
	TransportationInvest     float64 `json:"transportation_invest"`

	// Simulation is the ensemble run index; nil outside ensemble mode.
	Simulation *int `json:"Simulation,omitempty"`
}

// RecordSink receives records as a run produces them.
type RecordSink interface {
	Record(Record) error
}

// RecordSinkFunc adapts a function to RecordSink.
type RecordSinkFunc func(Record) error

// Record calls f(r).
func (f RecordSinkFunc) Record(r Record) error { return f(r) }
