package engine

import (
	"sort"

	"github.com/talgya/adaptation-sim/internal/params"
)

// DecisionVars is one year of adaptation spending. The zero value applies
// no decisions.
type DecisionVars struct {
	Year                     int     `json:"year" yaml:"year"`
	PlantingTreesAmount      float64 `json:"planting_trees_amount" yaml:"planting_trees_amount"`
	HouseMigrationAmount     float64 `json:"house_migration_amount" yaml:"house_migration_amount"`
	DamLeveeConstructionCost float64 `json:"dam_levee_construction_cost" yaml:"dam_levee_construction_cost"`
	PaddyDamConstructionCost float64 `json:"paddy_dam_construction_cost" yaml:"paddy_dam_construction_cost"`
	CapacityBuildingCost     float64 `json:"capacity_building_cost" yaml:"capacity_building_cost"`
	TransportationInvest     float64 `json:"transportation_invest" yaml:"transportation_invest"`
	AgriculturalRnDCost      float64 `json:"agricultural_RnD_cost" yaml:"agricultural_RnD_cost"`
	ClimateScenario          float64 `json:"cp_climate_params" yaml:"cp_climate_params"`
}

type decisionKind uint8

const (
	kindFixed decisionKind = iota
	kindSingle
	kindDecade
)

// Decisions is the decision stream for a run. Build it with Fixed, Single
// or DecadeTable; each mode of the orchestrator uses one shape.
type Decisions struct {
	kind   decisionKind
	list   []DecisionVars
	single DecisionVars
	decade map[int]DecisionVars
}

// Fixed applies the last record of list to every year. An empty list
// applies no decisions.
func Fixed(list []DecisionVars) Decisions {
	return Decisions{kind: kindFixed, list: append([]DecisionVars(nil), list...)}
}

// Single applies dv to whatever year is being simulated.
func Single(dv DecisionVars) Decisions {
	return Decisions{kind: kindSingle, single: dv}
}

// DecadeTable keys each row by the decade its Year falls in, counted from
// the horizon start. A simulated year reads its decade's row; of several
// rows in one decade the last wins.
func DecadeTable(rows []DecisionVars, p params.Set) Decisions {
	table := make(map[int]DecisionVars, len(rows))
	for _, r := range rows {
		table[DecadeYear(r.Year, p)] = r
	}
	return Decisions{kind: kindDecade, decade: table}
}

// DecadeYear returns the row key that year resolves to.
func DecadeYear(year int, p params.Set) int {
	offset := year - p.StartYear
	// Floor division so years before the horizon map to earlier decades.
	d := offset / 10
	if offset < 0 && offset%10 != 0 {
		d--
	}
	return p.StartYear + d*10
}

// Resolve returns the decisions that apply in year. A decade table
// without a row for that decade applies no decisions.
func (d Decisions) Resolve(year int, p params.Set) DecisionVars {
	switch d.kind {
	case kindSingle:
		return d.single
	case kindDecade:
		return d.decade[DecadeYear(year, p)]
	default:
		if len(d.list) == 0 {
			return DecisionVars{}
		}
		return d.list[len(d.list)-1]
	}
}

// Scenario returns the RCP code carried by the stream, and false when the
// stream is empty.
func (d Decisions) Scenario() (float64, bool) {
	switch d.kind {
	case kindSingle:
		return d.single.ClimateScenario, true
	case kindDecade:
		if len(d.decade) == 0 {
			return 0, false
		}
		years := make([]int, 0, len(d.decade))
		for y := range d.decade {
			years = append(years, y)
		}
		sort.Ints(years)
		return d.decade[years[0]].ClimateScenario, true
	default:
		if len(d.list) == 0 {
			return 0, false
		}
		return d.list[0].ClimateScenario, true
	}
}

// FirstYear returns the Year of the earliest record in the stream, or
// zero when the stream is empty.
func (d Decisions) FirstYear() int {
	switch d.kind {
	case kindSingle:
		return d.single.Year
	case kindDecade:
		first := 0
		for _, r := range d.decade {
			if first == 0 || r.Year < first {
				first = r.Year
			}
		}
		return first
	default:
		if len(d.list) == 0 {
			return 0
		}
		return d.list[0].Year
	}
}

// Len reports how many records the stream holds.
func (d Decisions) Len() int {
	switch d.kind {
	case kindSingle:
		return 1
	case kindDecade:
		return len(d.decade)
	default:
		return len(d.list)
	}
}
