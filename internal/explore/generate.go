// Policy generation using layered simplex noise.
// Each lever gets its own noise layer; a policy is a row through that layer
// sampled once per decade, so neighbouring decades change smoothly.
package explore

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/params"
)

// Config holds sweep parameters.
type Config struct {
	Policies    int     // Number of candidate policies
	Seed        int64   // Noise and simulation seed (0 = random)
	RCP         float64 // Climate scenario every policy runs under
	Octaves     int     // Noise layers summed per sample
	Frequency   float64 // Base frequency along the decade axis
	Persistence float64 // Amplitude falloff per octave
}

// DefaultConfig returns a reasonable starting configuration.
func DefaultConfig() Config {
	return Config{
		Policies:    32,
		Seed:        0,
		RCP:         4.5,
		Octaves:     3,
		Frequency:   0.35,
		Persistence: 0.5,
	}
}

// Lever is one decision variable a policy can pull, with its upper bound.
type Lever struct {
	Name string
	Max  float64
	set  func(*engine.DecisionVars, float64)
}

// Levers are the decision variables explored, in noise-layer order.
var Levers = []Lever{
	{"planting_trees_amount", 100, func(d *engine.DecisionVars, v float64) { d.PlantingTreesAmount = v }},
	{"house_migration_amount", 300, func(d *engine.DecisionVars, v float64) { d.HouseMigrationAmount = v }},
	{"dam_levee_construction_cost", 2, func(d *engine.DecisionVars, v float64) { d.DamLeveeConstructionCost = v }},
	{"paddy_dam_construction_cost", 10, func(d *engine.DecisionVars, v float64) { d.PaddyDamConstructionCost = v }},
	{"capacity_building_cost", 10, func(d *engine.DecisionVars, v float64) { d.CapacityBuildingCost = v }},
	{"transportation_invest", 5, func(d *engine.DecisionVars, v float64) { d.TransportationInvest = v }},
	{"agricultural_RnD_cost", 5, func(d *engine.DecisionVars, v float64) { d.AgriculturalRnDCost = v }},
}

// Policy is a decade table of decisions.
type Policy struct {
	ID        int                   `json:"id"`
	Decisions []engine.DecisionVars `json:"decisions"`
}

// Generate samples cfg.Policies policies covering every decade of p's
// horizon. The same seed always yields the same policies.
func Generate(cfg Config, p params.Set) []Policy {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	layers := make([]opensimplex.Noise, len(Levers))
	for i := range Levers {
		layers[i] = opensimplex.NewNormalized(seed + int64(i))
	}

	var decades []int
	for y := p.StartYear; y <= p.EndYear; y += 10 {
		decades = append(decades, y)
	}

	policies := make([]Policy, cfg.Policies)
	for i := range policies {
		// Policies sit far apart on the second axis so they are uncorrelated.
		row := float64(i) * 17.0
		rows := make([]engine.DecisionVars, len(decades))
		for d, year := range decades {
			dv := engine.DecisionVars{Year: year, ClimateScenario: cfg.RCP}
			for l, lever := range Levers {
				v := octaveNoise(layers[l], float64(d), row, cfg.Octaves, cfg.Frequency, cfg.Persistence)
				lever.set(&dv, round1(v*lever.Max))
			}
			rows[d] = dv
		}
		policies[i] = Policy{ID: i, Decisions: rows}
	}
	return policies
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	if maxVal == 0 {
		return 0
	}
	return math.Min(1, math.Max(0, total/maxVal))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
