// Package scoring turns yearly records into comparable indicator scores.
package scoring

import "math"

// Indicator keys, in reporting order.
const (
	CropYield        = "crop_yield"
	FloodDamage      = "flood_damage"
	Budget           = "budget"
	ResidentBurden   = "resident_burden"
	Ecosystem        = "ecosystem"
	ForestArea       = "forest_area"
	UrbanConvenience = "urban_convenience"
)

// Keys lists every indicator in reporting order.
var Keys = []string{CropYield, FloodDamage, Budget, ResidentBurden, Ecosystem, ForestArea, UrbanConvenience}

// Benchmark fixes the 0–100 scale of one indicator. Invert marks
// indicators where a lower raw value is better.
type Benchmark struct {
	Best   float64
	Worst  float64
	Invert bool
}

// Benchmarks is the fixed scoring rubric.
var Benchmarks = map[string]Benchmark{
	CropYield:        {Best: 10_000, Worst: 0},
	FloodDamage:      {Best: 0, Worst: 200_000_000, Invert: true},
	Ecosystem:        {Best: 100, Worst: 0},
	UrbanConvenience: {Best: 100, Worst: 0},
	Budget:           {Best: 0, Worst: 1_000_000_000, Invert: true},
	ForestArea:       {Best: 10_000, Worst: 0},
	ResidentBurden:   {Best: 0, Worst: 100_000, Invert: true},
}

// Scale maps raw onto [0, 100] against b, rounded to one decimal with
// ties to even.
func Scale(raw float64, b Benchmark) float64 {
	lo, hi := math.Min(b.Best, b.Worst), math.Max(b.Best, b.Worst)
	v := math.Min(math.Max(raw, lo), hi)

	var score float64
	if b.Invert {
		score = 100 * (b.Worst - v) / (b.Worst - b.Best)
	} else {
		score = 100 * (v - b.Worst) / (b.Best - b.Worst)
	}
	return math.RoundToEven(score*10) / 10
}
