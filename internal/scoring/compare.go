package scoring

import (
	"math"

	"github.com/talgya/adaptation-sim/internal/engine"
)

// EndYear is the year whose ecosystem level stands for a whole trajectory
// in comparisons.
const EndYear = 2100

// Trajectory computes the raw indicators over a full trajectory. Ecosystem
// is the level at EndYear rather than a mean, and NaN when that year is
// missing.
func Trajectory(records []engine.Record) Indicators {
	var acc accumulator
	ecosystem := math.NaN()
	for _, r := range records {
		acc.add(r)
		if r.Year == EndYear && math.IsNaN(ecosystem) {
			ecosystem = r.EcosystemLevel
		}
	}
	raw := acc.raw()
	raw[Ecosystem] = ecosystem
	return raw
}

// Compare computes Trajectory for each named scenario.
func Compare(scenarios map[string][]engine.Record) map[string]Indicators {
	out := make(map[string]Indicators, len(scenarios))
	for name, records := range scenarios {
		out[name] = Trajectory(records)
	}
	return out
}
