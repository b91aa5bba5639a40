// Package engine provides the year-transition function and the runners
// that fold it across a horizon.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/adaptation-sim/internal/entropy"
	"github.com/talgya/adaptation-sim/internal/params"
)

// Runner folds Step across an ordered list of years. Each year depends on
// the one before, so a Runner never runs in parallel with itself.
type Runner struct {
	Params    params.Set
	Decisions Decisions
	Stream    *entropy.Stream

	// Sink, if set, receives each record as soon as its year is done.
	Sink RecordSink

	// Run is the ensemble index stamped on records; nil leaves it unset.
	Run *int
}

// Simulate runs years in order starting from initial. It returns every
// record and the final state. The only failure is a sink error.
func (r *Runner) Simulate(years []int, initial State) ([]Record, State, error) {
	state := initial
	records := make([]Record, 0, len(years))

	for _, year := range years {
		dv := r.Decisions.Resolve(year, r.Params)

		var rec Record
		state, rec = Step(year, state, dv, r.Params, r.Stream)
		if r.Run != nil {
			idx := *r.Run
			rec.Simulation = &idx
		}
		records = append(records, rec)

		if r.Sink != nil {
			if err := r.Sink.Record(rec); err != nil {
				return records, state, fmt.Errorf("sink year %d: %w", year, err)
			}
		}
	}

	if len(records) > 0 {
		last := records[len(records)-1]
		slog.Debug("run complete",
			"years", len(records),
			"last_year", last.Year,
			"ecosystem", fmt.Sprintf("%.3f", last.EcosystemLevel),
			"forest", fmt.Sprintf("%.1f", last.ForestArea),
		)
	}
	return records, state, nil
}
