package steward

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/params"
	"github.com/talgya/adaptation-sim/internal/scoring"
)

// Stepper plays a policy one year at a time.
type Stepper struct {
	Client *Client
	Params params.Set

	// Interval pauses between steps; zero steps as fast as the API answers.
	Interval time.Duration
}

// Summary is what a completed run produced.
type Summary struct {
	Steps     int
	Records   []engine.Record
	Blocks    map[string]scoring.Block
	TotalCost float64
}

// Run steps every year of pol's span in order. Each request carries the
// state returned by the previous one; the first carries pol.Initial.
func (s *Stepper) Run(ctx context.Context, pol Policy) (Summary, error) {
	from, to := pol.Span(s.Params)
	sum := Summary{Blocks: make(map[string]scoring.Block)}
	current := pol.Initial

	for year := from; year <= to; year++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		dv := pol.DecisionFor(year, s.Params)
		state := current
		res, err := s.Client.Simulate(ctx, StepRequest{
			UserName:     pol.User,
			ScenarioName: pol.Scenario,
			Mode:         SequentialMode,
			DecisionVars: []engine.DecisionVars{dv},
			Current:      &state,
			Seed:         stepSeed(pol.Seed, year),
		})
		if err != nil {
			return sum, fmt.Errorf("step %d: %w", year, err)
		}
		if len(res.Data) != 1 || res.State == nil {
			return sum, fmt.Errorf("step %d: expected one record and a state, got %d records", year, len(res.Data))
		}

		rec := res.Data[0]
		sum.Steps++
		sum.Records = append(sum.Records, rec)
		sum.TotalCost += rec.MunicipalCost
		for _, b := range res.BlockScores {
			sum.Blocks[b.Period] = b
		}
		current = *res.State

		slog.Info("step complete",
			"year", rec.Year,
			"cost", humanize.Commaf(math.Round(rec.MunicipalCost)),
			"flood_damage", humanize.Commaf(math.Round(rec.FloodDamage)),
			"ecosystem", fmt.Sprintf("%.3f", rec.EcosystemLevel),
			"crop_yield", fmt.Sprintf("%.1f", rec.CropYield),
		)

		if s.Interval > 0 && year < to {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(s.Interval):
			}
		}
	}

	slog.Info("policy complete",
		"user", pol.User,
		"scenario", pol.Scenario,
		"steps", sum.Steps,
		"total_cost", humanize.Commaf(math.Round(sum.TotalCost)),
	)
	return sum, nil
}

// stepSeed derives a per-year seed so a replayed policy sees the same
// weather. Zero leaves the server to draw a fresh seed.
func stepSeed(seed uint64, year int) uint64 {
	if seed == 0 {
		return 0
	}
	return seed*1_000_003 + uint64(year)
}
