package explore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/entropy"
	"github.com/talgya/adaptation-sim/internal/scoring"
)

// Outcome is a scored policy.
type Outcome struct {
	Policy Policy          `json:"policy"`
	Blocks []scoring.Block `json:"blocks"`
	Score  float64         `json:"score"`
}

// Sweep generates policies and runs each through predict mode from the
// start of the horizon. Every policy shares one seed so they face the same
// weather. Outcomes are ordered best first.
func Sweep(ctx context.Context, o *engine.Orchestrator, cfg Config) ([]Outcome, error) {
	if cfg.Seed == 0 {
		cfg.Seed = int64(entropy.Seed(o.Entropy)>>1) | 1
	}
	policies := Generate(cfg, o.Params)

	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, len(policies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pol := range policies {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := o.Run(gctx, engine.Request{
				Mode:      engine.ModePredict,
				Year:      o.Params.StartYear,
				Decisions: engine.DecadeTable(pol.Decisions, o.Params),
				Seed:      uint64(cfg.Seed),
			}, nil)
			if err != nil {
				return fmt.Errorf("policy %d: %w", pol.ID, err)
			}
			blocks := scoring.Blocks(res.Records)
			outcomes[i] = Outcome{Policy: pol, Blocks: blocks, Score: meanTotal(blocks)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(outcomes, func(a, b int) bool {
		return outcomes[a].Score > outcomes[b].Score
	})
	if len(outcomes) > 0 {
		slog.Info("sweep complete",
			"policies", len(outcomes),
			"best", outcomes[0].Policy.ID,
			"best_score", fmt.Sprintf("%.3f", outcomes[0].Score),
		)
	}
	return outcomes, nil
}

func meanTotal(blocks []scoring.Block) float64 {
	if len(blocks) == 0 {
		return 0
	}
	var sum float64
	for _, b := range blocks {
		sum += b.TotalScore
	}
	return sum / float64(len(blocks))
}
