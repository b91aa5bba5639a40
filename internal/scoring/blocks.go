package scoring

import (
	"fmt"

	"github.com/talgya/adaptation-sim/internal/engine"
)

// Window is a fixed scoring period, inclusive on both ends.
type Window struct {
	Start int
	End   int
	Label string
}

// Windows are the three scoring periods of the horizon.
var Windows = []Window{
	{Start: 2026, End: 2050, Label: "2026-2050"},
	{Start: 2051, End: 2075, Label: "2051-2075"},
	{Start: 2076, End: 2100, Label: "2076-2100"},
}

// Contains reports whether year falls inside w.
func (w Window) Contains(year int) bool {
	return year >= w.Start && year <= w.End
}

// Indicators maps indicator keys to values.
type Indicators map[string]float64

// Block is the score card for one window.
type Block struct {
	Period     string     `json:"period"`
	Raw        Indicators `json:"raw"`
	Score      Indicators `json:"score"`
	TotalScore float64    `json:"total_score"`
}

// BlockSink receives block score records.
type BlockSink interface {
	Block(Block) error
}

// accumulator gathers sums and means over a set of records.
type accumulator struct {
	n                         int
	crop, flood, cost, burden float64
	ecosystem, forest, urban  float64
}

func (a *accumulator) add(r engine.Record) {
	a.n++
	a.crop += r.CropYield
	a.flood += r.FloodDamage
	a.cost += r.MunicipalCost
	a.burden += r.ResidentBurden
	a.ecosystem += r.EcosystemLevel
	a.forest += r.ForestArea
	a.urban += r.UrbanLevel
}

func (a *accumulator) raw() Indicators {
	n := float64(a.n)
	return Indicators{
		CropYield:        a.crop,
		FloodDamage:      a.flood,
		Budget:           a.cost,
		ResidentBurden:   a.burden,
		Ecosystem:        a.ecosystem / n,
		ForestArea:       a.forest / n,
		UrbanConvenience: a.urban / n,
	}
}

// Blocks scores records window by window. Windows with no records are
// left out.
func Blocks(records []engine.Record) []Block {
	var blocks []Block
	for _, w := range Windows {
		var acc accumulator
		for _, r := range records {
			if w.Contains(r.Year) {
				acc.add(r)
			}
		}
		if acc.n == 0 {
			continue
		}

		raw := acc.raw()
		score := make(Indicators, len(raw))
		var total float64
		for _, k := range Keys {
			score[k] = Scale(raw[k], Benchmarks[k])
			total += score[k]
		}
		blocks = append(blocks, Block{
			Period:     w.Label,
			Raw:        raw,
			Score:      score,
			TotalScore: total / float64(len(Keys)),
		})
	}
	return blocks
}

// Deliver hands each block to sink in order.
func Deliver(sink BlockSink, blocks []Block) error {
	for _, b := range blocks {
		if err := sink.Block(b); err != nil {
			return fmt.Errorf("deliver block %s: %w", b.Period, err)
		}
	}
	return nil
}

// ByRun splits records into trajectories by their Simulation tag, in the
// order runs first appear. Untagged records form a single trajectory.
func ByRun(records []engine.Record) [][]engine.Record {
	var runs [][]engine.Record
	index := make(map[int]int)
	for _, r := range records {
		key := -1
		if r.Simulation != nil {
			key = *r.Simulation
		}
		i, ok := index[key]
		if !ok {
			i = len(runs)
			index[key] = i
			runs = append(runs, nil)
		}
		runs[i] = append(runs[i], r)
	}
	return runs
}

// MeanBlocks scores every trajectory on its own and averages the cards
// window by window, so an ensemble reads on the same scale as one run.
func MeanBlocks(records []engine.Record) []Block {
	runs := ByRun(records)
	if len(runs) <= 1 {
		return Blocks(records)
	}

	sums := make(map[string]*Block)
	counts := make(map[string]int)
	for _, run := range runs {
		for _, b := range Blocks(run) {
			s, ok := sums[b.Period]
			if !ok {
				s = &Block{Period: b.Period, Raw: Indicators{}, Score: Indicators{}}
				sums[b.Period] = s
			}
			counts[b.Period]++
			for k, v := range b.Raw {
				s.Raw[k] += v
			}
			for k, v := range b.Score {
				s.Score[k] += v
			}
			s.TotalScore += b.TotalScore
		}
	}

	var blocks []Block
	for _, w := range Windows {
		s, ok := sums[w.Label]
		if !ok {
			continue
		}
		n := float64(counts[w.Label])
		for k := range s.Raw {
			s.Raw[k] /= n
		}
		for k := range s.Score {
			s.Score[k] /= n
		}
		s.TotalScore /= n
		blocks = append(blocks, *s)
	}
	return blocks
}
