package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/adaptation-sim/internal/entropy"
	"github.com/talgya/adaptation-sim/internal/params"
)

// Mode names an execution policy. The strings are the labels clients send.
type Mode string

const (
	ModeEnsemble   Mode = "Monte Carlo Simulation Mode"
	ModeSequential Mode = "Sequential Decision-Making Mode"
	ModePredict    Mode = "Predict Simulation Mode"
	ModeRecord     Mode = "Record Results Mode"
)

// DefaultSimulations is the ensemble size used when a request names none.
const DefaultSimulations = 100

var (
	// ErrUnknownMode is returned for a mode label outside the fixed set.
	ErrUnknownMode = errors.New("unknown simulation mode")
	// ErrNotSimulated is returned when a valid mode has no simulation
	// behind it (record mode only exports what is already stored).
	ErrNotSimulated = errors.New("mode does not run a simulation")
	// ErrYearOutOfRange is returned when the requested year lies outside
	// the parameter horizon.
	ErrYearOutOfRange = errors.New("year outside simulation horizon")
)

// Modes lists every accepted mode label.
func Modes() []Mode {
	return []Mode{ModeEnsemble, ModeSequential, ModePredict, ModeRecord}
}

// ParseMode validates a mode label.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Request is one simulation call.
type Request struct {
	Mode      Mode
	Year      int
	Initial   InitialValues
	Decisions Decisions

	// NumSimulations is the ensemble size; zero means DefaultSimulations.
	NumSimulations int

	// Seed fixes the random streams. Zero asks for a fresh seed, which is
	// reported back in the Result.
	Seed uint64
}

// Result is the outcome of a simulation call.
type Result struct {
	Mode    Mode
	Seed    uint64
	RCP     float64
	Records []Record

	// Final is the state after the last simulated year. For ensembles it
	// belongs to the last run.
	Final State
}

// Orchestrator runs requests against a base parameter set.
type Orchestrator struct {
	Params    params.Set
	Scenarios params.Scenarios

	// Workers bounds concurrent ensemble runs; zero means GOMAXPROCS.
	Workers int

	// Entropy supplies fresh seeds; nil falls back to crypto/rand.
	Entropy *entropy.Client
}

// NewOrchestrator creates an orchestrator over p and its scenario table.
func NewOrchestrator(p params.Set, sc params.Scenarios) *Orchestrator {
	return &Orchestrator{Params: p, Scenarios: sc}
}

// Run dispatches req to its mode. Records are delivered to sink (if not
// nil) in the order they appear in the Result.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink RecordSink) (Result, error) {
	start := time.Now()

	var (
		res Result
		err error
	)
	switch req.Mode {
	case ModeEnsemble:
		res, err = o.RunEnsemble(ctx, req, sink)
	case ModeSequential:
		res, err = o.RunSequential(req, sink)
	case ModePredict:
		res, err = o.RunPredict(req, sink)
	case ModeRecord:
		return Result{}, fmt.Errorf("run %q: %w", req.Mode, ErrNotSimulated)
	default:
		return Result{}, fmt.Errorf("run: %w: %q", ErrUnknownMode, req.Mode)
	}
	if err != nil {
		return res, err
	}

	slog.Info("simulation finished",
		"mode", string(res.Mode),
		"rcp", res.RCP,
		"records", len(res.Records),
		"seed", res.Seed,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return res, nil
}

// prepare resolves the run-local parameter copy, the starting state and
// the seed shared by every mode.
func (o *Orchestrator) prepare(req Request) (params.Set, State, uint64, float64, error) {
	p := o.Params
	rcp, ok := req.Decisions.Scenario()
	if ok {
		p = p.WithScenario(o.Scenarios, rcp)
	}

	initial, err := req.Initial.State(p)
	if err != nil {
		return p, State{}, 0, rcp, fmt.Errorf("initial state: %w", err)
	}

	seed := req.Seed
	if seed == 0 {
		seed = entropy.Seed(o.Entropy)
	}
	return p, initial, seed, rcp, nil
}

// RunEnsemble repeats the full horizon NumSimulations times under the
// last decision record. Runs are independent and execute concurrently.
// Records come back grouped by run, in run order; the sink receives each
// run's records as soon as that run and every earlier one has finished.
func (o *Orchestrator) RunEnsemble(ctx context.Context, req Request, sink RecordSink) (Result, error) {
	p, initial, seed, rcp, err := o.prepare(req)
	if err != nil {
		return Result{}, err
	}

	n := req.NumSimulations
	if n <= 0 {
		n = DefaultSimulations
	}
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	years := p.Years(p.StartYear)
	runs := make([][]Record, n)
	finals := make([]State, n)
	done := make([]chan struct{}, n)
	for i := range done {
		done[i] = make(chan struct{})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// g.Go blocks at the worker limit, so runs launch off the delivery path.
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i := 0; i < n; i++ {
			if gctx.Err() != nil {
				return
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				run := i
				r := Runner{
					Params:    p,
					Decisions: req.Decisions,
					Stream:    entropy.NewStream(seed, uint64(i)),
					Run:       &run,
				}
				recs, final, err := r.Simulate(years, initial)
				if err != nil {
					return fmt.Errorf("ensemble run %d: %w", i, err)
				}
				runs[i], finals[i] = recs, final
				close(done[i])
				return nil
			})
		}
	}()

	var sinkErr error
deliver:
	for i := 0; i < n; i++ {
		select {
		case <-done[i]:
		case <-gctx.Done():
			break deliver
		}
		if sink == nil {
			continue
		}
		for _, rec := range runs[i] {
			if err := sink.Record(rec); err != nil {
				sinkErr = fmt.Errorf("ensemble sink: %w", err)
				cancel()
				break deliver
			}
		}
	}

	<-launched
	waitErr := g.Wait()
	if sinkErr != nil {
		return Result{}, sinkErr
	}
	if waitErr != nil {
		return Result{}, waitErr
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("ensemble: %w", err)
	}

	records := make([]Record, 0, n*len(years))
	for _, recs := range runs {
		records = append(records, recs...)
	}

	return Result{
		Mode:    ModeEnsemble,
		Seed:    seed,
		RCP:     rcp,
		Records: records,
		Final:   finals[n-1],
	}, nil
}

// RunSequential advances the caller's state by exactly req.Year.
func (o *Orchestrator) RunSequential(req Request, sink RecordSink) (Result, error) {
	p, initial, seed, rcp, err := o.prepare(req)
	if err != nil {
		return Result{}, err
	}
	if req.Year < p.StartYear || req.Year > p.EndYear {
		return Result{}, fmt.Errorf("sequential year %d: %w", req.Year, ErrYearOutOfRange)
	}

	r := Runner{
		Params:    p,
		Decisions: req.Decisions,
		Stream:    entropy.NewStream(seed, 0),
		Sink:      sink,
	}
	records, final, err := r.Simulate([]int{req.Year}, initial)
	if err != nil {
		return Result{}, err
	}
	return Result{Mode: ModeSequential, Seed: seed, RCP: rcp, Records: records, Final: final}, nil
}

// RunPredict runs from req.Year through the end of the horizon.
func (o *Orchestrator) RunPredict(req Request, sink RecordSink) (Result, error) {
	p, initial, seed, rcp, err := o.prepare(req)
	if err != nil {
		return Result{}, err
	}
	years := p.Years(req.Year)
	if len(years) == 0 {
		return Result{}, fmt.Errorf("predict from %d: %w", req.Year, ErrYearOutOfRange)
	}

	r := Runner{
		Params:    p,
		Decisions: req.Decisions,
		Stream:    entropy.NewStream(seed, 0),
		Sink:      sink,
	}
	records, final, err := r.Simulate(years, initial)
	if err != nil {
		return Result{}, err
	}
	return Result{Mode: ModePredict, Seed: seed, RCP: rcp, Records: records, Final: final}, nil
}
