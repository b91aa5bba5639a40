// Command adaptctl runs simulations offline, without the API.
//
//	adaptctl run -request req.yaml [-archive dir] [-csv out.csv]
//	adaptctl sweep [-policies 32] [-rcp 4.5] [-seed 1] [-top 5] [-out sweep.json]
//	adaptctl archive -file data/archive/<run>.jsonl.zst
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/talgya/adaptation-sim/internal/archive"
	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/explore"
	"github.com/talgya/adaptation-sim/internal/params"
	"github.com/talgya/adaptation-sim/internal/persistence"
	"github.com/talgya/adaptation-sim/internal/scoring"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "sweep":
		sweepCmd(os.Args[2:])
	case "archive":
		archiveCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: adaptctl run|sweep|archive [flags]")
	os.Exit(2)
}

// runSpec is the YAML form of an offline run.
type runSpec struct {
	Mode           string                `yaml:"mode"`
	Year           int                   `yaml:"year"`
	Seed           uint64                `yaml:"seed"`
	NumSimulations int                   `yaml:"num_simulations"`
	Initial        engine.InitialValues  `yaml:"initial"`
	Decisions      []engine.DecisionVars `yaml:"decisions"`
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadParams(path string) (params.Set, params.Scenarios) {
	if path == "" {
		return params.Defaults(), params.DefaultScenarios()
	}
	p, sc, err := params.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "params:", err)
		os.Exit(1)
	}
	return p, sc
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	reqPath := fs.String("request", "", "YAML run request (required)")
	paramsPath := fs.String("params", "", "YAML parameter overrides (optional)")
	workers := fs.Int("workers", runtime.GOMAXPROCS(0), "concurrent ensemble runs")
	archiveDir := fs.String("archive", "", "write a zstd archive of the records here (optional)")
	csvPath := fs.String("csv", "", "write the records as CSV (optional)")
	_ = fs.Parse(args)

	if *reqPath == "" {
		fmt.Fprintln(os.Stderr, "missing -request")
		os.Exit(2)
	}
	raw, err := os.ReadFile(*reqPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	var job runSpec
	if err := yaml.Unmarshal(raw, &job); err != nil {
		fmt.Fprintln(os.Stderr, "parse request:", err)
		os.Exit(1)
	}
	mode, err := engine.ParseMode(job.Mode)
	if err != nil || (mode != engine.ModeEnsemble && mode != engine.ModePredict) {
		fmt.Fprintln(os.Stderr, "mode must be ensemble or predict:", job.Mode)
		os.Exit(2)
	}

	p, sc := loadParams(*paramsPath)
	orch := engine.NewOrchestrator(p, sc)
	orch.Workers = *workers

	req := engine.Request{
		Mode:           mode,
		Year:           job.Year,
		Seed:           job.Seed,
		NumSimulations: job.NumSimulations,
		Initial:        job.Initial,
		Decisions:      engine.Fixed(job.Decisions),
	}
	if mode == engine.ModePredict {
		req.Decisions = engine.DecadeTable(job.Decisions, p)
		if req.Year == 0 {
			req.Year = p.StartYear
		}
	}

	var sink engine.RecordSink
	var arc *archive.Writer
	runID := persistence.NewRunID()
	if *archiveDir != "" {
		if arc, err = archive.Create(*archiveDir, runID); err != nil {
			fmt.Fprintln(os.Stderr, "archive:", err)
			os.Exit(1)
		}
		sink = arc
	}

	ctx, stop := signalContext()
	defer stop()
	res, err := orch.Run(ctx, req, sink)
	if arc != nil {
		if cerr := arc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(1)
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "csv:", err)
			os.Exit(1)
		}
		if err := persistence.WriteRecordsCSV(f, res.Records); err != nil {
			fmt.Fprintln(os.Stderr, "csv:", err)
		}
		f.Close()
	}

	fmt.Printf("mode=%q seed=%d rcp=%.1f records=%d\n", string(res.Mode), res.Seed, res.RCP, len(res.Records))
	if arc != nil {
		fmt.Printf("archive: %s\n", archive.Path(*archiveDir, runID))
	}
	printBlocks(scoring.MeanBlocks(res.Records))
}

func sweepCmd(args []string) {
	cfg := explore.DefaultConfig()
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	paramsPath := fs.String("params", "", "YAML parameter overrides (optional)")
	fs.IntVar(&cfg.Policies, "policies", cfg.Policies, "number of candidate policies")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "noise and weather seed (0 = random)")
	fs.Float64Var(&cfg.RCP, "rcp", cfg.RCP, "climate scenario")
	fs.IntVar(&cfg.Octaves, "octaves", cfg.Octaves, "noise octaves")
	workers := fs.Int("workers", runtime.GOMAXPROCS(0), "concurrent policy runs")
	top := fs.Int("top", 5, "policies to print")
	outPath := fs.String("out", "", "write every outcome as JSON (optional)")
	_ = fs.Parse(args)

	p, sc := loadParams(*paramsPath)
	orch := engine.NewOrchestrator(p, sc)
	orch.Workers = *workers

	ctx, stop := signalContext()
	defer stop()
	outcomes, err := explore.Sweep(ctx, orch, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sweep:", err)
		os.Exit(1)
	}

	for i, out := range outcomes {
		if i >= *top {
			break
		}
		fmt.Printf("#%d policy %d  score %.2f\n", i+1, out.Policy.ID, out.Score)
		for _, dv := range out.Policy.Decisions {
			fmt.Printf("    %d  trees %.1f  migrate %.1f  levee %.1f  paddy %.1f  capacity %.1f  transport %.1f  rnd %.1f\n",
				dv.Year, dv.PlantingTreesAmount, dv.HouseMigrationAmount, dv.DamLeveeConstructionCost,
				dv.PaddyDamConstructionCost, dv.CapacityBuildingCost, dv.TransportationInvest, dv.AgriculturalRnDCost)
		}
	}

	if *outPath != "" {
		b, err := json.MarshalIndent(outcomes, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*outPath, b, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
	}
}

func archiveCmd(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	path := fs.String("file", "", "archive file (required)")
	_ = fs.Parse(args)

	if *path == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(2)
	}
	records, err := archive.ReadRecords(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	fmt.Printf("records=%d runs=%d\n", len(records), len(scoring.ByRun(records)))
	printBlocks(scoring.MeanBlocks(records))
}

// printBlocks prints block cards; ensembles show the mean over runs.
func printBlocks(blocks []scoring.Block) {
	for _, b := range blocks {
		fmt.Printf("%s  total %.2f\n", b.Period, b.TotalScore)
		for _, k := range scoring.Keys {
			fmt.Printf("    %-18s raw %14.3f  score %5.1f\n", k, b.Raw[k], b.Score[k])
		}
	}
}
