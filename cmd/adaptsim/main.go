// Command adaptsim serves the climate adaptation simulator over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/adaptation-sim/internal/api"
	"github.com/talgya/adaptation-sim/internal/config"
	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/entropy"
	"github.com/talgya/adaptation-sim/internal/params"
	"github.com/talgya/adaptation-sim/internal/persistence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("climate adaptation simulator starting", "version", api.Version)

	// ── Parameters ───────────────────────────────────────────────────
	p, scenarios := params.Defaults(), params.DefaultScenarios()
	if cfg.ParamsPath != "" {
		p, scenarios, err = params.Load(cfg.ParamsPath)
		if err != nil {
			slog.Error("failed to load parameters", "path", cfg.ParamsPath, "error", err)
			os.Exit(1)
		}
		slog.Info("parameters loaded", "path", cfg.ParamsPath)
	}
	slog.Info("horizon",
		"start", p.StartYear,
		"end", p.EndYear,
		"years", p.TotalYears(),
		"scenarios", fmt.Sprint(scenarios.Codes()),
	)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if last, err := db.GetMeta("last_start"); err == nil && last != "" {
		slog.Info("previous start", "at", last)
	}
	if runs, err := db.Runs(1); err == nil && len(runs) > 0 {
		last := runs[0]
		slog.Info("latest stored run",
			"scenario", last.Scenario,
			"mode", last.Mode,
			"age", humanize.Time(time.Unix(0, last.CreatedAt)),
		)
	}
	if err := db.SaveMeta("last_start", time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("failed to record start", "error", err)
	}

	// ── Orchestrator ─────────────────────────────────────────────────
	orch := engine.NewOrchestrator(p, scenarios)
	orch.Workers = cfg.Workers
	orch.Entropy = entropy.NewClient(cfg.RandomOrgKey)
	if orch.Entropy.Enabled() {
		slog.Info("random.org seeding enabled")
	} else {
		slog.Warn("RANDOM_ORG_KEY not set, seeds come from crypto/rand")
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	srv := &api.Server{
		Orch:        orch,
		DB:          db,
		Port:        cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
		ExportDir:   cfg.ExportDir(),
	}
	if cfg.Archive {
		srv.ArchiveDir = cfg.ArchiveDir()
	}
	srv.Start()

	fmt.Printf("API: http://localhost:%d/health\n", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	fmt.Println("Simulator stopped.")
}
