// Command steward plays an adaptation policy against a running simulator.
// It waits for the API, then steps sequential mode one year at a time.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/adaptation-sim/internal/params"
	"github.com/talgya/adaptation-sim/internal/steward"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("STEWARD_API_URL", "http://localhost:8000")
	policyPath := os.Getenv("STEWARD_POLICY")
	paramsPath := os.Getenv("ADAPTSIM_PARAMS")
	intervalSec := envIntOrDefault("STEWARD_INTERVAL", 0)

	if policyPath == "" {
		slog.Error("STEWARD_POLICY is required")
		os.Exit(1)
	}
	pol, err := steward.LoadPolicy(policyPath)
	if err != nil {
		slog.Error("failed to load policy", "error", err)
		os.Exit(1)
	}

	p := params.Defaults()
	if paramsPath != "" {
		if p, _, err = params.Load(paramsPath); err != nil {
			slog.Error("failed to load parameters", "error", err)
			os.Exit(1)
		}
	}

	from, to := pol.Span(p)
	slog.Info("steward starting",
		"api_url", apiURL,
		"user", pol.User,
		"scenario", pol.Scenario,
		"from", from,
		"to", to,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	client := steward.NewClient(apiURL)
	slog.Info("waiting for simulator API...")
	if err := client.WaitReady(ctx, 5*time.Minute); err != nil {
		slog.Error("simulator API unavailable", "error", err)
		os.Exit(1)
	}

	st := &steward.Stepper{
		Client:   client,
		Params:   p,
		Interval: time.Duration(intervalSec) * time.Second,
	}
	sum, err := st.Run(ctx, pol)
	if err != nil {
		slog.Error("policy run stopped", "steps", sum.Steps, "error", err)
		os.Exit(1)
	}

	periods := make([]string, 0, len(sum.Blocks))
	for period := range sum.Blocks {
		periods = append(periods, period)
	}
	sort.Strings(periods)
	for _, period := range periods {
		fmt.Printf("%s  total %.2f\n", period, sum.Blocks[period].TotalScore)
	}
	fmt.Println("Steward finished.")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
