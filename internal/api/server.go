// Package api serves the simulator over HTTP.
// POST endpoints run simulations and are rate limited per client address.
// GET endpoints read the scenario store, scores and rankings.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/adaptation-sim/internal/archive"
	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/persistence"
	"github.com/talgya/adaptation-sim/internal/scoring"
)

// Version is reported by /health.
const Version = "1.0.0"

const maxStreams = 4

// Server serves simulation requests over HTTP.
type Server struct {
	Orch *engine.Orchestrator
	DB   *persistence.DB
	Port int

	// CORSOrigins are allowed in addition to the local dev servers.
	CORSOrigins []string

	// ArchiveDir, if set, receives a zstd archive of every ensemble run.
	ArchiveDir string

	// ExportDir is where Record Results mode writes its files.
	ExportDir string

	// SimulateLimit bounds simulate and stream calls per client address.
	// Nil uses 120 per minute.
	SimulateLimit *RateLimiter

	// Active stream connection count (atomic).
	streams int32
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	limiter := s.SimulateLimit
	if limiter == nil {
		limiter = NewRateLimiter(120, time.Minute)
	}

	mux := http.NewServeMux()

	// Simulation (POST, rate limited).
	mux.HandleFunc("/api/v1/simulate", RateLimitMiddleware(limiter, s.handleSimulate))
	mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(limiter, s.handleStream))

	// Scenario store and scores.
	mux.HandleFunc("/api/v1/compare", s.handleCompare)
	mux.HandleFunc("/api/v1/scenarios", s.handleScenarios)
	mux.HandleFunc("/api/v1/export/", s.handleExport)
	mux.HandleFunc("/api/v1/ranking", s.handleRanking)
	mux.HandleFunc("/api/v1/block_scores", s.handleBlockScores)

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ping", s.handlePing)

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "archive", s.ArchiveDir != "", "cors_origins", len(s.CORSOrigins))

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		allowedOrigins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// simulateResponse is the body returned by POST /api/v1/simulate.
type simulateResponse struct {
	ScenarioName string          `json:"scenario_name"`
	Data         []engine.Record `json:"data"`
	BlockScores  []scoring.Block `json:"block_scores"`
	Seed         uint64          `json:"seed,omitempty"`
	RunID        string          `json:"run_id,omitempty"`

	// State is the state reached by a sequential step, ready to be sent
	// back as the next step's current_year_index_seq.
	State *engine.InitialValues `json:"state,omitempty"`
}

// handleSimulate runs one simulation call in the requested mode.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	raw, err := readBody(w, r)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	req, err := decodeSimulate(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mode, err := engine.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := simulateResponse{
		ScenarioName: req.ScenarioName,
		Data:         []engine.Record{},
		BlockScores:  []scoring.Block{},
	}

	if mode == engine.ModeRecord {
		if err := s.DB.ExportFiles(s.ExportDir); err != nil {
			slog.Error("record export failed", "error", err)
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		slog.Info("results recorded", "dir", s.ExportDir, "user", req.UserName)
		writeJSON(w, resp)
		return
	}

	er, err := s.engineRequest(req, mode)
	if err != nil {
		slog.Error("prepare simulation", "error", err)
		http.Error(w, "failed to prepare simulation", http.StatusInternalServerError)
		return
	}

	runID := persistence.NewRunID()
	var sink engine.RecordSink
	var arc *archive.Writer
	if mode == engine.ModeEnsemble && s.ArchiveDir != "" {
		if arc, err = archive.Create(s.ArchiveDir, runID); err != nil {
			slog.Error("archive create failed", "error", err)
			http.Error(w, "archive unavailable", http.StatusInternalServerError)
			return
		}
		defer arc.Close()
		sink = arc
	}

	res, err := s.Orch.Run(r.Context(), er, sink)
	if err != nil {
		writeRunError(w, err)
		return
	}
	if arc != nil {
		if err := arc.Close(); err != nil {
			slog.Warn("archive close failed", "run", runID, "error", err)
		}
	}

	resp.Data = res.Records
	resp.Seed = res.Seed

	if mode == engine.ModeSequential {
		blocks := scoring.Blocks(res.Records)
		if err := s.recordStep(req, er, res, blocks); err != nil {
			slog.Error("sequential bookkeeping failed", "error", err)
			http.Error(w, "failed to store step", http.StatusInternalServerError)
			return
		}
		if len(blocks) > 0 {
			resp.BlockScores = blocks
		}
		next := res.Final.Values()
		resp.State = &next
	}

	if mode != engine.ModePredict {
		if err := s.DB.SaveRun(runID, req.UserName, req.ScenarioName, res); err != nil {
			slog.Error("scenario store failed", "error", err)
			http.Error(w, "failed to store scenario", http.StatusInternalServerError)
			return
		}
		resp.RunID = runID
	}

	writeJSON(w, resp)
}

// recordStep does the bookkeeping of one sequential step: decision log,
// block scores and the session the next step resumes from.
func (s *Server) recordStep(req SimulateRequest, er engine.Request, res engine.Result, blocks []scoring.Block) error {
	if err := s.DB.AppendDecisions(req.UserName, req.ScenarioName, req.DecisionVars); err != nil {
		return err
	}
	if err := scoring.Deliver(s.DB.BlockSink(req.UserName, req.ScenarioName), blocks); err != nil {
		return err
	}
	if err := s.DB.SaveSession(req.UserName, req.ScenarioName, er.Year, res.Final.Values()); err != nil {
		return err
	}

	if len(res.Records) > 0 {
		rec := res.Records[0]
		slog.Info("sequential step",
			"user", req.UserName,
			"scenario", req.ScenarioName,
			"year", rec.Year,
			"cost", humanize.Commaf(math.Round(rec.MunicipalCost)),
			"ecosystem", fmt.Sprintf("%.3f", rec.EcosystemLevel),
		)
	}
	return nil
}

// writeRunError maps orchestrator failures to HTTP status codes.
func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownMode),
		errors.Is(err, engine.ErrYearOutOfRange),
		errors.Is(err, engine.ErrNoHouses):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("simulation failed", "error", err)
		http.Error(w, "simulation failed", http.StatusInternalServerError)
	}
}

// handleCompare reduces stored scenarios to comparable indicators.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req CompareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	found := make(map[string][]engine.Record, len(req.ScenarioNames))
	for _, name := range req.ScenarioNames {
		records, err := s.DB.LatestScenario(name)
		if errors.Is(err, persistence.ErrScenarioNotFound) {
			continue
		}
		if err != nil {
			slog.Error("load scenario", "scenario", name, "error", err)
			http.Error(w, "failed to load scenario", http.StatusInternalServerError)
			return
		}
		found[name] = records
	}
	if len(found) == 0 {
		http.Error(w, "no scenarios found", http.StatusNotFound)
		return
	}

	// JSON has no NaN; indicators without data become null.
	comparison := make(map[string]map[string]*float64, len(found))
	for name, ind := range scoring.Compare(found) {
		out := make(map[string]*float64, len(ind))
		for k, v := range ind {
			if math.IsNaN(v) {
				out[k] = nil
				continue
			}
			out[k] = &v
		}
		comparison[name] = out
	}

	variables := req.Variables
	if variables == nil {
		variables = []string{}
	}
	writeJSON(w, map[string]any{
		"message":    "Comparison results",
		"comparison": comparison,
		"variables":  variables,
	})
}

// handleScenarios lists stored scenario names.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	names, err := s.DB.ListScenarios()
	if err != nil {
		slog.Error("list scenarios", "error", err)
		http.Error(w, "failed to list scenarios", http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, map[string]any{"scenarios": names})
}

// handleExport returns a stored scenario as CSV (GET /api/v1/export/:name).
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/export/")
	if name == "" {
		http.Error(w, "scenario name required", http.StatusBadRequest)
		return
	}

	records, err := s.DB.LatestScenario(name)
	if errors.Is(err, persistence.ErrScenarioNotFound) {
		http.Error(w, "scenario not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load scenario", "scenario", name, "error", err)
		http.Error(w, "failed to load scenario", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	if err := persistence.WriteRecordsCSV(w, records); err != nil {
		slog.Warn("export write failed", "scenario", name, "error", err)
	}
}

// handleRanking returns users ordered by mean block total.
func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	ranking, err := s.DB.Ranking()
	if err != nil {
		slog.Error("ranking", "error", err)
		http.Error(w, "failed to compute ranking", http.StatusInternalServerError)
		return
	}
	if ranking == nil {
		ranking = []persistence.RankEntry{}
	}
	writeJSON(w, ranking)
}

// handleBlockScores lists every stored block score.
func (s *Server) handleBlockScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	rows, err := s.DB.BlockScores()
	if err != nil {
		slog.Error("block scores", "error", err)
		http.Error(w, "failed to load block scores", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.ScoreRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"message": "pong"})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
