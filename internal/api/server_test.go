package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/adaptation-sim/internal/archive"
	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/params"
	"github.com/talgya/adaptation-sim/internal/persistence"
	"github.com/talgya/adaptation-sim/internal/scoring"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	db, err := persistence.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	orch := engine.NewOrchestrator(params.Defaults(), params.DefaultScenarios())
	orch.Workers = 2
	return &Server{
		Orch:       orch,
		DB:         db,
		ArchiveDir: filepath.Join(dir, "archive"),
		ExportDir:  filepath.Join(dir, "export"),
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSim(t *testing.T, rec *httptest.ResponseRecorder) simulateResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp simulateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPingAndHealth(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/ping", nil)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/health", nil)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, Version, health["version"])
	_, err := time.Parse(time.RFC3339, health["timestamp"])
	assert.NoError(t, err)
}

func TestSimulateRejectsBadRequests(t *testing.T) {
	h := newTestServer(t).Handler()

	cases := []struct {
		name string
		body any
	}{
		{"unknown mode", map[string]any{"mode": "Quantum Mode"}},
		{"missing mode", map[string]any{"user_name": "a"}},
		{"zero simulations", map[string]any{"mode": string(engine.ModeEnsemble), "num_simulations": 0}},
		{"negative planting", map[string]any{
			"mode":          string(engine.ModePredict),
			"decision_vars": []map[string]any{{"year": 2026, "planting_trees_amount": -1}},
		}},
		{"year out of range", map[string]any{
			"mode":          string(engine.ModePredict),
			"decision_vars": []map[string]any{{"year": 2200}},
		}},
		{"no houses", map[string]any{
			"mode":                   string(engine.ModePredict),
			"current_year_index_seq": map[string]any{"risky_house_total": 0},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/simulate", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, h, http.MethodGet, "/api/v1/simulate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPredictIsNotStored(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	resp := decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name":     "alice",
		"scenario_name": "forecast",
		"mode":          string(engine.ModePredict),
		"seed":          1,
		"decision_vars": []map[string]any{{"year": 2026, "cp_climate_params": 4.5}},
	}))
	assert.Len(t, resp.Data, 75)
	assert.Equal(t, uint64(1), resp.Seed)
	assert.Empty(t, resp.RunID)

	rec := do(t, h, http.MethodGet, "/api/v1/scenarios", nil)
	assert.JSONEq(t, `{"scenarios":[]}`, rec.Body.String())
}

func TestPredictFromMidDecadeAppliesDecision(t *testing.T) {
	h := newTestServer(t).Handler()

	resp := decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"mode": string(engine.ModePredict),
		"seed": 3,
		"decision_vars": []map[string]any{{
			"year":                        2050,
			"dam_levee_construction_cost": 1,
			"cp_climate_params":           4.5,
		}},
	}))
	require.Len(t, resp.Data, 51)
	assert.Equal(t, 2050, resp.Data[0].Year)
	for _, rec := range resp.Data[:6] {
		assert.Equal(t, 1e8, rec.MunicipalCost, "year %d", rec.Year)
	}
	assert.Zero(t, resp.Data[6].MunicipalCost, "next decade has no row")
}

func TestEnsembleIsStoredAndArchived(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	resp := decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name":       "alice",
		"scenario_name":   "mc",
		"mode":            string(engine.ModeEnsemble),
		"num_simulations": 2,
		"seed":            5,
		"decision_vars":   []map[string]any{{"year": 2026, "planting_trees_amount": 10, "cp_climate_params": 2.6}},
	}))
	require.Len(t, resp.Data, 150)
	require.NotEmpty(t, resp.RunID)
	assert.Equal(t, 1, *resp.Data[149].Simulation)

	archived, err := archive.ReadRecords(archive.Path(s.ArchiveDir, resp.RunID))
	require.NoError(t, err)
	assert.Equal(t, resp.Data, archived)

	stored, err := s.DB.RunRecords(resp.RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 150)

	rec := do(t, h, http.MethodGet, "/api/v1/scenarios", nil)
	assert.JSONEq(t, `{"scenarios":["mc"]}`, rec.Body.String())
}

func TestSequentialStepsAndResumes(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	first := decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name":              "bob",
		"scenario_name":          "steps",
		"mode":                   string(engine.ModeSequential),
		"seed":                   9,
		"decision_vars":          []map[string]any{{"year": 2026, "dam_levee_construction_cost": 1, "cp_climate_params": 4.5}},
		"current_year_index_seq": map[string]any{"available_water": 1000, "crop_yield": 100},
	}))
	require.Len(t, first.Data, 1)
	assert.Equal(t, 2026, first.Data[0].Year)
	assert.Equal(t, 1e8, first.Data[0].MunicipalCost)
	require.Len(t, first.BlockScores, 1)
	assert.Equal(t, "2026-2050", first.BlockScores[0].Period)
	require.NotNil(t, first.State)
	assert.Equal(t, first.Data[0].LeveeInvestmentTotal, *first.State.LeveeInvestmentTotal)

	// No state and no decisions: resume the stored session a year later.
	second := decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name":     "bob",
		"scenario_name": "steps",
		"mode":          string(engine.ModeSequential),
		"seed":          9,
	}))
	require.Len(t, second.Data, 1)
	assert.Equal(t, 2027, second.Data[0].Year)
	assert.Equal(t, first.Data[0].LeveeInvestmentTotal, second.Data[0].LeveeInvestmentTotal)

	// The first score for a period is kept.
	var rows []persistence.ScoreRow
	rec := do(t, h, http.MethodGet, "/api/v1/block_scores", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, first.BlockScores[0].TotalScore, rows[0].TotalScore)

	var ranking []persistence.RankEntry
	rec = do(t, h, http.MethodGet, "/api/v1/ranking", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranking))
	require.Len(t, ranking, 1)
	assert.Equal(t, "bob", ranking[0].User)
	assert.Equal(t, 1, ranking[0].Rank)

	decisions, err := s.DB.DecisionLog()
	require.NoError(t, err)
	assert.Len(t, decisions, 1)
}

func TestRecordModeExportsFiles(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name":     "carol",
		"scenario_name": "s",
		"mode":          string(engine.ModeSequential),
		"seed":          2,
		"decision_vars": []map[string]any{{"year": 2030, "planting_trees_amount": 5}},
	}))
	resp := decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name": "carol",
		"mode":      string(engine.ModeRecord),
	}))
	assert.Empty(t, resp.Data)

	for _, name := range []string{persistence.BlockScoresFile, persistence.DecisionLogFile} {
		info, err := os.Stat(filepath.Join(s.ExportDir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/scenarios", nil)
	assert.JSONEq(t, `{"scenarios":["s"]}`, rec.Body.String(), "record mode stores no scenario")
}

func TestCompare(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name": "a", "scenario_name": "full", "mode": string(engine.ModeEnsemble),
		"num_simulations": 1, "seed": 3,
	}))
	decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name": "a", "scenario_name": "oneyear", "mode": string(engine.ModeSequential), "seed": 3,
	}))

	rec := do(t, h, http.MethodPost, "/api/v1/compare", CompareRequest{
		ScenarioNames: []string{"full", "oneyear", "missing"},
		Variables:     []string{"Crop Yield"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Message    string                         `json:"message"`
		Comparison map[string]map[string]*float64 `json:"comparison"`
		Variables  []string                       `json:"variables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Comparison results", body.Message)
	assert.Equal(t, []string{"Crop Yield"}, body.Variables)
	require.Len(t, body.Comparison, 2)
	assert.NotNil(t, body.Comparison["full"][scoring.Ecosystem])
	assert.Nil(t, body.Comparison["oneyear"][scoring.Ecosystem], "no 2100 record")
	assert.NotNil(t, body.Comparison["oneyear"][scoring.CropYield])

	rec = do(t, h, http.MethodPost, "/api/v1/compare", CompareRequest{ScenarioNames: []string{"nope"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	decodeSim(t, do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"user_name": "a", "scenario_name": "exp", "mode": string(engine.ModeEnsemble),
		"num_simulations": 1, "seed": 4,
	}))

	rec := do(t, h, http.MethodGet, "/api/v1/export/exp", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 76)
	assert.Equal(t, persistence.RecordColumns, rows[0])

	rec = do(t, h, http.MethodGet, "/api/v1/export/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimulateRateLimited(t *testing.T) {
	s := newTestServer(t)
	s.SimulateLimit = NewRateLimiter(1, time.Minute)
	h := s.Handler()

	body := map[string]any{"mode": string(engine.ModePredict), "seed": 1, "decision_vars": []map[string]any{{"year": 2099}}}
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/simulate", body).Code)

	rec := do(t, h, http.MethodPost, "/api/v1/simulate", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/ping", nil).Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	s.CORSOrigins = []string{"https://adapt.example.org"}
	h := s.Handler()

	for _, origin := range []string{"http://localhost:5173", "https://adapt.example.org"} {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/simulate", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
