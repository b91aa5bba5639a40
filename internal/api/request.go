package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/params"
	"github.com/talgya/adaptation-sim/internal/persistence"
)

const maxBodyBytes = 1 << 20

//go:embed schema/simulate.schema.json
var simulateSchemaJSON []byte

var simulateSchema = mustCompileSchema("simulate.schema.json", simulateSchemaJSON)

func mustCompileSchema(name string, raw []byte) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	sch, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return sch
}

// SimulateRequest is the body of POST /api/v1/simulate and the first
// message on the stream endpoint.
type SimulateRequest struct {
	UserName     string                `json:"user_name"`
	ScenarioName string                `json:"scenario_name"`
	Mode         string                `json:"mode"`
	DecisionVars []engine.DecisionVars `json:"decision_vars,omitempty"`

	// NumSimulations is the ensemble size; nil means the default.
	NumSimulations *int `json:"num_simulations,omitempty"`

	// Current is the state to start from. Sequential requests that omit it
	// resume the stored session for (user, scenario).
	Current *engine.InitialValues `json:"current_year_index_seq,omitempty"`

	// Seed replays a previous call; zero draws a fresh one.
	Seed uint64 `json:"seed,omitempty"`
}

// CompareRequest is the body of POST /api/v1/compare.
type CompareRequest struct {
	ScenarioNames []string `json:"scenario_names"`
	Variables     []string `json:"variables"`
}

// decodeSimulate validates raw against the request schema and decodes it.
func decodeSimulate(raw []byte) (SimulateRequest, error) {
	var req SimulateRequest

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := simulateSchema.Validate(doc); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// year is the calendar year a request starts from: the first decision
// record's year, or the start of the horizon when there are none.
func (req SimulateRequest) year(start int) int {
	if len(req.DecisionVars) > 0 {
		return req.DecisionVars[0].Year
	}
	return start
}

// decisions shapes the submitted records for the mode. Ensembles replay
// the last record every year, sequential steps apply the latest record
// once and predict runs look records up by the decade their year falls in.
func (req SimulateRequest) decisions(mode engine.Mode, p params.Set) engine.Decisions {
	switch mode {
	case engine.ModeSequential:
		if n := len(req.DecisionVars); n > 0 {
			// The climate scenario always comes from the first record.
			last := req.DecisionVars[n-1]
			last.ClimateScenario = req.DecisionVars[0].ClimateScenario
			return engine.Single(last)
		}
		return engine.Fixed(nil)
	case engine.ModePredict:
		return engine.DecadeTable(req.DecisionVars, p)
	default:
		return engine.Fixed(req.DecisionVars)
	}
}

// engineRequest converts the wire request. Sequential requests without a
// state resume the stored session when one exists.
func (s *Server) engineRequest(req SimulateRequest, mode engine.Mode) (engine.Request, error) {
	er := engine.Request{
		Mode:      mode,
		Year:      req.year(s.Orch.Params.StartYear),
		Decisions: req.decisions(mode, s.Orch.Params),
		Seed:      req.Seed,
	}
	if req.NumSimulations != nil {
		er.NumSimulations = *req.NumSimulations
	}

	switch {
	case req.Current != nil:
		er.Initial = *req.Current
	case mode == engine.ModeSequential && s.DB != nil:
		sess, err := s.DB.LoadSession(req.UserName, req.ScenarioName)
		switch {
		case err == nil:
			er.Initial = sess.State
			if len(req.DecisionVars) == 0 {
				er.Year = sess.Year + 1
			}
		case errors.Is(err, persistence.ErrSessionNotFound):
		default:
			return er, fmt.Errorf("load session: %w", err)
		}
	}
	return er, nil
}
