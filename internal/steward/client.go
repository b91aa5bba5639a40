// Package steward drives a running simulator through sequential mode.
// It steps the API one year at a time under a fixed policy, carrying the
// returned state into the next request.
package steward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/scoring"
)

// SequentialMode is the mode label the steward sends.
const SequentialMode = string(engine.ModeSequential)

// StepRequest mirrors the body of POST /api/v1/simulate.
type StepRequest struct {
	UserName     string                `json:"user_name"`
	ScenarioName string                `json:"scenario_name"`
	Mode         string                `json:"mode"`
	DecisionVars []engine.DecisionVars `json:"decision_vars,omitempty"`
	Current      *engine.InitialValues `json:"current_year_index_seq,omitempty"`
	Seed         uint64                `json:"seed,omitempty"`
}

// StepResult mirrors the response of POST /api/v1/simulate.
type StepResult struct {
	ScenarioName string                `json:"scenario_name"`
	Data         []engine.Record       `json:"data"`
	BlockScores  []scoring.Block       `json:"block_scores"`
	Seed         uint64                `json:"seed"`
	RunID        string                `json:"run_id"`
	State        *engine.InitialValues `json:"state"`
}

// Client talks to the simulator API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client targeting the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WaitReady polls /health with exponential backoff until it responds or
// timeout passes.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	backoff := 250 * time.Millisecond
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(timeout)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := c.HTTPClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("simulator API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("simulator API not ready after %s", timeout)
		}
		slog.Info("simulator not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Simulate sends one request to POST /api/v1/simulate.
func (c *Client) Simulate(ctx context.Context, step StepRequest) (*StepResult, error) {
	body, err := json.Marshal(step)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/simulate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST simulate: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("simulate failed (%d): %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var result StepResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
