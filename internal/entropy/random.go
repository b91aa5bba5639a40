// Package entropy owns every random draw the simulation makes.
// A Stream is a seeded generator for one run; seeds come from the caller,
// from random.org when a key is configured, or from crypto/rand.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand/v2"
	"net/http"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Stream draws the stochastic forcings of one run. It is not safe for
// concurrent use; ensemble runs each own a Stream.
type Stream struct {
	src mrand.Source
}

// NewStream returns a PCG-backed stream. The same (seed, run) pair always
// produces the same sequence of draws.
func NewStream(seed, run uint64) *Stream {
	return &Stream{src: mrand.NewPCG(seed, run)}
}

// Normal draws from N(mu, sigma). A non-positive sigma returns mu.
func (s *Stream) Normal(mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

// Poisson draws an event count with the given rate. A non-positive rate
// yields zero events.
func (s *Stream) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: s.src}.Rand())
}

// Gumbel draws n independent right-skewed Gumbel variates with location mu
// and scale beta.
func (s *Stream) Gumbel(mu, beta float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if beta <= 0 {
		out := make([]float64, n)
		for i := range out {
			out[i] = mu
		}
		return out
	}
	g := distuv.GumbelRight{Mu: mu, Beta: beta, Src: s.src}
	out := make([]float64, n)
	for i := range out {
		out[i] = g.Rand()
	}
	return out
}

// Client fetches seed material from random.org.
type Client struct {
	apiKey string
	client *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a fresh 64-bit seed, preferring random.org and falling back
// to crypto/rand when the client is nil or the API call fails.
func Seed(c *Client) uint64 {
	if c.Enabled() {
		seed, err := c.fetchSeed()
		if err == nil {
			return seed
		}
		slog.Debug("random.org seed failed, using crypto/rand", "error", err)
	}
	return cryptoSeed()
}

func (c *Client) fetchSeed() (uint64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      2,
			"min":    0,
			"max":    1<<30 - 1,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.client.Post("https://api.random.org/json-rpc/4/invoke", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("random.org fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []uint64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("random.org API error: %s", result.Error.Message)
	}
	data := result.Result.Random.Data
	if len(data) < 2 {
		return 0, fmt.Errorf("random.org returned %d integers", len(data))
	}

	seed := data[0]<<30 | data[1]
	slog.Debug("random.org seed fetched")
	return seed, nil
}

// cryptoSeed generates a seed using crypto/rand.
func cryptoSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to the clock.
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(buf[:])
}
