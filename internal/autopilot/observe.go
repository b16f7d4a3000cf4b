// Package autopilot implements an unattended learner.
// It observes the simulator via the API, decides on the next action
// deterministically, and acts via the action endpoints.
package autopilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// errUnavailable marks an endpoint answering 503 (e.g. no history archive).
var errUnavailable = errors.New("endpoint unavailable")

// Observation holds all data collected during an observation cycle.
type Observation struct {
	State   StateView
	History []GenerationSummary // nil when the server keeps no archive
}

// StateView mirrors the fields of GET /api/v1/state the autopilot reads.
type StateView struct {
	Stage       string `json:"stage"`
	Generation  int    `json:"generation"`
	Processing  bool   `json:"processing"`
	Environment struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"environment"`
	Stats Stats    `json:"stats"`
	Quiz  QuizView `json:"quiz"`
	Log   []string `json:"log"`
}

// Stats mirrors the phenotype census.
type Stats struct {
	Green           int     `json:"green"`
	Hybrid          int     `json:"hybrid"`
	Brown           int     `json:"brown"`
	Alive           int     `json:"alive"`
	GreenAlleleFreq float64 `json:"green_allele_freq"`
}

// QuizView mirrors the quiz block of the state.
type QuizView struct {
	Active       bool     `json:"active"`
	Index        int      `json:"index"`
	ID           int      `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Answered     *int     `json:"answered"`
	Correct      *bool    `json:"correct"`
	CorrectIndex *int     `json:"correct_index"`
}

// GenerationSummary mirrors items from GET /api/v1/history.
type GenerationSummary struct {
	Generation      int     `json:"generation"`
	Environment     string  `json:"environment"`
	EnvironmentType string  `json:"environment_type"`
	Green           int     `json:"green"`
	Hybrid          int     `json:"hybrid"`
	Brown           int     `json:"brown"`
	Alive           int     `json:"alive"`
	GreenAlleleFreq float64 `json:"green_allele_freq"`
	Eaten           int     `json:"eaten"`
	Extinct         bool    `json:"extinct"`
}

// Observer fetches simulator state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the state and, when archived, the session history.
func (o *Observer) Observe(ctx context.Context) (*Observation, error) {
	obs := &Observation{}

	if err := o.fetchJSON(ctx, "/api/v1/state", &obs.State); err != nil {
		return nil, fmt.Errorf("fetch state: %w", err)
	}

	var history struct {
		Generations []GenerationSummary `json:"generations"`
	}
	switch err := o.fetchJSON(ctx, "/api/v1/history", &history); {
	case errors.Is(err, errUnavailable):
	case err != nil:
		return nil, fmt.Errorf("fetch history: %w", err)
	default:
		obs.History = history.Generations
	}

	return obs, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("GET %s: %w", path, errUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
