package autopilot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrRejected reports a 409: the simulator refused the action in its
// current state. The state returned alongside it is current.
var ErrRejected = errors.New("action rejected")

// Actor executes decisions via the action endpoints.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client

	// Backoff paces retries of rate-limited or failed requests.
	Backoff func() retry.Backoff
}

// NewActor creates an Actor targeting the given API base URL.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			// Selection replays the hunt before answering.
			Timeout: 2 * time.Minute,
		},
		Backoff: func() retry.Backoff {
			return retry.WithMaxRetries(5, retry.WithCappedDuration(10*time.Second, retry.NewExponential(500*time.Millisecond)))
		},
	}
}

// Act performs a decision and returns the resulting state.
// ActionWait performs no request and returns nil.
func (a *Actor) Act(ctx context.Context, d Decision) (*StateView, error) {
	switch d.Action {
	case ActionWait:
		return nil, nil
	case ActionAdvance:
		return a.post(ctx, "/api/v1/advance", nil)
	case ActionAnswer:
		return a.post(ctx, "/api/v1/quiz/answer", map[string]int{"option": d.Option})
	case ActionFinish:
		return a.post(ctx, "/api/v1/quiz/finish", nil)
	}
	return nil, fmt.Errorf("unknown action %q", d.Action)
}

// Reset restarts the simulation (requires the admin key when the server has one).
func (a *Actor) Reset(ctx context.Context) (*StateView, error) {
	return a.post(ctx, "/api/v1/reset", nil)
}

func (a *Actor) post(ctx context.Context, path string, payload any) (*StateView, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("marshal %s: %w", path, err)
		}
	}

	var (
		state  StateView
		status int
	)
	err := retry.Do(ctx, a.Backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if a.AdminKey != "" {
			req.Header.Set("Authorization", "Bearer "+a.AdminKey)
		}

		resp, err := a.HTTPClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("POST %s: %w", path, err))
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read response: %w", err))
		}
		status = resp.StatusCode

		switch {
		case status == http.StatusTooManyRequests:
			if wait, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(wait) * time.Second):
				}
			}
			return retry.RetryableError(fmt.Errorf("POST %s: rate limited", path))
		case status >= 500:
			return retry.RetryableError(fmt.Errorf("POST %s returned %d: %s", path, status, respBody))
		case status != http.StatusOK && status != http.StatusConflict:
			return fmt.Errorf("POST %s returned %d: %s", path, status, respBody)
		}

		if err := json.Unmarshal(respBody, &state); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusConflict {
		return &state, ErrRejected
	}
	return &state, nil
}
