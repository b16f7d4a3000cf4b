package autopilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sethvargo/go-retry"
)

// Pilot runs observe → decide → act cycles.
type Pilot struct {
	Observer *Observer
	Actor    *Actor
	Memory   *Memory

	// Generations stops Run after this many completed generations (0 = unbounded).
	Generations int
	// Interval is the pause between steps.
	Interval time.Duration
}

// New creates a pilot for the API at baseURL.
func New(baseURL, adminKey string, mem *Memory) *Pilot {
	if mem == nil {
		mem = NewMemory()
	}
	return &Pilot{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL, adminKey),
		Memory:   mem,
		Interval: 500 * time.Millisecond,
	}
}

// Run steps until ctx ends or the generation budget is spent.
func (p *Pilot) Run(ctx context.Context) error {
	first, err := p.Observer.Observe(ctx)
	if err != nil {
		return fmt.Errorf("initial observation: %w", err)
	}
	start := first.State.Generation
	slog.Info("autopilot starting", "generation", start, "budget", p.Generations)

	for {
		d, state, err := p.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("autopilot step failed", "action", d.Action, "error", err)
		}
		if state != nil && p.Generations > 0 && state.Generation-start >= p.Generations {
			slog.Info("autopilot generation budget reached", "generations", p.Generations)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Interval):
		}
	}
}

// Step executes one cycle and returns the decision with the resulting state.
func (p *Pilot) Step(ctx context.Context) (Decision, *StateView, error) {
	obs, err := p.Observer.Observe(ctx)
	if err != nil {
		return Decision{}, nil, fmt.Errorf("observe: %w", err)
	}
	health := Triage(obs)

	d := Decide(obs, health, p.Memory)
	slog.Debug("decision made", "action", d.Action, "option", d.Option, "rationale", d.Rationale)

	state, err := p.Actor.Act(ctx, d)
	switch {
	case errors.Is(err, ErrRejected):
		slog.Debug("action rejected, will re-observe", "action", d.Action, "stage", state.Stage)
		return d, state, nil
	case err != nil:
		return d, nil, fmt.Errorf("act %s: %w", d.Action, err)
	case state == nil:
		return d, &obs.State, nil
	}

	p.learn(obs, health, d, state)
	return d, state, nil
}

// learn folds the outcome of an accepted action into memory.
func (p *Pilot) learn(before *Observation, health Assessment, d Decision, after *StateView) {
	switch d.Action {
	case ActionAnswer:
		q := after.Quiz
		if q.CorrectIndex != nil {
			p.Memory.Learn(q.ID, *q.CorrectIndex)
		}
		rec := CycleRecord{
			Generation:      after.Generation,
			Environment:     after.Environment.Name,
			Alive:           after.Stats.Alive,
			GreenAlleleFreq: after.Stats.GreenAlleleFreq,
			Level:           health.Level,
			QuizCorrect:     q.Correct,
		}
		p.Memory.Record(rec)
		slog.Info("quiz answered",
			"question", q.ID,
			"option", d.Option,
			"correct", q.Correct != nil && *q.Correct,
		)
	case ActionAdvance:
		if before.State.Stage == "POPULATION_CHANGE" {
			slog.Info(humanize.Ordinal(before.State.Generation)+" generation observed",
				"environment", after.Environment.Name,
				"green", after.Stats.Green,
				"hybrid", after.Stats.Hybrid,
				"brown", after.Stats.Brown,
				"green_trend", fmt.Sprintf("%+.2f", health.GreenTrend),
				"level", health.Level,
			)
		}
	}
}

// WaitForAPI polls the state endpoint with exponential backoff until it
// responds, giving up after maxWait.
func WaitForAPI(ctx context.Context, baseURL string, maxWait time.Duration) error {
	client := &http.Client{Timeout: 5 * time.Second}
	b := retry.WithMaxDuration(maxWait, retry.WithCappedDuration(30*time.Second, retry.NewExponential(2*time.Second)))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/state", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			slog.Info("simulator not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			slog.Info("simulator not ready, retrying", "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
		}
		slog.Info("simulator API is ready")
		return nil
	})
}
