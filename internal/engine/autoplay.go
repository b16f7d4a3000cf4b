package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Autoplay drives an engine without a learner: it advances every Interval,
// answers each quiz question correctly and dismisses it.
type Autoplay struct {
	Engine   *Engine
	Interval time.Duration // base step interval (default 1 second)
	Speed    float64       // multiplier: 1.0 = real-time, 0 = paused

	// Generations stops the loop after this many completed generations (0 = unbounded).
	Generations int

	running atomic.Bool

	// OnStep is called after each accepted action.
	OnStep func(Snapshot)
}

// NewAutoplay creates an autoplay driver with default settings.
func NewAutoplay(e *Engine) *Autoplay {
	return &Autoplay{
		Engine:   e,
		Interval: time.Second,
		Speed:    1.0,
	}
}

// Running reports whether Run is active.
func (a *Autoplay) Running() bool {
	return a.running.Load()
}

// Run steps the engine until ctx is done or the generation budget is spent.
func (a *Autoplay) Run(ctx context.Context) {
	a.running.Store(true)
	defer a.running.Store(false)

	start := a.Engine.Snapshot().Generation
	slog.Info("autoplay started", "generation", start, "speed", a.Speed)

	for {
		if a.Generations > 0 && a.Engine.Snapshot().Generation-start >= a.Generations {
			slog.Info("autoplay generation budget reached", "generations", a.Generations)
			return
		}

		wait := 100 * time.Millisecond
		if a.Speed > 0 {
			began := time.Now()
			a.Step()
			target := time.Duration(float64(a.Interval) / a.Speed)
			wait = target - time.Since(began)
		}

		select {
		case <-ctx.Done():
			slog.Info("autoplay stopped", "generation", a.Engine.Snapshot().Generation)
			return
		case <-time.After(max(wait, 0)):
		}
	}
}

// Step performs the single action appropriate to the current stage.
func (a *Autoplay) Step() bool {
	snap := a.Engine.Snapshot()

	var ok bool
	switch {
	case snap.Stage != StageQuiz:
		ok = a.Engine.Advance()
	case snap.Quiz.Answered == nil:
		correct := a.Engine.Config().Quiz.At(snap.Quiz.Index).CorrectIndex
		ok = a.Engine.AnswerQuiz(correct)
	default:
		ok = a.Engine.FinishQuiz()
	}

	if ok && a.OnStep != nil {
		a.OnStep(a.Engine.Snapshot())
	}
	return ok
}
