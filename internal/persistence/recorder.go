package persistence

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/selection-lab/internal/engine"
)

// Recorder archives engine output into the current session. Events are
// buffered and written in one transaction when their generation closes.
type Recorder struct {
	DB     *DB
	Seed   int64
	Config engine.Config

	mu      sync.Mutex
	session string
	pending []engine.Event
}

// NewRecorder creates a recorder and opens its first session.
func NewRecorder(db *DB, seed int64, cfg engine.Config) (*Recorder, error) {
	r := &Recorder{DB: db, Seed: seed, Config: cfg}
	if err := r.Rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Session returns the current session ID.
func (r *Recorder) Session() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Rotate flushes buffered events and starts a new session.
func (r *Recorder) Rotate() error {
	if err := r.Flush(); err != nil {
		return err
	}
	id, err := r.DB.StartSession(r.Seed, r.Config)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	r.mu.Lock()
	r.session = id
	r.mu.Unlock()
	return nil
}

// RecordEvent buffers an event. Suitable as engine.OnEvent.
func (r *Recorder) RecordEvent(e engine.Event) {
	r.mu.Lock()
	r.pending = append(r.pending, e)
	r.mu.Unlock()
}

// RecordGeneration writes buffered events and the generation summary.
// Suitable as engine.OnGeneration.
func (r *Recorder) RecordGeneration(rec engine.GenerationRecord) {
	if err := r.Flush(); err != nil {
		slog.Error("archive observations failed", "generation", rec.Generation, "error", err)
	}
	if err := r.DB.SaveGeneration(r.Session(), rec); err != nil {
		slog.Error("archive generation failed", "generation", rec.Generation, "error", err)
	}
}

// Flush writes buffered events.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	events := r.pending
	session := r.session
	r.pending = nil
	r.mu.Unlock()

	if session == "" {
		return nil
	}
	return r.DB.SaveObservations(session, events)
}

// History returns the current session's generations, oldest first.
func (r *Recorder) History(limit int) ([]GenerationRow, error) {
	return r.DB.Generations(r.Session(), limit)
}
