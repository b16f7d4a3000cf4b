package autopilot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/talgya/selection-lab/internal/api"
	"github.com/talgya/selection-lab/internal/engine"
	"github.com/talgya/selection-lab/internal/entropy"
)

func newSimulator(t *testing.T) (*engine.Engine, *httptest.Server) {
	t.Helper()
	eng := engine.New(engine.DefaultConfig(), entropy.Seeded(3), engine.Instant{})
	srv := &api.Server{Engine: eng, ActionLimit: 10000}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return eng, ts
}

func TestPilotRunsGenerationBudget(t *testing.T) {
	eng, ts := newSimulator(t)

	p := New(ts.URL, "", nil)
	p.Interval = 0
	p.Generations = 3

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := eng.Snapshot().Generation; got < 4 {
		t.Fatalf("expected at least 3 completed generations, engine at generation %d", got)
	}
	if len(p.Memory.Answers) < 2 {
		t.Fatalf("expected answers learned for 2 questions, got %d", len(p.Memory.Answers))
	}
	for id, option := range p.Memory.Answers {
		q := eng.Config().Quiz[id-1]
		if q.ID != id || q.CorrectIndex != option {
			t.Fatalf("question %d: learned %d, correct is %d", id, option, q.CorrectIndex)
		}
	}
	if len(p.Memory.Records) == 0 {
		t.Fatal("no cycle records kept")
	}
}

func TestDecide(t *testing.T) {
	mem := NewMemory()
	mem.Learn(2, 3)
	answered := 1

	cases := []struct {
		name  string
		state StateView
		want  Decision
	}{
		{"busy", StateView{Stage: "SELECTION", Processing: true}, Decision{Action: ActionWait}},
		{"advance", StateView{Stage: "MUTATION"}, Decision{Action: ActionAdvance}},
		{"remembered", StateView{Stage: "QUIZ", Quiz: QuizView{ID: 2, Options: make([]string, 4)}}, Decision{Action: ActionAnswer, Option: 3}},
		{"guess", StateView{Stage: "QUIZ", Quiz: QuizView{ID: 5, Options: make([]string, 4)}}, Decision{Action: ActionAnswer, Option: 0}},
		{"finish", StateView{Stage: "QUIZ", Quiz: QuizView{ID: 5, Answered: &answered}}, Decision{Action: ActionFinish}},
	}
	for _, c := range cases {
		obs := &Observation{State: c.state}
		got := Decide(obs, Triage(obs), mem)
		if got.Action != c.want.Action || got.Option != c.want.Option {
			t.Errorf("%s: got %s/%d, want %s/%d", c.name, got.Action, got.Option, c.want.Action, c.want.Option)
		}
		if got.Rationale == "" {
			t.Errorf("%s: empty rationale", c.name)
		}
	}
}

func TestMemoryGuessCyclesAndLearns(t *testing.T) {
	mem := NewMemory()
	var got []int
	for i := 0; i < 5; i++ {
		got = append(got, mem.Guess(7, 4))
	}
	want := []int{0, 1, 2, 3, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("guesses %v, want %v", got, want)
		}
	}

	mem.Learn(7, 2)
	if option, ok := mem.Answer(7); !ok || option != 2 {
		t.Fatalf("Answer(7) = %d, %v", option, ok)
	}
	if mem.Guess(7, 4) != 0 {
		t.Fatal("learning should clear guess history")
	}
}

func TestMemoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := NewMemory()
	mem.Learn(1, 2)
	for i := 0; i < maxRecords+5; i++ {
		mem.Record(CycleRecord{Generation: i})
	}
	if err := mem.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := LoadMemory(path)
	if option, ok := loaded.Answer(1); !ok || option != 2 {
		t.Fatalf("answer not persisted: %d, %v", option, ok)
	}
	if len(loaded.Records) != maxRecords || loaded.Records[0].Generation != 5 {
		t.Fatalf("records not trimmed: len=%d first=%d", len(loaded.Records), loaded.Records[0].Generation)
	}

	if fresh := LoadMemory(filepath.Join(t.TempDir(), "missing.json")); len(fresh.Answers) != 0 {
		t.Fatal("missing file should yield empty memory")
	}
}

func TestTriage(t *testing.T) {
	obs := &Observation{
		State: StateView{Stats: Stats{Alive: 5}},
		History: []GenerationSummary{
			{Generation: 1, GreenAlleleFreq: 0.5, EnvironmentType: "LUSH"},
			{Generation: 2, GreenAlleleFreq: 0.6, EnvironmentType: "MEADOW"},
			{Generation: 2, Extinct: true, EnvironmentType: "ARID"},
			{Generation: 2, GreenAlleleFreq: 0.8, EnvironmentType: "ARID"},
		},
	}
	a := Triage(obs)
	if a.Extinctions != 1 || a.Generations != 3 || a.PressureFrom != "ARID" {
		t.Fatalf("unexpected assessment %+v", a)
	}
	if a.GreenTrend < 0.29 || a.GreenTrend > 0.31 {
		t.Fatalf("green trend = %v, want 0.3", a.GreenTrend)
	}
	if a.Level != "WATCH" {
		t.Fatalf("level = %s, want WATCH", a.Level)
	}

	if Triage(&Observation{State: StateView{Stats: Stats{Alive: 2}}}).Level != "CRITICAL" {
		t.Fatal("two survivors should be critical")
	}
}

func TestActorRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"stage":"MUTATION","generation":1}`))
	}))
	defer ts.Close()

	a := NewActor(ts.URL, "")
	a.Backoff = func() retry.Backoff { return retry.WithMaxRetries(5, retry.NewConstant(time.Millisecond)) }

	state, err := a.Act(context.Background(), Decision{Action: ActionAdvance})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if state.Stage != "MUTATION" || calls.Load() != 3 {
		t.Fatalf("stage=%s calls=%d", state.Stage, calls.Load())
	}
}

func TestActorConflictIsRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing admin token")
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"stage":"SELECTION","processing":true}`))
	}))
	defer ts.Close()

	state, err := NewActor(ts.URL, "key").Reset(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if state == nil || !state.Processing {
		t.Fatalf("rejection should carry the current state, got %+v", state)
	}
}

func TestActorClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer ts.Close()

	a := NewActor(ts.URL, "")
	a.Backoff = func() retry.Backoff { return retry.WithMaxRetries(5, retry.NewConstant(time.Millisecond)) }
	if _, err := a.Act(context.Background(), Decision{Action: ActionAnswer, Option: 9}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx should not be retried, got %d calls", calls.Load())
	}
}

func TestWaitForAPI(t *testing.T) {
	_, ts := newSimulator(t)
	if err := WaitForAPI(context.Background(), ts.URL, time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	start := time.Now()
	if err := WaitForAPI(context.Background(), down.URL, 50*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("max wait not honored")
	}
}
