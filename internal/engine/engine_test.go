package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/talgya/selection-lab/internal/entropy"
	"github.com/talgya/selection-lab/internal/genetics"
	"github.com/talgya/selection-lab/internal/habitat"
	"github.com/talgya/selection-lab/internal/population"
)

func newTestEngine(t *testing.T, src entropy.Source, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, src, Instant{})
}

// setState forces engine state for scenario tests.
func setState(e *Engine, stage Stage, kind habitat.Kind, pop population.Population) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stage = stage
	if env, ok := habitat.ByKind(kind); ok {
		e.env = env
	}
	if pop != nil {
		e.pop = pop
	}
	e.refreshStats()
}

func uniformPop(n int, g genetics.Genotype) population.Population {
	pop := make(population.Population, n)
	for i := range pop {
		pop[i] = population.Individual{
			ID:       population.IndividualID(1000 + i),
			Genotype: g,
			Alive:    true,
			Position: population.Position{X: float64(10 + i), Y: 50},
		}
	}
	return pop
}

func assertInvariants(t *testing.T, snap Snapshot) {
	t.Helper()
	if snap.Stats.Total() != len(snap.Population) {
		t.Fatalf("stats total %d != population %d", snap.Stats.Total(), len(snap.Population))
	}
	for _, b := range snap.Population {
		if b.Color != genetics.ColorOf(b.Genotype) {
			t.Fatalf("beetle %s color %s does not match genotype %s", b.Label, b.Color, b.Genotype)
		}
	}
	if len(snap.Log) > LogCapacity {
		t.Fatalf("log holds %d entries", len(snap.Log))
	}
}

func TestNewEngineInitialState(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(1), nil)
	snap := e.Snapshot()
	if snap.Stage != StageVariation || snap.Generation != 1 {
		t.Fatalf("unexpected start: stage %s generation %d", snap.Stage, snap.Generation)
	}
	if len(snap.Population) != population.Size {
		t.Fatalf("expected %d beetles, got %d", population.Size, len(snap.Population))
	}
	if snap.Environment.Kind != habitat.First().Kind {
		t.Fatalf("expected first environment, got %s", snap.Environment.Name)
	}
	if len(snap.Log) != 1 || snap.Log[0] != InitialMessage {
		t.Fatalf("unexpected initial log %v", snap.Log)
	}
	if snap.Predator.Visible {
		t.Fatal("predator should start hidden")
	}
	assertInvariants(t, snap)
}

func TestCycleVisitsAllStagesInOrder(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(2), nil)
	want := []Stage{
		StageMutation, StageEnvironmentChange, StageSelection, StageInheritance,
		StagePopulationSummary, StageQuiz,
	}
	for i, next := range want {
		if !e.Advance() {
			t.Fatalf("advance %d rejected", i)
		}
		snap := e.Snapshot()
		if snap.Stage != next {
			// The kill cap leaves at least six survivors, so no collapse rewinds the cycle.
			t.Fatalf("after advance %d: stage %s, want %s", i, snap.Stage, next)
		}
		assertInvariants(t, snap)
		if len(snap.Population) != population.Size {
			t.Fatalf("population size %d after %s", len(snap.Population), snap.Stage)
		}
	}

	if e.Advance() {
		t.Fatal("advance must be rejected during the quiz")
	}
	if !e.FinishQuiz() {
		t.Fatal("finish quiz rejected")
	}
	snap := e.Snapshot()
	if snap.Stage != StageVariation {
		t.Fatalf("expected VARIATION after quiz, got %s", snap.Stage)
	}
	if snap.Generation != 2 {
		t.Fatalf("expected generation 2, got %d", snap.Generation)
	}
	if snap.Quiz.Index != 1 {
		t.Fatalf("expected quiz index 1, got %d", snap.Quiz.Index)
	}
}

func TestMutationReproducibleUnderSeed(t *testing.T) {
	a := newTestEngine(t, entropy.Seeded(11), func(c *Config) { c.MutationRate = 0.5 })
	b := newTestEngine(t, entropy.Seeded(11), func(c *Config) { c.MutationRate = 0.5 })
	for _, e := range []*Engine{a, b} {
		e.Advance() // variation
		e.Advance() // mutation
	}
	sa, sb := a.Snapshot(), b.Snapshot()
	if sa.Log[0] != sb.Log[0] {
		t.Fatalf("mutation logs differ: %q vs %q", sa.Log[0], sb.Log[0])
	}
	for i := range sa.Population {
		if sa.Population[i].Genotype != sb.Population[i].Genotype {
			t.Fatalf("beetle %d differs: %s vs %s", i, sa.Population[i].Genotype, sb.Population[i].Genotype)
		}
	}
	if !strings.HasPrefix(sa.Log[0], "DNA replication:") {
		t.Fatalf("unexpected mutation log %q", sa.Log[0])
	}
}

func TestSelectionRespectsKillCap(t *testing.T) {
	for _, limit := range []int{12, 14} {
		e := newTestEngine(t, entropy.Fixed(0.0), func(c *Config) { c.KillCap = limit })
		setState(e, StageSelection, habitat.KindLush, uniformPop(population.Size, genetics.BB))

		if !e.Advance() {
			t.Fatal("selection rejected")
		}
		snap := e.Snapshot()
		dead := population.Size - snap.Stats.Alive
		if dead != limit {
			t.Fatalf("cap %d: expected exactly %d deaths, got %d", limit, limit, dead)
		}
		if snap.Stage != StageInheritance {
			t.Fatalf("expected INHERITANCE, got %s", snap.Stage)
		}
		if len(snap.Population) != population.Size {
			t.Fatal("dead beetles must stay in the sequence until turnover")
		}
		assertInvariants(t, snap)
	}
}

func TestSelectionFewerCandidatesThanCap(t *testing.T) {
	// Draw 0.5: GG survives lush (death band 0.02), BB does not (0.95).
	pop := uniformPop(population.Size, genetics.GG)
	for i := 0; i < 3; i++ {
		pop[i].Genotype = genetics.BB
	}
	e := newTestEngine(t, entropy.Fixed(0.5), nil)
	setState(e, StageSelection, habitat.KindLush, pop)
	e.Advance()

	snap := e.Snapshot()
	if got := population.Size - snap.Stats.Alive; got != 3 {
		t.Fatalf("expected min(3, cap) = 3 deaths, got %d", got)
	}
	for i, b := range snap.Population {
		if (i < 3) == b.Alive {
			t.Fatalf("beetle %d alive=%v, wrong victim", i, b.Alive)
		}
	}
}

func TestSelectionNoDeathsWhenDrawsHigh(t *testing.T) {
	e := newTestEngine(t, entropy.Fixed(0.99), nil)
	setState(e, StageSelection, habitat.KindArid, uniformPop(5, genetics.BB))

	e.Advance()
	snap := e.Snapshot()
	if snap.Stats.Alive != 5 {
		t.Fatalf("expected all 5 to survive, got %d", snap.Stats.Alive)
	}
	if !strings.Contains(snap.Log[0], "0 beetles were eaten") {
		t.Fatalf("unexpected selection log %q", snap.Log[0])
	}

	e.Advance() // inheritance
	snap = e.Snapshot()
	if snap.Stage != StagePopulationSummary {
		t.Fatalf("expected POPULATION_CHANGE, got %s", snap.Stage)
	}
	if len(snap.Population) != population.Size || snap.Stats.Brown != population.Size {
		t.Fatalf("expected %d brown offspring, got %+v", population.Size, snap.Stats)
	}
	for _, b := range snap.Population {
		if !b.Alive || b.Generation != 2 {
			t.Fatalf("unexpected offspring %+v", b.Individual)
		}
	}
}

func TestSelectionKillSequenceOrdering(t *testing.T) {
	var e *Engine
	var reveals, settles int
	deadBefore := 0

	pacer := PacerFunc(func(d time.Duration) {
		snap := e.Snapshot()
		dead := population.Size - snap.Stats.Alive
		switch d {
		case DefaultRevealDelay:
			reveals++
			if !snap.Predator.Visible {
				t.Fatal("predator hidden during reveal")
			}
			if dead != deadBefore {
				t.Fatalf("victim killed before the reveal wait: dead=%d", dead)
			}
			found := false
			for _, b := range snap.Population {
				if b.Alive && b.Position == snap.Predator.Position {
					found = true
				}
			}
			if !found {
				t.Fatal("predator is not over a living beetle")
			}
		case DefaultSettleDelay:
			settles++
			if dead != deadBefore+1 {
				t.Fatalf("expected exactly one new death, dead=%d before=%d", dead, deadBefore)
			}
			deadBefore = dead
		default:
			t.Fatalf("unexpected delay %v", d)
		}

		if e.Advance() {
			t.Fatal("advance accepted while selection in flight")
		}
		if e.ResetAll() {
			t.Fatal("reset accepted while selection in flight")
		}
		if !snap.Processing {
			t.Fatal("snapshot should report processing during selection")
		}
	})

	e = New(DefaultConfig(), entropy.Seeded(21), pacer)
	setState(e, StageSelection, habitat.KindArid, uniformPop(population.Size, genetics.GG))
	e.Advance()

	snap := e.Snapshot()
	if reveals != settles || reveals != population.Size-snap.Stats.Alive {
		t.Fatalf("reveals=%d settles=%d deaths=%d", reveals, settles, population.Size-snap.Stats.Alive)
	}
	if reveals == 0 {
		t.Fatal("expected at least one kill in a hostile habitat")
	}
	if snap.Predator.Visible || snap.Processing {
		t.Fatal("predator should be hidden and engine idle after selection")
	}
}

func TestExtinctionRecovery(t *testing.T) {
	var recs []GenerationRecord
	e := newTestEngine(t, entropy.Seeded(5), nil)
	e.OnGeneration = func(r GenerationRecord) { recs = append(recs, r) }

	pop := uniformPop(population.Size, genetics.GG)
	for i := 1; i < len(pop); i++ {
		pop[i].Alive = false
	}
	setState(e, StageInheritance, habitat.KindArid, pop)

	if !e.Advance() {
		t.Fatal("inheritance rejected")
	}
	snap := e.Snapshot()
	if snap.Stage != StageVariation {
		t.Fatalf("expected VARIATION after collapse, got %s", snap.Stage)
	}
	if snap.Stats.Alive != population.Size || len(snap.Population) != population.Size {
		t.Fatalf("expected %d fresh beetles, got %+v", population.Size, snap.Stats)
	}
	if !strings.Contains(snap.Log[0], "too small") {
		t.Fatalf("unexpected log %q", snap.Log[0])
	}
	if snap.Generation != 1 {
		t.Fatalf("collapse should not count a generation, got %d", snap.Generation)
	}
	if len(recs) != 1 || !recs[0].Extinct {
		t.Fatalf("expected one extinct record, got %+v", recs)
	}
}

func TestExtinctionThresholdZeroSurvivorsOnly(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(5), func(c *Config) { c.MinViable = 1 })
	pop := uniformPop(population.Size, genetics.GB)
	for i := 1; i < len(pop); i++ {
		pop[i].Alive = false
	}
	setState(e, StageInheritance, habitat.KindMeadow, pop)
	e.Advance()
	if snap := e.Snapshot(); snap.Stage != StagePopulationSummary {
		t.Fatalf("a lone survivor reproduces under MinViable=1, got stage %s", snap.Stage)
	}
}

func TestQuizAnswerRecordedOnce(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(3), nil)
	if e.AnswerQuiz(0) {
		t.Fatal("answer accepted outside the quiz")
	}
	setState(e, StageQuiz, habitat.KindLush, nil)

	if e.AnswerQuiz(99) {
		t.Fatal("out-of-range option accepted")
	}
	if !e.AnswerQuiz(0) {
		t.Fatal("first answer rejected")
	}
	if e.AnswerQuiz(1) {
		t.Fatal("second answer accepted")
	}
	snap := e.Snapshot()
	if snap.Quiz.Answered == nil || *snap.Quiz.Answered != 0 {
		t.Fatalf("expected answer 0, got %v", snap.Quiz.Answered)
	}
	if snap.Quiz.Correct == nil || snap.Quiz.Explanation == "" {
		t.Fatal("correctness and explanation should be revealed after answering")
	}

	if !e.FinishQuiz() {
		t.Fatal("finish rejected")
	}
	snap = e.Snapshot()
	if snap.Quiz.Answered != nil || snap.Quiz.Explanation != "" {
		t.Fatal("answer should be cleared after finishing")
	}
	if e.FinishQuiz() {
		t.Fatal("finish accepted outside the quiz")
	}
}

func TestQuizIndexCycles(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(3), nil)
	n := len(e.Config().Quiz)
	for i := 0; i < n; i++ {
		setState(e, StageQuiz, habitat.KindLush, nil)
		e.FinishQuiz()
	}
	if idx := e.Snapshot().Quiz.Index; idx != 0 {
		t.Fatalf("expected quiz index to wrap to 0, got %d", idx)
	}
}

func TestResetAll(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(8), nil)
	for i := 0; i < 6; i++ {
		e.Advance()
	}
	e.FinishQuiz()
	before := e.Snapshot()

	if !e.ResetAll() {
		t.Fatal("reset rejected")
	}
	snap := e.Snapshot()
	if snap.Stage != StageVariation || snap.Generation != 1 || snap.Quiz.Index != 0 {
		t.Fatalf("unexpected state after reset: %s gen %d quiz %d", snap.Stage, snap.Generation, snap.Quiz.Index)
	}
	if len(snap.Log) != 1 || snap.Log[0] != InitialMessage {
		t.Fatalf("unexpected log after reset %v", snap.Log)
	}
	if snap.Environment.Kind != habitat.First().Kind {
		t.Fatal("reset should restore the first environment")
	}
	if snap.Population[0].ID == before.Population[0].ID {
		t.Fatal("reset should create new beetles")
	}
	assertInvariants(t, snap)
}

func TestLogKeepsFiveMostRecent(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(4), nil)
	for i := 0; i < 6; i++ {
		e.Advance()
	}
	snap := e.Snapshot()
	if len(snap.Log) != LogCapacity {
		t.Fatalf("expected %d log entries, got %d", LogCapacity, len(snap.Log))
	}
	if !strings.Contains(snap.Log[0], "generation complete") {
		t.Fatalf("most recent entry should be the generation summary, got %q", snap.Log[0])
	}
	if !strings.HasPrefix(snap.Log[0], "1st") {
		t.Fatalf("expected ordinal generation, got %q", snap.Log[0])
	}
}

func TestSubscribersSeeConsistentSnapshots(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(6), nil)
	id, ch := e.Subscribe()

	done := make(chan int)
	go func() {
		n := 0
		for snap := range ch {
			if snap.Stats.Total() != len(snap.Population) {
				t.Errorf("inconsistent snapshot: %+v", snap.Stats)
			}
			n++
		}
		done <- n
	}()

	for i := 0; i < 6; i++ {
		e.Advance()
	}
	e.Unsubscribe(id)
	if n := <-done; n == 0 {
		t.Fatal("subscriber received no snapshots")
	}
}

func TestEventsAndGenerationCallbacks(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(12), nil)
	var events []Event
	var gens []GenerationRecord
	e.OnEvent = func(ev Event) { events = append(events, ev) }
	e.OnGeneration = func(r GenerationRecord) { gens = append(gens, r) }

	for i := 0; i < 6; i++ {
		e.Advance()
	}
	if len(gens) != 1 || gens[0].Generation != 1 || gens[0].Extinct {
		t.Fatalf("unexpected generation records %+v", gens)
	}
	if gens[0].Environment != habitat.Next(habitat.First()).Name {
		t.Fatalf("record should carry the selecting environment, got %s", gens[0].Environment)
	}
	if gens[0].Stats.Total() != population.Size {
		t.Fatalf("record stats total %d", gens[0].Stats.Total())
	}
	categories := make(map[string]bool)
	for _, ev := range events {
		categories[ev.Category] = true
	}
	for _, c := range []string{CategoryVariation, CategoryMutation, CategoryEnvironment, CategorySelection, CategoryGeneration} {
		if !categories[c] {
			t.Errorf("missing %s event", c)
		}
	}
	if got := e.Events(3); len(got) != 3 || got[2].Category != CategoryGeneration {
		t.Fatalf("Events(3) = %+v", got)
	}
}

func TestAutoplayCompletesCycle(t *testing.T) {
	e := newTestEngine(t, entropy.Seeded(2), nil)
	a := NewAutoplay(e)
	steps := 0
	a.OnStep = func(Snapshot) { steps++ }

	for i := 0; i < 20 && e.Snapshot().Generation < 2; i++ {
		a.Step()
	}
	for e.Snapshot().Stage != StageVariation {
		a.Step()
	}
	snap := e.Snapshot()
	if snap.Generation != 2 {
		t.Fatalf("expected generation 2, got %d", snap.Generation)
	}
	if snap.Quiz.Index != 1 {
		t.Fatalf("autoplay should have finished the first question, index %d", snap.Quiz.Index)
	}
	if steps < 8 {
		t.Fatalf("expected at least 8 accepted steps, got %d", steps)
	}
}

func TestStageNames(t *testing.T) {
	if StageQuiz.Next() != StageVariation {
		t.Fatal("QUIZ should wrap to VARIATION")
	}
	if StageEnvironmentChange.String() != "ENV_CHANGE" || StagePopulationSummary.String() != "POPULATION_CHANGE" {
		t.Fatal("unexpected stage names")
	}
	if Stage(42).String() != "UNKNOWN" || Stage(42).Label() != "" {
		t.Fatal("unknown stage should render as UNKNOWN")
	}
}
