package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/selection-lab/internal/entropy"
	"github.com/talgya/selection-lab/internal/habitat"
	"github.com/talgya/selection-lab/internal/population"
	"github.com/talgya/selection-lab/internal/quiz"
)

// Config holds the simulation rules. Each policy axis is chosen explicitly.
type Config struct {
	Init         population.InitPolicy
	Reproduction population.ReproductionPolicy
	MinViable    int     // survivors below this trigger extinction recovery
	KillCap      int     // max beetles eaten per selection
	MutationRate float64 // per-beetle probability of one allele flip
	RevealDelay  time.Duration
	SettleDelay  time.Duration
	Survival     habitat.SurvivalTable
	Quiz         quiz.Bank
}

// DefaultConfig returns the standard classroom rules.
func DefaultConfig() Config {
	return Config{
		Init:         population.InitPerAllele,
		Reproduction: population.ReproduceSexual,
		MinViable:    2,
		KillCap:      14,
		MutationRate: 0.1,
		RevealDelay:  DefaultRevealDelay,
		SettleDelay:  DefaultSettleDelay,
		Survival:     habitat.DefaultSurvival,
		Quiz:         quiz.DefaultBank,
	}
}

func (c Config) normalized() Config {
	if c.MinViable < 1 {
		c.MinViable = 1
	}
	if c.KillCap < 0 {
		c.KillCap = 0
	}
	if c.Init == "" {
		c.Init = population.InitPerAllele
	}
	if c.Reproduction == "" {
		c.Reproduction = population.ReproduceSexual
	}
	if c.Survival == nil {
		c.Survival = habitat.DefaultSurvival
	}
	if len(c.Quiz) == 0 {
		c.Quiz = quiz.DefaultBank
	}
	return c
}

// hiddenPredator is where the predator rests between hunts.
var hiddenPredator = Predator{Position: population.Position{X: 50, Y: -20}}

// Engine runs the generation cycle. All mutating entry points are serialized
// by a processing flag: a call made while another is in flight is rejected.
type Engine struct {
	cfg     Config
	rng     entropy.Source
	spawner *population.Spawner
	pacer   Pacer

	busy atomic.Bool

	mu         sync.RWMutex
	stage      Stage
	generation int
	pop        population.Population
	env        habitat.Environment
	stats      population.Stats
	log        []string
	events     []Event
	quizIndex  int
	quizAnswer *int
	predator   Predator
	cycle      cycleCounters

	// Queued under mu, dispatched after unlock.
	pendingEvents []Event
	pendingGens   []GenerationRecord

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int

	// Callbacks: set during setup, invoked on the advancing goroutine.
	OnEvent      func(Event)
	OnGeneration func(GenerationRecord)
}

// New creates an engine with a fresh founding population.
func New(cfg Config, rng entropy.Source, pacer Pacer) *Engine {
	cfg = cfg.normalized()
	if pacer == nil {
		pacer = Instant{}
	}
	e := &Engine{
		cfg:     cfg,
		rng:     rng,
		spawner: population.NewSpawner(rng, cfg.Init, cfg.Reproduction),
		pacer:   pacer,
		subs:    make(map[int]chan Snapshot),
	}
	e.restart()
	e.pendingEvents = nil
	return e
}

// Config returns the rules the engine runs with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Advance runs the current stage and moves the cycle forward. It returns
// false, doing nothing, while another action is in flight or during the quiz.
// The selection stage blocks until its predation sequence has been replayed.
func (e *Engine) Advance() bool {
	if !e.begin() {
		slog.Debug("advance rejected: engine busy")
		return false
	}
	defer e.end()

	e.mu.RLock()
	stage := e.stage
	e.mu.RUnlock()

	slog.Debug("advancing stage", "stage", stage.String())

	switch stage {
	case StageVariation:
		e.runVariation()
	case StageMutation:
		e.runMutation()
	case StageEnvironmentChange:
		e.runEnvironmentChange()
	case StageSelection:
		e.runSelection()
	case StageInheritance:
		e.runInheritance()
	case StagePopulationSummary:
		e.runPopulationSummary()
	case StageQuiz:
		slog.Debug("advance rejected: quiz in progress")
		return false
	}
	return true
}

// AnswerQuiz records the learner's answer to the current question. Only the
// first valid answer per question counts.
func (e *Engine) AnswerQuiz(option int) bool {
	if !e.begin() {
		return false
	}
	defer e.end()

	accepted := false
	e.update(func() {
		if e.stage != StageQuiz || e.quizAnswer != nil {
			return
		}
		if !e.cfg.Quiz.At(e.quizIndex).ValidOption(option) {
			return
		}
		answer := option
		e.quizAnswer = &answer
		accepted = true
	})
	return accepted
}

// FinishQuiz dismisses the current question and returns to VARIATION.
func (e *Engine) FinishQuiz() bool {
	if !e.begin() {
		return false
	}
	defer e.end()

	accepted := false
	e.update(func() {
		if e.stage != StageQuiz {
			return
		}
		e.quizIndex = e.cfg.Quiz.NextIndex(e.quizIndex)
		e.quizAnswer = nil
		e.stage = StageVariation
		accepted = true
	})
	return accepted
}

// ResetAll restarts the session: new founders, generation 1, first
// environment, first question, fresh log.
func (e *Engine) ResetAll() bool {
	if !e.begin() {
		return false
	}
	defer e.end()

	e.update(e.restart)
	slog.Info("simulation reset")
	return true
}

// Busy reports whether an action is in flight.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Events returns up to limit of the most recent events, oldest first.
func (e *Engine) Events(limit int) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	start := 0
	if limit > 0 && len(e.events) > limit {
		start = len(e.events) - limit
	}
	out := make([]Event, len(e.events)-start)
	copy(out, e.events[start:])
	return out
}

func (e *Engine) begin() bool {
	if !e.busy.CompareAndSwap(false, true) {
		return false
	}
	e.publish()
	return true
}

func (e *Engine) end() {
	e.busy.Store(false)
	e.publish()
}

// ── Stage handlers ───────────────────────────────────────────────────

func (e *Engine) runVariation() {
	e.update(func() {
		e.record(CategoryVariation, "Observation: genetic variation already exists. Note the different shell colors.")
		e.stage = StageVariation.Next()
	})
}

func (e *Engine) runMutation() {
	e.update(func() {
		pop, n := population.Mutate(e.pop, e.rng, e.cfg.MutationRate)
		e.pop = pop
		e.refreshStats()
		e.cycle.mutations += n
		e.record(CategoryMutation, fmt.Sprintf("DNA replication: %d random mutations occurred.", n))
		e.stage = StageMutation.Next()
	})
}

func (e *Engine) runEnvironmentChange() {
	e.update(func() {
		e.env = habitat.Next(e.env)
		e.record(CategoryEnvironment, fmt.Sprintf("Environmental change: the habitat is now %s.", e.env.Name))
		e.stage = StageEnvironmentChange.Next()
	})
}

// runSelection draws the victims up front, then replays the hunt one victim
// at a time: predator over the victim, wait, kill, wait.
func (e *Engine) runSelection() {
	var plan []int
	e.update(func() {
		e.record(CategorySelection, "Selection: the predator searches for beetles that stand out against the background.")
		candidates := population.DeathCandidates(e.pop, e.env, e.cfg.Survival, e.rng)
		plan = population.KillPlan(candidates, e.rng, e.cfg.KillCap)
		slog.Debug("selection planned", "candidates", len(candidates), "victims", len(plan), "environment", e.env.Name)
	})

	for _, idx := range plan {
		e.update(func() {
			e.predator = Predator{Position: e.pop[idx].Position, Visible: true}
		})
		e.pacer.Wait(e.cfg.RevealDelay)
		e.update(func() {
			e.pop[idx].Alive = false
			e.refreshStats()
		})
		e.pacer.Wait(e.cfg.SettleDelay)
	}

	e.update(func() {
		e.predator = hiddenPredator
		e.cycle.eaten += len(plan)
		e.record(CategorySelection, fmt.Sprintf("The hunt is over: %d beetles were eaten. Mostly the best camouflaged survived.", len(plan)))
		e.stage = StageSelection.Next()
	})
}

func (e *Engine) runInheritance() {
	e.update(func() {
		survivors := e.pop.Survivors()
		if len(survivors) < e.cfg.MinViable {
			slog.Info("population collapsed, reinitializing",
				"generation", e.generation,
				"survivors", len(survivors),
				"min_viable", e.cfg.MinViable,
			)
			e.record(CategoryExtinction, "The population is too small to reproduce! Starting over...")
			e.pendingGens = append(e.pendingGens, e.generationRecord(true))
			e.cycle = cycleCounters{}
			e.pop = e.spawner.Founders(e.generation)
			e.refreshStats()
			e.stage = StageVariation
			return
		}

		e.pop = e.spawner.Offspring(survivors, e.generation+1)
		e.refreshStats()
		e.record(CategoryInheritance, "Inheritance: the survivors reproduced. Offspring inherited a combination of their parents' alleles.")
		e.stage = StageInheritance.Next()
	})
}

func (e *Engine) runPopulationSummary() {
	e.update(func() {
		e.record(CategoryGeneration, fmt.Sprintf("%s generation complete. Check the change in the trait chart.",
			humanize.Ordinal(e.generation)))
		rec := e.generationRecord(false)
		e.pendingGens = append(e.pendingGens, rec)

		slog.Info("generation report",
			"generation", rec.Generation,
			"environment", rec.Environment,
			"green", rec.Stats.Green,
			"hybrid", rec.Stats.Hybrid,
			"brown", rec.Stats.Brown,
			"green_allele_freq", fmt.Sprintf("%.3f", rec.Stats.GreenAlleleFreq),
			"mutations", rec.Mutations,
			"eaten", rec.Eaten,
		)

		e.generation++
		e.cycle = cycleCounters{}
		e.stage = StagePopulationSummary.Next()
	})
}

// ── State helpers (caller holds mu) ──────────────────────────────────

func (e *Engine) restart() {
	e.stage = StageVariation
	e.generation = 1
	e.env = habitat.First()
	e.pop = e.spawner.Founders(1)
	e.refreshStats()
	e.log = []string{InitialMessage}
	e.quizIndex = 0
	e.quizAnswer = nil
	e.predator = hiddenPredator
	e.cycle = cycleCounters{}
	e.appendEvent(CategorySystem, InitialMessage)
}

func (e *Engine) refreshStats() {
	e.stats = population.Census(e.pop)
}

// record writes msg to the observation log and the event history.
func (e *Engine) record(category, msg string) {
	e.log = pushLog(e.log, msg)
	e.appendEvent(category, msg)
}

func (e *Engine) appendEvent(category, msg string) {
	ev := Event{
		Generation:  e.generation,
		Stage:       e.stage,
		Category:    category,
		Description: msg,
		At:          time.Now(),
	}
	e.events = append(e.events, ev)
	if len(e.events) > maxEvents {
		e.events = e.events[len(e.events)-maxEvents:]
	}
	e.pendingEvents = append(e.pendingEvents, ev)
}

func (e *Engine) generationRecord(extinct bool) GenerationRecord {
	return GenerationRecord{
		Generation:      e.generation,
		Environment:     e.env.Name,
		EnvironmentKind: e.env.Kind,
		Stats:           e.stats,
		Mutations:       e.cycle.mutations,
		Eaten:           e.cycle.eaten,
		Extinct:         extinct,
		CompletedAt:     time.Now(),
	}
}

// update applies fn under the state lock, then dispatches queued callbacks
// and publishes a snapshot with the lock released.
func (e *Engine) update(fn func()) {
	e.mu.Lock()
	fn()
	events := e.pendingEvents
	gens := e.pendingGens
	e.pendingEvents = nil
	e.pendingGens = nil
	e.mu.Unlock()

	if e.OnEvent != nil {
		for _, ev := range events {
			e.OnEvent(ev)
		}
	}
	if e.OnGeneration != nil {
		for _, g := range gens {
			e.OnGeneration(g)
		}
	}
	e.publish()
}
