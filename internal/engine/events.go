package engine

import (
	"time"

	"github.com/talgya/selection-lab/internal/habitat"
	"github.com/talgya/selection-lab/internal/population"
)

// LogCapacity is the number of observation log entries kept for display.
const LogCapacity = 5

// maxEvents bounds the in-memory event history.
const maxEvents = 1000

// Event categories.
const (
	CategorySystem      = "system"
	CategoryVariation   = "variation"
	CategoryMutation    = "mutation"
	CategoryEnvironment = "environment"
	CategorySelection   = "selection"
	CategoryInheritance = "inheritance"
	CategoryExtinction  = "extinction"
	CategoryGeneration  = "generation"
)

// InitialMessage opens the observation log of every session.
const InitialMessage = "System started. An initial beetle population was created."

// Event is a notable occurrence, mirrored into the observation log.
type Event struct {
	Generation  int       `json:"generation"`
	Stage       Stage     `json:"stage"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

// GenerationRecord summarizes one finished (or collapsed) generation.
type GenerationRecord struct {
	Generation      int              `json:"generation"`
	Environment     string           `json:"environment"`
	EnvironmentKind habitat.Kind     `json:"environment_type"`
	Stats           population.Stats `json:"stats"`
	Mutations       int              `json:"mutations"`
	Eaten           int              `json:"eaten"`
	Extinct         bool             `json:"extinct"`
	CompletedAt     time.Time        `json:"completed_at"`
}

// cycleCounters accumulate per-generation totals between summaries.
type cycleCounters struct {
	mutations int
	eaten     int
}

// pushLog prepends msg and drops entries beyond LogCapacity.
func pushLog(log []string, msg string) []string {
	out := make([]string, 0, LogCapacity)
	out = append(out, msg)
	for _, l := range log {
		if len(out) == LogCapacity {
			break
		}
		out = append(out, l)
	}
	return out
}
