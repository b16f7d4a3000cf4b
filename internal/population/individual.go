// Package population provides the beetle data model and the generational
// operators: initialization, mutation, predation and reproduction.
package population

import (
	"fmt"

	"github.com/talgya/selection-lab/internal/genetics"
)

// Size is the number of beetles at the start of every generation.
const Size = 20

// IndividualID is a unique identifier for a beetle, never reused.
type IndividualID uint64

// Position is a point in the normalized [0,100]×[0,100] habitat.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Individual is one beetle.
type Individual struct {
	ID         IndividualID      `json:"id"`
	Label      string            `json:"label"`      // gen{N}-{i}
	Generation int               `json:"generation"` // generation it was born into
	Genotype   genetics.Genotype `json:"genotype"`
	Alive      bool              `json:"alive"`
	Position   Position          `json:"position"`
}

// Color returns the display color, always derived from the genotype.
func (ind Individual) Color() string {
	return genetics.ColorOf(ind.Genotype)
}

func label(generation, index int) string {
	return fmt.Sprintf("gen%d-%d", generation, index)
}

// Population is the ordered sequence of beetles of the current generation.
type Population []Individual

// Clone returns an independent copy.
func (p Population) Clone() Population {
	out := make(Population, len(p))
	copy(out, p)
	return out
}

// Survivors returns the living beetles in sequence order.
func (p Population) Survivors() []Individual {
	var out []Individual
	for _, ind := range p {
		if ind.Alive {
			out = append(out, ind)
		}
	}
	return out
}

// AliveCount returns how many beetles are alive.
func (p Population) AliveCount() int {
	n := 0
	for _, ind := range p {
		if ind.Alive {
			n++
		}
	}
	return n
}
