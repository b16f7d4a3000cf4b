// Beetle spawning: founding populations and offspring generations.
package population

import (
	"fmt"

	"github.com/talgya/selection-lab/internal/entropy"
	"github.com/talgya/selection-lab/internal/genetics"
)

// InitPolicy decides how founding genotypes are drawn.
type InitPolicy string

const (
	// InitPerAllele draws each allele independently (≈1:2:1 GG:GB:BB).
	InitPerAllele InitPolicy = "per-allele"
	// InitHomozygous draws GG or BB per beetle, with no founding hybrids.
	InitHomozygous InitPolicy = "homozygous"
)

// ReproductionPolicy decides how offspring genotypes are formed.
type ReproductionPolicy string

const (
	// ReproduceSexual picks two parents with replacement; the child takes one
	// random allele from each.
	ReproduceSexual ReproductionPolicy = "sexual"
	// ReproduceClonal copies the genotype of one random parent.
	ReproduceClonal ReproductionPolicy = "clonal"
)

// ParseInitPolicy validates a policy name.
func ParseInitPolicy(s string) (InitPolicy, error) {
	switch p := InitPolicy(s); p {
	case InitPerAllele, InitHomozygous:
		return p, nil
	}
	return "", fmt.Errorf("unknown init policy %q", s)
}

// ParseReproductionPolicy validates a policy name.
func ParseReproductionPolicy(s string) (ReproductionPolicy, error) {
	switch p := ReproductionPolicy(s); p {
	case ReproduceSexual, ReproduceClonal:
		return p, nil
	}
	return "", fmt.Errorf("unknown reproduction policy %q", s)
}

// Spawner creates beetles for the simulation.
type Spawner struct {
	rng          entropy.Source
	nextID       IndividualID
	Init         InitPolicy
	Reproduction ReproductionPolicy
}

// NewSpawner creates a beetle spawner drawing from rng.
func NewSpawner(rng entropy.Source, init InitPolicy, repro ReproductionPolicy) *Spawner {
	return &Spawner{
		rng:          rng,
		nextID:       1,
		Init:         init,
		Reproduction: repro,
	}
}

// SetNextID sets the next ID to be issued.
func (s *Spawner) SetNextID(id IndividualID) {
	s.nextID = id
}

// Founders creates a fresh population of Size living beetles for generation.
func (s *Spawner) Founders(generation int) Population {
	pop := make(Population, 0, Size)
	for i := 0; i < Size; i++ {
		pop = append(pop, s.spawnOne(generation, i, s.foundingGenotype()))
	}
	return pop
}

// Offspring builds the next generation of Size beetles from survivors.
// Callers must ensure survivors is non-empty.
func (s *Spawner) Offspring(survivors []Individual, generation int) Population {
	pop := make(Population, 0, Size)
	for i := 0; i < Size; i++ {
		pop = append(pop, s.spawnOne(generation, i, s.childGenotype(survivors)))
	}
	return pop
}

func (s *Spawner) spawnOne(generation, index int, g genetics.Genotype) Individual {
	id := s.nextID
	s.nextID++
	return Individual{
		ID:         id,
		Label:      label(generation, index),
		Generation: generation,
		Genotype:   g,
		Alive:      true,
		Position:   s.randomPosition(),
	}
}

func (s *Spawner) foundingGenotype() genetics.Genotype {
	if s.Init == InitHomozygous {
		if s.rng.Float64() > 0.5 {
			return genetics.GG
		}
		return genetics.BB
	}
	return genetics.Genotype{s.randomAllele(), s.randomAllele()}
}

func (s *Spawner) childGenotype(survivors []Individual) genetics.Genotype {
	if s.Reproduction == ReproduceClonal {
		return s.pickParent(survivors).Genotype
	}
	p1 := s.pickParent(survivors)
	p2 := s.pickParent(survivors)
	return genetics.Genotype{
		p1.Genotype[s.randomSlot()],
		p2.Genotype[s.randomSlot()],
	}
}

func (s *Spawner) pickParent(survivors []Individual) Individual {
	return survivors[entropy.Intn(s.rng, len(survivors))]
}

func (s *Spawner) randomAllele() genetics.Allele {
	if s.rng.Float64() > 0.5 {
		return genetics.Green
	}
	return genetics.Brown
}

// randomSlot picks allele position 0 or 1.
func (s *Spawner) randomSlot() int {
	if s.rng.Float64() > 0.5 {
		return 0
	}
	return 1
}

// randomPosition keeps beetles off the habitat edges.
func (s *Spawner) randomPosition() Position {
	return Position{
		X: 10 + s.rng.Float64()*80,
		Y: 10 + s.rng.Float64()*80,
	}
}
