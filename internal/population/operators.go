// Generational operators: mutation, predation and statistics.
package population

import (
	"github.com/talgya/selection-lab/internal/entropy"
	"github.com/talgya/selection-lab/internal/habitat"
)

// Mutate returns a copy of pop in which each beetle, with probability rate,
// has one of its two alleles (chosen uniformly) flipped. It also returns the
// number of mutation events.
func Mutate(pop Population, rng entropy.Source, rate float64) (Population, int) {
	out := pop.Clone()
	count := 0
	for i := range out {
		if !entropy.Chance(rng, rate) {
			continue
		}
		slot := 1
		if rng.Float64() > 0.5 {
			slot = 0
		}
		out[i].Genotype = out[i].Genotype.WithFlipped(slot)
		count++
	}
	return out, count
}

// DeathCandidates returns the indices of living beetles that fail their
// camouflage check in env. One draw is taken per living beetle, in sequence
// order; a beetle is a candidate when the draw lands in its death band
// [0, 1-survival).
func DeathCandidates(pop Population, env habitat.Environment, table habitat.SurvivalTable, rng entropy.Source) []int {
	var candidates []int
	for i, ind := range pop {
		if !ind.Alive {
			continue
		}
		survival := table.Survival(env.Kind, ind.Genotype)
		if rng.Float64() < 1-survival {
			candidates = append(candidates, i)
		}
	}
	return candidates
}

// KillPlan shuffles candidates and keeps at most limit of them. The order of
// the returned slice is the order in which the predator strikes.
func KillPlan(candidates []int, rng entropy.Source, limit int) []int {
	plan := make([]int, len(candidates))
	copy(plan, candidates)
	entropy.Shuffle(rng, len(plan), func(i, j int) { plan[i], plan[j] = plan[j], plan[i] })
	if limit >= 0 && len(plan) > limit {
		plan = plan[:limit]
	}
	return plan
}

// Stats is the phenotype census of a population.
// Green+Hybrid+Brown always equals the population length, dead included.
type Stats struct {
	Green  int `json:"green"`
	Hybrid int `json:"hybrid"`
	Brown  int `json:"brown"`
	Alive  int `json:"alive"`

	// GreenAlleleFreq is the share of Green alleles among living beetles.
	GreenAlleleFreq float64 `json:"green_allele_freq"`
}

// Total returns the census size.
func (s Stats) Total() int {
	return s.Green + s.Hybrid + s.Brown
}

// Census computes Stats for pop.
func Census(pop Population) Stats {
	var s Stats
	greenAlleles := 0
	for _, ind := range pop {
		switch ind.Genotype.GreenCount() {
		case 2:
			s.Green++
		case 0:
			s.Brown++
		}
		if ind.Alive {
			s.Alive++
			greenAlleles += ind.Genotype.GreenCount()
		}
	}
	s.Hybrid = len(pop) - s.Green - s.Brown
	if s.Alive > 0 {
		s.GreenAlleleFreq = float64(greenAlleles) / float64(2*s.Alive)
	}
	return s
}
