package habitat

import "github.com/talgya/selection-lab/internal/genetics"

// SurvivalTable maps environment kind to survival probability indexed by the
// number of Green alleles (0, 1, 2).
type SurvivalTable map[Kind][3]float64

// DefaultSurvival models camouflage: a beetle survives a predation pass
// when its shell matches the background.
var DefaultSurvival = SurvivalTable{
	KindLush:   {0.05, 0.40, 0.98},
	KindMeadow: {0.20, 0.98, 0.20},
	KindArid:   {0.98, 0.40, 0.05},
}

// Survival returns the probability that a beetle with genotype g escapes the
// predator in an environment of kind k. Unknown kinds yield 0.5.
func (t SurvivalTable) Survival(k Kind, g genetics.Genotype) float64 {
	row, ok := t[k]
	if !ok {
		return 0.5
	}
	return row[g.GreenCount()]
}
