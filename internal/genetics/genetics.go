// Package genetics provides the allele and genotype model for the beetle population.
// A beetle's shell color is controlled by a single gene with two alleles.
package genetics

import "strings"

// Allele is one variant of the shell-color gene.
type Allele uint8

const (
	Green Allele = iota
	Brown
)

// Flip returns the opposite allele.
func (a Allele) Flip() Allele {
	if a == Green {
		return Brown
	}
	return Green
}

// Symbol returns the one-letter symbol ("G" or "B").
func (a Allele) Symbol() string {
	if a == Green {
		return "G"
	}
	return "B"
}

func (a Allele) String() string {
	if a == Green {
		return "Green"
	}
	return "Brown"
}

// Phenotype is the visible class derived from a genotype's Green count.
type Phenotype uint8

const (
	PhenotypeBrown Phenotype = iota // 0 Green alleles
	PhenotypeHybrid                 // 1 Green allele
	PhenotypeGreen                  // 2 Green alleles
)

func (p Phenotype) String() string {
	switch p {
	case PhenotypeGreen:
		return "dominant-green"
	case PhenotypeHybrid:
		return "hybrid"
	default:
		return "brown"
	}
}

// Display colors for each phenotype.
const (
	ColorGreen  = "#166534" // forest green (GG)
	ColorHybrid = "#a3e635" // light lime (GB)
	ColorBrown  = "#78350f" // earth brown (BB)
)

// Genotype is the diploid allele pair. Position carries no meaning;
// only the number of Green alleles matters.
type Genotype [2]Allele

// GreenCount returns how many of the two alleles are Green.
func (g Genotype) GreenCount() int {
	n := 0
	for _, a := range g {
		if a == Green {
			n++
		}
	}
	return n
}

// Phenotype returns the derived phenotype class.
func (g Genotype) Phenotype() Phenotype {
	return Phenotype(g.GreenCount())
}

// Color returns the display color for the genotype.
func (g Genotype) Color() string {
	return ColorOf(g)
}

// WithFlipped returns a copy with the allele at idx flipped.
func (g Genotype) WithFlipped(idx int) Genotype {
	g[idx] = g[idx].Flip()
	return g
}

// String renders the pair as e.g. "GB".
func (g Genotype) String() string {
	var b strings.Builder
	for _, a := range g {
		b.WriteString(a.Symbol())
	}
	return b.String()
}

// MarshalText encodes the genotype as its two-letter symbol string.
func (g Genotype) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// ColorOf is the single source of truth for a genotype's display color.
func ColorOf(g Genotype) string {
	switch g.Phenotype() {
	case PhenotypeGreen:
		return ColorGreen
	case PhenotypeHybrid:
		return ColorHybrid
	default:
		return ColorBrown
	}
}

// Common genotypes.
var (
	GG = Genotype{Green, Green}
	GB = Genotype{Green, Brown}
	BG = Genotype{Brown, Green}
	BB = Genotype{Brown, Brown}
)
