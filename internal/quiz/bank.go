// Package quiz holds the comprehension questions shown at the end of each
// generation cycle.
package quiz

// Question is one multiple-choice comprehension check.
type Question struct {
	ID           int      `json:"id"`
	Prompt       string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

// IsCorrect reports whether option answers the question correctly.
func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectIndex
}

// ValidOption reports whether option indexes one of the choices.
func (q Question) ValidOption(option int) bool {
	return option >= 0 && option < len(q.Options)
}

// Bank is an ordered, cyclic list of questions.
type Bank []Question

// At returns the question at index i modulo the bank size.
func (b Bank) At(i int) Question {
	return b[b.wrap(i)]
}

// NextIndex returns the index after i, wrapping around.
func (b Bank) NextIndex(i int) int {
	return b.wrap(i + 1)
}

func (b Bank) wrap(i int) int {
	n := len(b)
	return ((i % n) + n) % n
}

// DefaultBank is the built-in question set.
var DefaultBank = Bank{
	{
		ID:     1,
		Prompt: "Where did the color variation in the population come from?",
		Options: []string{
			"The beetles changed color to match the environment",
			"It already existed in the population before the environment changed",
			"The predator created it",
			"Every beetle is born with all colors",
		},
		CorrectIndex: 1,
		Explanation:  "Variation exists before selection acts. Selection does not create new traits; it changes how common existing ones are.",
	},
	{
		ID:     2,
		Prompt: "Why did more brown beetles survive on the arid plain?",
		Options: []string{
			"Brown beetles are stronger",
			"The predator prefers green food",
			"They were harder for the predator to see against the soil",
			"Brown beetles reproduce faster",
		},
		CorrectIndex: 2,
		Explanation:  "Camouflage lowers the chance of being spotted. Survivors pass their alleles on, so the brown allele becomes more frequent.",
	},
	{
		ID:     3,
		Prompt: "What evolves during natural selection?",
		Options: []string{
			"A single individual",
			"The population's allele frequencies",
			"The predator's eyesight only",
			"The environment",
		},
		CorrectIndex: 1,
		Explanation:  "Individuals do not evolve. Evolution is a change in allele frequencies in a population across generations.",
	},
	{
		ID:     4,
		Prompt: "What is the role of mutation in this simulation?",
		Options: []string{
			"It always makes beetles better camouflaged",
			"It happens only when the environment changes",
			"It randomly changes alleles, adding new variation",
			"It removes unfit beetles",
		},
		CorrectIndex: 2,
		Explanation:  "Mutations are random with respect to need. They add variation that selection may later favor or remove.",
	},
	{
		ID:     5,
		Prompt: "How can two lime hybrid (GB) parents have a brown (BB) offspring?",
		Options: []string{
			"Each parent can pass on its B allele, and the two recombine in the offspring",
			"Hybrids turn brown as they age",
			"The environment decides the offspring's genotype",
			"It cannot happen",
		},
		CorrectIndex: 0,
		Explanation:  "Each parent passes one of its two alleles. Hidden alleles carried by hybrids can reappear in later generations.",
	},
}
