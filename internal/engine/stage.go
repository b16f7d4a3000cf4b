// Package engine provides the stage-driven generational simulation.
// One Engine owns the population, the current environment and the seven-stage
// cycle; consumers read snapshots and invoke transitions.
package engine

// Stage is a point in the seven-step generation cycle.
type Stage uint8

const (
	StageVariation Stage = iota
	StageMutation
	StageEnvironmentChange
	StageSelection
	StageInheritance
	StagePopulationSummary
	StageQuiz
)

// StageCount is the cycle period.
const StageCount = 7

var stageNames = [StageCount]string{
	"VARIATION", "MUTATION", "ENV_CHANGE", "SELECTION",
	"INHERITANCE", "POPULATION_CHANGE", "QUIZ",
}

var stageLabels = [StageCount]string{
	"Variation", "Mutation", "Environment", "Selection",
	"Inheritance", "Change", "Conclusions",
}

var stageActions = [StageCount]string{
	"Identify genetic variation",
	"Replicate DNA with mutations",
	"Change the environment",
	"Release the predator",
	"Pass alleles to offspring",
	"Analyze the generational change",
	"Answer the comprehension check",
}

// Next returns the stage that follows s.
func (s Stage) Next() Stage {
	return (s + 1) % StageCount
}

func (s Stage) String() string {
	if int(s) < StageCount {
		return stageNames[s]
	}
	return "UNKNOWN"
}

// Label is the short name shown in a step indicator.
func (s Stage) Label() string {
	if int(s) < StageCount {
		return stageLabels[s]
	}
	return ""
}

// Action describes what advancing from s will do.
func (s Stage) Action() string {
	if int(s) < StageCount {
		return stageActions[s]
	}
	return ""
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
