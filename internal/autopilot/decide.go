package autopilot

import "fmt"

// Actions the autopilot can take.
const (
	ActionWait    = "wait"
	ActionAdvance = "advance"
	ActionAnswer  = "answer"
	ActionFinish  = "finish"
)

// Decision is the next step and why.
type Decision struct {
	Action    string `json:"action"`
	Option    int    `json:"option,omitempty"` // ActionAnswer only
	Rationale string `json:"rationale"`
}

// Decide picks the single action appropriate to the observed state.
// Quiz answers come from memory; unseen questions are guessed in order.
func Decide(obs *Observation, health Assessment, mem *Memory) Decision {
	st := obs.State

	switch {
	case st.Processing:
		return Decision{Action: ActionWait, Rationale: "an action is in flight"}

	case st.Stage != "QUIZ":
		return Decision{
			Action:    ActionAdvance,
			Rationale: fmt.Sprintf("generation %d at %s, population %s", st.Generation, st.Stage, health.Level),
		}

	case st.Quiz.Answered == nil:
		if option, ok := mem.Answer(st.Quiz.ID); ok {
			return Decision{Action: ActionAnswer, Option: option, Rationale: "answer remembered from an earlier cycle"}
		}
		option := mem.Guess(st.Quiz.ID, len(st.Quiz.Options))
		return Decision{Action: ActionAnswer, Option: option, Rationale: "unseen question, guessing"}

	default:
		return Decision{Action: ActionFinish, Rationale: "question answered"}
	}
}
