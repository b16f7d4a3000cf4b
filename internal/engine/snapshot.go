package engine

import (
	"github.com/talgya/selection-lab/internal/habitat"
	"github.com/talgya/selection-lab/internal/population"
)

// subscriberBuffer is the per-subscriber snapshot queue length.
const subscriberBuffer = 16

// Predator is the hunting animation state.
type Predator struct {
	population.Position
	Visible bool `json:"visible"`
}

// Beetle is an individual as seen by a renderer.
type Beetle struct {
	population.Individual
	Color string `json:"color"`
}

// QuizView is the current comprehension check.
type QuizView struct {
	Active   bool     `json:"active"`
	Index    int      `json:"index"`
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answered *int     `json:"answered"`

	// Revealed once an answer has been recorded.
	Correct      *bool  `json:"correct,omitempty"`
	CorrectIndex *int   `json:"correct_index,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
}

// Snapshot is an immutable copy of the engine state.
type Snapshot struct {
	Stage       Stage               `json:"stage"`
	StageIndex  int                 `json:"stage_index"`
	StageLabel  string              `json:"stage_label"`
	StageAction string              `json:"stage_action"`
	Generation  int                 `json:"generation"`
	Population  []Beetle            `json:"population"`
	Environment habitat.Environment `json:"environment"`
	Stats       population.Stats    `json:"stats"`
	Log         []string            `json:"log"`
	Quiz        QuizView            `json:"quiz"`
	Predator    Predator            `json:"predator"`
	Processing  bool                `json:"processing"`
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	beetles := make([]Beetle, len(e.pop))
	for i, ind := range e.pop {
		beetles[i] = Beetle{Individual: ind, Color: ind.Color()}
	}

	logCopy := make([]string, len(e.log))
	copy(logCopy, e.log)

	return Snapshot{
		Stage:       e.stage,
		StageIndex:  int(e.stage),
		StageLabel:  e.stage.Label(),
		StageAction: e.stage.Action(),
		Generation:  e.generation,
		Population:  beetles,
		Environment: e.env,
		Stats:       e.stats,
		Log:         logCopy,
		Quiz:        e.quizView(),
		Predator:    e.predator,
		Processing:  e.busy.Load(),
	}
}

func (e *Engine) quizView() QuizView {
	q := e.cfg.Quiz.At(e.quizIndex)
	options := make([]string, len(q.Options))
	copy(options, q.Options)

	v := QuizView{
		Active:   e.stage == StageQuiz,
		Index:    e.quizIndex,
		ID:       q.ID,
		Question: q.Prompt,
		Options:  options,
	}
	if e.quizAnswer != nil {
		answer := *e.quizAnswer
		correct := q.IsCorrect(answer)
		correctIndex := q.CorrectIndex
		v.Answered = &answer
		v.Correct = &correct
		v.CorrectIndex = &correctIndex
		v.Explanation = q.Explanation
	}
	return v
}

// Subscribe registers for snapshots published after every state change.
// Slow subscribers lose intermediate snapshots, never the latest one.
func (e *Engine) Subscribe() (int, <-chan Snapshot) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan Snapshot, subscriberBuffer)
	e.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (e *Engine) Unsubscribe(id int) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}

func (e *Engine) publish() {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if len(e.subs) == 0 {
		return
	}
	snap := e.Snapshot()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest queued snapshot to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
