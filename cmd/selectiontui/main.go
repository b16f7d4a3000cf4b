// Command selectiontui runs the natural selection simulator in the terminal.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/selection-lab/internal/config"
	"github.com/talgya/selection-lab/internal/engine"
	"github.com/talgya/selection-lab/internal/entropy"
)

type app struct {
	eng      *engine.Engine
	view     *view
	rejected chan string
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to a file when requested.
	var logOut io.Writer = io.Discard
	if path := os.Getenv("SELECTIONLAB_TUI_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel})))

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	rng := entropy.FromConfig(cfg.Seed, cfg.RandomOrgKey)
	a := &app{
		eng:      engine.New(cfg.Engine, rng, engine.RealTime{Speed: 1}),
		view:     newView(screen),
		rejected: make(chan string, 8),
	}
	a.run(screen)
}

func (a *app) run(screen tcell.Screen) {
	subID, snaps := a.eng.Subscribe()
	defer a.eng.Unsubscribe(subID)

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	a.view.draw(a.eng.Snapshot())

	for {
		select {
		case ev := <-eventChan:
			if !a.handleInput(ev) {
				return
			}
		case snap := <-snaps:
			a.view.draw(snap)
		case name := <-a.rejected:
			a.view.status = rejectionHint(name, a.eng.Snapshot())
			a.view.draw(a.eng.Snapshot())
		}
	}
}

// handleInput dispatches a key press. Returns false to quit.
func (a *app) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		a.view.status = ""
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyEnter:
			a.act("advance", a.eng.Advance)
			return true
		case tcell.KeyRune:
		default:
			return true
		}

		switch r := ev.Rune(); r {
		case 'q':
			return false
		case ' ':
			a.act("advance", a.eng.Advance)
		case '1', '2', '3', '4':
			option := int(r - '1')
			a.act("answer", func() bool { return a.eng.AnswerQuiz(option) })
		case 'n':
			a.act("next question", a.eng.FinishQuiz)
		case 'r':
			a.act("reset", a.eng.ResetAll)
		}

	case *tcell.EventResize:
		a.view.screen.Sync()
		a.view.draw(a.eng.Snapshot())
	}
	return true
}

// act runs an engine action off the UI goroutine; selection blocks while
// the hunt replays and the UI keeps redrawing from published snapshots.
func (a *app) act(name string, fn func() bool) {
	go func() {
		if !fn() {
			slog.Debug("action rejected", "action", name)
			select {
			case a.rejected <- name:
			default:
			}
		}
	}()
}

// rejectionHint explains why an action did nothing.
func rejectionHint(action string, snap engine.Snapshot) string {
	switch {
	case snap.Processing:
		return "Wait for the current step to finish."
	case action == "advance" && snap.Quiz.Active:
		return "Answer the question, then press n to continue."
	case action == "answer" && !snap.Quiz.Active:
		return "There is no question to answer yet."
	case action == "answer" && snap.Quiz.Answered != nil:
		return "You already answered this question."
	case action == "answer":
		return "Pick one of the listed options."
	case action == "next question":
		return "The quiz comes at the end of the generation."
	}
	return ""
}
