package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/selection-lab/internal/engine"
	"github.com/talgya/selection-lab/internal/habitat"
)

const (
	fieldWidth  = 50
	fieldHeight = 20
	panelX      = fieldWidth + 3
	panelWidth  = 58
)

var (
	styleText   = tcell.StyleDefault
	styleTitle  = tcell.StyleDefault.Bold(true)
	styleDim    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleAlert  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleOK     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	stylePrompt = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

// view renders snapshots onto a screen.
type view struct {
	screen    tcell.Screen
	backdrops map[habitat.Kind]habitat.Backdrop
	status    string
}

func newView(screen tcell.Screen) *view {
	cfg := habitat.DefaultBackdropConfig()
	cfg.Width, cfg.Height = fieldWidth, fieldHeight
	backdrops := make(map[habitat.Kind]habitat.Backdrop, len(habitat.Catalog))
	for _, env := range habitat.Catalog {
		backdrops[env.Kind] = habitat.GenerateBackdrop(env.Kind, cfg)
	}
	return &view{screen: screen, backdrops: backdrops}
}

func (v *view) draw(snap engine.Snapshot) {
	v.screen.Clear()
	v.drawField(snap)
	v.drawPanel(snap)
	v.screen.Show()
}

// drawField paints the habitat texture, beetles and predator.
func (v *view) drawField(snap engine.Snapshot) {
	bd := v.backdrops[snap.Environment.Kind]
	for y := 0; y < fieldHeight; y++ {
		for x := 0; x < fieldWidth; x++ {
			shade := habitat.Shade(snap.Environment.Color, bd.At(cellToHabitat(x, fieldWidth), cellToHabitat(y, fieldHeight)), 0.6)
			v.screen.SetContent(x+1, y+1, ' ', nil, tcell.StyleDefault.Background(tcell.GetColor(shade)))
		}
	}
	drawBox(v.screen, 0, 0, fieldWidth+2, fieldHeight+2, styleDim)
	drawText(v.screen, 2, 0, styleTitle, " "+snap.Environment.Name+" ")

	for _, b := range snap.Population {
		x, y := habitatToCell(b.Position.X, fieldWidth), habitatToCell(b.Position.Y, fieldHeight)
		bg := tcell.GetColor(habitat.Shade(snap.Environment.Color, bd.At(b.Position.X, b.Position.Y), 0.6))
		if !b.Alive {
			v.screen.SetContent(x+1, y+1, '×', nil, tcell.StyleDefault.Foreground(tcell.ColorDarkGray).Background(bg))
			continue
		}
		v.screen.SetContent(x+1, y+1, '●', nil, tcell.StyleDefault.Foreground(tcell.GetColor(b.Color)).Background(bg))
	}

	if p := snap.Predator; p.Visible {
		x, y := habitatToCell(p.X, fieldWidth), habitatToCell(p.Y, fieldHeight)
		v.screen.SetContent(x+1, y+1, '▼', nil, styleAlert.Reverse(true))
	}
}

// drawPanel writes the stage, census, log and quiz.
func (v *view) drawPanel(snap engine.Snapshot) {
	y := 0
	line := func(style tcell.Style, format string, args ...any) {
		drawText(v.screen, panelX, y, style, truncate(fmt.Sprintf(format, args...), panelWidth))
		y++
	}

	line(styleTitle, "Generation %d  ·  Stage %d/%d: %s", snap.Generation, snap.StageIndex+1, engine.StageCount, snap.StageLabel)
	line(styleDim, "%s", snap.StageAction)
	if snap.Processing {
		line(styleAlert, "The predator is hunting...")
	} else {
		y++
	}
	y++

	s := snap.Stats
	total := max(s.Total(), 1)
	line(styleText, "Alive %d of %d   green allele %.0f%%", s.Alive, s.Total(), s.GreenAlleleFreq*100)
	bar := func(label string, n int, hex string) {
		width := n * 30 / total
		drawText(v.screen, panelX, y, styleText, fmt.Sprintf("%-7s %2d ", label, n))
		drawText(v.screen, panelX+11, y, tcell.StyleDefault.Foreground(tcell.GetColor(hex)), strings.Repeat("█", width))
		y++
	}
	bar("Green", s.Green, "#166534")
	bar("Hybrid", s.Hybrid, "#a3e635")
	bar("Brown", s.Brown, "#78350f")
	y++

	line(styleTitle, "Observations")
	for _, msg := range snap.Log {
		for _, l := range wrap(msg, panelWidth-2) {
			line(styleText, "  %s", l)
		}
	}
	y++

	if q := snap.Quiz; q.Active {
		line(styleTitle, "Question %d", q.ID)
		for _, l := range wrap(q.Question, panelWidth) {
			line(stylePrompt, "%s", l)
		}
		for i, opt := range q.Options {
			style := styleText
			marker := " "
			if q.Answered != nil && *q.Answered == i {
				marker = ">"
			}
			if q.CorrectIndex != nil && *q.CorrectIndex == i {
				style = styleOK
			} else if q.Answered != nil && *q.Answered == i {
				style = styleAlert
			}
			line(style, "%s %d) %s", marker, i+1, opt)
		}
		if q.Correct != nil {
			if *q.Correct {
				line(styleOK, "Correct!")
			} else {
				line(styleAlert, "Not quite.")
			}
			for _, l := range wrap(q.Explanation, panelWidth) {
				line(styleDim, "%s", l)
			}
		}
	}

	_, h := v.screen.Size()
	help := "space/enter advance · 1-4 answer · n next question · r reset · q quit"
	if v.status != "" {
		drawText(v.screen, 0, h-2, styleAlert, v.status)
	}
	drawText(v.screen, 0, h-1, styleDim, help)
}

// habitatToCell maps a habitat coordinate in [0,100] to a cell index.
func habitatToCell(c float64, cells int) int {
	i := int(c / 100 * float64(cells))
	return min(max(i, 0), cells-1)
}

// cellToHabitat maps a cell index to the habitat coordinate of its center.
func cellToHabitat(i, cells int) float64 {
	return (float64(i) + 0.5) * 100 / float64(cells)
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

func drawBox(s tcell.Screen, x, y, w, h int, style tcell.Style) {
	for i := x + 1; i < x+w-1; i++ {
		s.SetContent(i, y, '─', nil, style)
		s.SetContent(i, y+h-1, '─', nil, style)
	}
	for j := y + 1; j < y+h-1; j++ {
		s.SetContent(x, j, '│', nil, style)
		s.SetContent(x+w-1, j, '│', nil, style)
	}
	s.SetContent(x, y, '┌', nil, style)
	s.SetContent(x+w-1, y, '┐', nil, style)
	s.SetContent(x, y+h-1, '└', nil, style)
	s.SetContent(x+w-1, y+h-1, '┘', nil, style)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// wrap breaks s into lines of at most width runes on word boundaries.
func wrap(s string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(s) {
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(word)) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
