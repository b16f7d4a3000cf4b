package autopilot

// Assessment holds diagnostic signals derived from an Observation.
// Computed before deciding; it shapes the rationale, not the action.
type Assessment struct {
	Alive        int
	GreenTrend   float64 // change in green allele frequency across the history window
	Extinctions  int     // collapses in the archived session
	Generations  int     // archived generations examined
	PressureFrom string  // environment type of the latest archived generation
	Level        string  // "CRITICAL", "WATCH", "STABLE"
}

// trendWindow is how many recent generations feed the trend.
const trendWindow = 5

// Triage computes an Assessment from the observation's data.
func Triage(obs *Observation) Assessment {
	a := Assessment{
		Alive: obs.State.Stats.Alive,
		Level: "STABLE",
	}

	for _, g := range obs.History {
		if g.Extinct {
			a.Extinctions++
		}
	}

	// History is oldest first; trend over the last window of survivors.
	var recent []GenerationSummary
	for _, g := range obs.History {
		if !g.Extinct {
			recent = append(recent, g)
		}
	}
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}
	a.Generations = len(recent)
	if len(recent) >= 2 {
		a.GreenTrend = recent[len(recent)-1].GreenAlleleFreq - recent[0].GreenAlleleFreq
	}
	if len(obs.History) > 0 {
		a.PressureFrom = obs.History[len(obs.History)-1].EnvironmentType
	}

	switch {
	case a.Alive <= 3:
		a.Level = "CRITICAL"
	case a.Alive <= 6 || a.Extinctions > 0:
		a.Level = "WATCH"
	}
	return a
}
