package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/talgya/selection-lab/internal/engine"
	"github.com/talgya/selection-lab/internal/habitat"
	"github.com/talgya/selection-lab/internal/persistence"
	"github.com/talgya/selection-lab/internal/population"
)

// queryInt reads a positive integer query parameter, clamped to upper.
func queryInt(r *http.Request, key string, def, upper int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return min(n, upper)
		}
	}
	return def
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Engine.Snapshot())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.Engine.Snapshot()
	writeJSON(w, struct {
		Generation  int                 `json:"generation"`
		Stage       engine.Stage        `json:"stage"`
		Environment habitat.Environment `json:"environment"`
		Stats       population.Stats    `json:"stats"`
	}{snap.Generation, snap.Stage, snap.Environment, snap.Stats})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1000)
	snap := s.Engine.Snapshot()
	writeJSON(w, map[string]any{
		"log":    snap.Log,
		"events": s.Engine.Events(limit),
	})
}

func (s *Server) handleEnvironments(w http.ResponseWriter, r *http.Request) {
	type environmentInfo struct {
		habitat.Environment
		Survival map[string]float64 `json:"survival"`
	}
	table := s.Engine.Config().Survival
	out := make([]environmentInfo, 0, len(habitat.Catalog))
	for _, env := range habitat.Catalog {
		rates := table[env.Kind]
		out = append(out, environmentInfo{
			Environment: env,
			Survival: map[string]float64{
				"BB": rates[0],
				"GB": rates[1],
				"GG": rates[2],
			},
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Engine.Snapshot().Quiz)
}

// handleBackdrop renders the current environment, or ?type=LUSH|MEADOW|ARID.
func (s *Server) handleBackdrop(w http.ResponseWriter, r *http.Request) {
	kind := s.Engine.Snapshot().Environment.Kind
	if v := r.URL.Query().Get("type"); v != "" {
		k, err := habitat.ParseKind(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		kind = k
	}
	cfg := s.Backdrop
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg = habitat.DefaultBackdropConfig()
	}
	writeJSON(w, habitat.GenerateBackdrop(kind, cfg))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		http.Error(w, "history archive not available", http.StatusServiceUnavailable)
		return
	}

	limit := queryInt(r, "limit", 0, 10000)
	var (
		rows []persistence.GenerationRow
		err  error
	)
	if session := r.URL.Query().Get("session"); session != "" {
		rows, err = s.Archive.DB.Generations(session, limit)
	} else {
		rows, err = s.Archive.History(limit)
	}
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.GenerationRow{}
	}
	writeJSON(w, map[string]any{
		"session":     s.Archive.Session(),
		"generations": rows,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		http.Error(w, "history archive not available", http.StatusServiceUnavailable)
		return
	}
	rows, err := s.Archive.DB.Sessions(queryInt(r, "limit", 20, 500))
	if err != nil {
		slog.Error("sessions query failed", "error", err)
		http.Error(w, "sessions query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []persistence.Session{}
	}
	writeJSON(w, rows)
}

// respondAction answers with the post-action snapshot, 409 when rejected.
func (s *Server) respondAction(w http.ResponseWriter, action string, accepted bool) {
	snap := s.Engine.Snapshot()
	if !accepted {
		slog.Debug("action rejected", "action", action, "stage", snap.Stage, "processing", snap.Processing)
		writeJSONStatus(w, http.StatusConflict, snap)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.respondAction(w, "advance", s.Engine.Advance())
}

func (s *Server) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Option *int `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == nil {
		http.Error(w, `invalid JSON (want {"option": n})`, http.StatusBadRequest)
		return
	}
	s.respondAction(w, "quiz answer", s.Engine.AnswerQuiz(*req.Option))
}

func (s *Server) handleQuizFinish(w http.ResponseWriter, r *http.Request) {
	s.respondAction(w, "quiz finish", s.Engine.FinishQuiz())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ok := s.Engine.ResetAll()
	if ok {
		slog.Debug("reset accepted", "remote", r.RemoteAddr)
		if s.OnReset != nil {
			s.OnReset()
		}
	}
	s.respondAction(w, "reset", ok)
}
