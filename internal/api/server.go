// Package api provides the HTTP API for observing and driving the simulator.
// GET endpoints are public (read-only observation).
// POST endpoints advance the cycle; reset additionally requires the admin
// bearer token when one is configured.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talgya/selection-lab/internal/engine"
	"github.com/talgya/selection-lab/internal/habitat"
	"github.com/talgya/selection-lab/internal/persistence"
)

const maxSSEConns = 8

// Server serves the engine over HTTP.
type Server struct {
	Engine   *engine.Engine
	Archive  *persistence.Recorder // nil = history endpoints answer 503
	Backdrop habitat.BackdropConfig
	Port     int
	AdminKey string // Bearer token for reset. Empty = reset open to all.

	// ActionLimit bounds mutating requests per client per minute (0 = 120).
	ActionLimit int

	// OnReset runs after an accepted reset, e.g. to rotate the archive session.
	OnReset func()

	// Active SSE connection count.
	sseConns atomic.Int32

	srv *http.Server
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	limit := s.ActionLimit
	if limit <= 0 {
		limit = 120
	}
	actions := NewRateLimiter(limit, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (GET, read-only).
		r.Get("/state", s.handleState)
		r.Get("/stats", s.handleStats)
		r.Get("/log", s.handleLog)
		r.Get("/environments", s.handleEnvironments)
		r.Get("/quiz", s.handleQuiz)
		r.Get("/habitat/backdrop", s.handleBackdrop)
		r.Get("/history", s.handleHistory)
		r.Get("/history/sessions", s.handleSessions)
		r.Get("/stream", s.handleStream)

		// Actions (POST, rate limited).
		r.Group(func(r chi.Router) {
			r.Use(actions.Middleware)
			r.Post("/advance", s.handleAdvance)
			r.Post("/quiz/answer", s.handleQuizAnswer)
			r.Post("/quiz/finish", s.handleQuizFinish)
			r.With(s.adminOnly).Post("/reset", s.handleReset)
		})
	})

	return r
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "history", s.Archive != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// requestLogger logs each request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires the admin bearer token when one is configured.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}
