// Command selectionsim runs the natural selection simulator behind the HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/talgya/selection-lab/internal/api"
	"github.com/talgya/selection-lab/internal/config"
	"github.com/talgya/selection-lab/internal/engine"
	"github.com/talgya/selection-lab/internal/entropy"
	"github.com/talgya/selection-lab/internal/habitat"
	"github.com/talgya/selection-lab/internal/persistence"
)

func main() {
	cfg, err := config.FromEnv()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Selection Lab: natural selection simulator",
		"init", cfg.Engine.Init,
		"reproduction", cfg.Engine.Reproduction,
		"kill_cap", cfg.Engine.KillCap,
		"min_viable", cfg.Engine.MinViable,
		"mutation_rate", cfg.Engine.MutationRate,
	)

	// ── Randomness ────────────────────────────────────────────────────
	rng := entropy.FromConfig(cfg.Seed, cfg.RandomOrgKey)

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.New(cfg.Engine, rng, engine.RealTime{Speed: 1})

	// ── History Archive ───────────────────────────────────────────────
	var (
		db  *persistence.DB
		rec *persistence.Recorder
	)
	if cfg.DBPath != "" {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		db, err = persistence.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		rec, err = persistence.NewRecorder(db, cfg.Seed, eng.Config())
		if err != nil {
			db.Close()
			slog.Error("failed to start history session", "error", err)
			os.Exit(1)
		}
		eng.OnEvent = rec.RecordEvent
		eng.OnGeneration = rec.RecordGeneration
		slog.Info("database opened", "path", cfg.DBPath, "session", rec.Session())
	} else {
		slog.Warn("SELECTIONLAB_DB_PATH empty, generation history disabled")
		eng.OnGeneration = func(r engine.GenerationRecord) {
			slog.Debug("generation closed", "generation", r.Generation, "extinct", r.Extinct)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("SELECTIONLAB_ADMIN_KEY not set, reset is open to every client")
	}
	apiServer := &api.Server{
		Engine:   eng,
		Archive:  rec,
		Backdrop: habitat.DefaultBackdropConfig(),
		Port:     cfg.Port,
		AdminKey: cfg.AdminKey,
	}
	if rec != nil {
		apiServer.OnReset = func() {
			if err := rec.Rotate(); err != nil {
				slog.Error("history session rotation failed", "error", err)
			}
		}
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n%d beetles are waiting in the %s.\n", len(eng.Snapshot().Population), eng.Snapshot().Environment.Name)
	fmt.Printf("API: http://localhost:%d/api/v1/state\n", cfg.Port)

	if cfg.Autoplay {
		auto := engine.NewAutoplay(eng)
		auto.Generations = cfg.Generations
		fmt.Println("Autoplay enabled... (Ctrl+C to stop)")
		go auto.Run(ctx)
	} else {
		fmt.Println("Waiting for actions... (Ctrl+C to stop)")
	}

	<-ctx.Done()
	slog.Info("received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = apiServer.Shutdown(shutdownCtx)
	if rec != nil {
		err = multierr.Append(err, rec.Flush())
	}
	if db != nil {
		err = multierr.Append(err, db.Close())
	}
	if err != nil {
		for _, e := range multierr.Errors(err) {
			slog.Error("shutdown error", "error", e)
		}
		os.Exit(1)
	}

	fmt.Println("Simulation stopped. History saved.")
}
