// Command autopilot plays the simulator unattended through its HTTP API.
// It observes the state, decides the next action, and acts, learning quiz
// answers as they are revealed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/selection-lab/internal/autopilot"
	"github.com/talgya/selection-lab/internal/config"
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

	memoryPath := os.Getenv("AUTOPILOT_MEMORY")
	if memoryPath == "" {
		memoryPath = "autopilot_memory.json"
	}

	slog.Info("Selection Lab autopilot starting",
		"api_url", cfg.APIURL,
		"generations", cfg.Generations,
		"memory", memoryPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wait for the simulator API to be ready before the first cycle.
	slog.Info("waiting for simulator API...")
	if err := autopilot.WaitForAPI(ctx, cfg.APIURL, 5*time.Minute); err != nil {
		slog.Error("simulator API did not become ready", "error", err)
		os.Exit(1)
	}

	mem := autopilot.LoadMemory(memoryPath)
	pilot := autopilot.New(cfg.APIURL, cfg.AdminKey, mem)
	pilot.Generations = cfg.Generations

	runErr := pilot.Run(ctx)

	if err := mem.Save(memoryPath); err != nil {
		slog.Error("failed to write autopilot memory", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("autopilot stopped", "error", runErr)
		os.Exit(1)
	}
	fmt.Printf("Autopilot stopped. %d quiz answers learned.\n", len(mem.Answers))
}
