package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/talgya/selection-lab/internal/population"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvSeed, "99")
	t.Setenv(EnvInitPolicy, "homozygous")
	t.Setenv(EnvReproduction, "clonal")
	t.Setenv(EnvMinViable, "1")
	t.Setenv(EnvKillCap, "12")
	t.Setenv(EnvMutationRate, "0.25")
	t.Setenv(EnvRevealDelay, "10ms")
	t.Setenv(EnvPort, "9090")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvAutoplay, "yes")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	ec := cfg.Engine
	if cfg.Seed != 99 || cfg.Port != 9090 || !cfg.Autoplay || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if ec.Init != population.InitHomozygous || ec.Reproduction != population.ReproduceClonal {
		t.Fatalf("policies not applied: %s %s", ec.Init, ec.Reproduction)
	}
	if ec.MinViable != 1 || ec.KillCap != 12 || ec.MutationRate != 0.25 || ec.RevealDelay != 10*time.Millisecond {
		t.Fatalf("engine overrides not applied: %+v", ec)
	}
}

func TestFromEnvRejectsUnknownPolicy(t *testing.T) {
	t.Setenv(EnvReproduction, "budding")
	if _, err := FromEnv(); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv(EnvKillCap, "lots")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Engine.KillCap != Default().Engine.KillCap {
		t.Fatalf("malformed value should keep default, got %d", cfg.Engine.KillCap)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"min viable": func(c *Config) { c.Engine.MinViable = 0 },
		"kill cap":   func(c *Config) { c.Engine.KillCap = 21 },
		"mutation":   func(c *Config) { c.Engine.MutationRate = 1.5 },
		"delay":      func(c *Config) { c.Engine.SettleDelay = -time.Second },
		"port":       func(c *Config) { c.Port = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestDBPathOff(t *testing.T) {
	t.Setenv(EnvDBPath, "off")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.DBPath != "" {
		t.Fatalf("DBPath = %q, want empty", cfg.DBPath)
	}
}
