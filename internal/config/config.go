// Package config loads runtime settings from the environment.
// Every variable is optional; unset variables keep their defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/selection-lab/internal/engine"
	"github.com/talgya/selection-lab/internal/population"
)

// ErrInvalidPolicy marks an unknown policy name.
var ErrInvalidPolicy = errors.New("invalid policy")

// Environment variable names.
const (
	EnvSeed         = "SELECTIONLAB_SEED"
	EnvInitPolicy   = "SELECTIONLAB_INIT_POLICY"
	EnvReproduction = "SELECTIONLAB_REPRODUCTION"
	EnvMinViable    = "SELECTIONLAB_MIN_VIABLE"
	EnvKillCap      = "SELECTIONLAB_KILL_CAP"
	EnvMutationRate = "SELECTIONLAB_MUTATION_RATE"
	EnvRevealDelay  = "SELECTIONLAB_REVEAL_DELAY"
	EnvSettleDelay  = "SELECTIONLAB_SETTLE_DELAY"
	EnvDBPath       = "SELECTIONLAB_DB_PATH"
	EnvPort         = "SELECTIONLAB_PORT"
	EnvAdminKey     = "SELECTIONLAB_ADMIN_KEY"
	EnvRandomOrgKey = "SELECTIONLAB_RANDOM_ORG_KEY"
	EnvLogLevel     = "SELECTIONLAB_LOG_LEVEL"
	EnvAPIURL       = "SELECTIONLAB_API_URL"
	EnvGenerations  = "SELECTIONLAB_AUTOPILOT_GENERATIONS"
	EnvAutoplay     = "SELECTIONLAB_AUTOPLAY"
)

// Config is the full runtime configuration.
type Config struct {
	Engine engine.Config

	Seed         int64  // 0 = nondeterministic
	RandomOrgKey string // enables true randomness from random.org
	DBPath       string // empty (env "off") = history archive disabled
	Port         int
	AdminKey     string // bearer token for reset; empty = reset open to all
	LogLevel     slog.Level
	Autoplay     bool

	// Autopilot client settings.
	APIURL      string
	Generations int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine:      engine.DefaultConfig(),
		DBPath:      "data/selection-lab.db",
		Port:        8080,
		LogLevel:    slog.LevelInfo,
		APIURL:      "http://localhost:8080",
		Generations: 10,
	}
}

// FromEnv overlays environment variables onto the defaults and validates.
func FromEnv() (Config, error) {
	cfg := Default()
	var err error

	cfg.Seed = envInt64OrDefault(EnvSeed, cfg.Seed)
	cfg.RandomOrgKey = os.Getenv(EnvRandomOrgKey)
	cfg.DBPath = envOrDefault(EnvDBPath, cfg.DBPath)
	if cfg.DBPath == "off" {
		cfg.DBPath = ""
	}
	cfg.Port = envIntOrDefault(EnvPort, cfg.Port)
	cfg.AdminKey = os.Getenv(EnvAdminKey)
	cfg.APIURL = envOrDefault(EnvAPIURL, cfg.APIURL)
	cfg.Generations = envIntOrDefault(EnvGenerations, cfg.Generations)
	cfg.Autoplay = envBoolOrDefault(EnvAutoplay, cfg.Autoplay)

	if v := os.Getenv(EnvLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	ec := &cfg.Engine
	if v := os.Getenv(EnvInitPolicy); v != "" {
		if ec.Init, err = population.ParseInitPolicy(v); err != nil {
			return cfg, fmt.Errorf("%s: %w: %v", EnvInitPolicy, ErrInvalidPolicy, err)
		}
	}
	if v := os.Getenv(EnvReproduction); v != "" {
		if ec.Reproduction, err = population.ParseReproductionPolicy(v); err != nil {
			return cfg, fmt.Errorf("%s: %w: %v", EnvReproduction, ErrInvalidPolicy, err)
		}
	}
	ec.MinViable = envIntOrDefault(EnvMinViable, ec.MinViable)
	ec.KillCap = envIntOrDefault(EnvKillCap, ec.KillCap)
	ec.MutationRate = envFloatOrDefault(EnvMutationRate, ec.MutationRate)
	ec.RevealDelay = envDurationOrDefault(EnvRevealDelay, ec.RevealDelay)
	ec.SettleDelay = envDurationOrDefault(EnvSettleDelay, ec.SettleDelay)

	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot honor.
func (c Config) Validate() error {
	ec := c.Engine
	if ec.MinViable < 1 {
		return fmt.Errorf("min viable must be at least 1, got %d", ec.MinViable)
	}
	if ec.KillCap < 0 || ec.KillCap > population.Size {
		return fmt.Errorf("kill cap must be in [0, %d], got %d", population.Size, ec.KillCap)
	}
	if ec.MutationRate < 0 || ec.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1], got %v", ec.MutationRate)
	}
	if ec.RevealDelay < 0 || ec.SettleDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring malformed integer", "key", key, "value", v)
	}
	return defaultVal
}

func envInt64OrDefault(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		slog.Warn("ignoring malformed integer", "key", key, "value", v)
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("ignoring malformed number", "key", key, "value", v)
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("ignoring malformed duration", "key", key, "value", v)
	}
	return defaultVal
}

func envBoolOrDefault(key string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}
