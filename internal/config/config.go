// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/abhisek/opoplan/internal/schedule"
)

// Config holds all opoplan configuration.
type Config struct {
	// DBPath is the SQLite database file. Empty means the XDG default.
	DBPath string

	// HTTPAddr is the listen address of the API server. Default: ":8080".
	HTTPAddr string

	// LogMode selects the log encoder: "development" or "production".
	LogMode string

	// Workers is the size of the generation worker pool. Default: 2.
	Workers int

	// BatchSize is the number of sessions written per insert transaction.
	BatchSize int

	// EquityThreshold is the max-min sessions-per-theme spread a block may
	// have and still count as equitable.
	EquityThreshold int

	// RedisURL enables the cross-process generation lock when set.
	RedisURL string

	Schedule schedule.Config
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		LogMode:         "development",
		Workers:         2,
		BatchSize:       500,
		EquityThreshold: 15,
		Schedule:        schedule.DefaultConfig(),
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// FromEnv builds a Config from OPOPLAN_* environment variables, falling
// back to defaults for unset values. Malformed numbers are reported
// together.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	if v := os.Getenv("OPOPLAN_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("OPOPLAN_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("OPOPLAN_LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	if v := os.Getenv("OPOPLAN_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}

	envInt(&errs, "OPOPLAN_WORKERS", &cfg.Workers)
	envInt(&errs, "OPOPLAN_BATCH_SIZE", &cfg.BatchSize)
	envInt(&errs, "OPOPLAN_EQUITY_THRESHOLD", &cfg.EquityThreshold)
	envInt(&errs, "OPOPLAN_BUFFER_DAYS", &cfg.Schedule.BufferDays)
	envInt(&errs, "OPOPLAN_REBALANCE_PASSES", &cfg.Schedule.RebalancePasses)

	if v := os.Getenv("OPOPLAN_MAX_SESSION_HOURS"); v != "" {
		h, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(v), ",", ".", 1), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("OPOPLAN_MAX_SESSION_HOURS: %q is not a number", v))
		} else {
			cfg.Schedule.MaxSessionHours = h
		}
	}

	return cfg, errors.Join(errs...)
}

func envInt(errs *[]error, key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

// Validate checks the config for errors.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("OPOPLAN_HTTP_ADDR must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("OPOPLAN_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("OPOPLAN_BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.EquityThreshold < 0 {
		return fmt.Errorf("OPOPLAN_EQUITY_THRESHOLD must not be negative, got %d", c.EquityThreshold)
	}
	switch strings.ToLower(c.LogMode) {
	case "", "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("unknown log mode: %q", c.LogMode)
	}
	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	return nil
}
