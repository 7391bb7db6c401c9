package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envKeys = []string{
	"OPOPLAN_DB", "OPOPLAN_HTTP_ADDR", "OPOPLAN_LOG_MODE", "OPOPLAN_WORKERS",
	"OPOPLAN_BUFFER_DAYS", "OPOPLAN_MAX_SESSION_HOURS", "OPOPLAN_BATCH_SIZE",
	"OPOPLAN_REBALANCE_PASSES", "OPOPLAN_EQUITY_THRESHOLD", "OPOPLAN_REDIS_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Workers != 2 || cfg.BatchSize != 500 || cfg.EquityThreshold != 15 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Schedule.BufferDays != 30 || cfg.Schedule.MaxSessionHours != 2 || cfg.Schedule.RebalancePasses != 3 {
		t.Errorf("schedule defaults = %+v", cfg.Schedule)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPOPLAN_DB", "/tmp/x.db")
	t.Setenv("OPOPLAN_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("OPOPLAN_LOG_MODE", "production")
	t.Setenv("OPOPLAN_WORKERS", "4")
	t.Setenv("OPOPLAN_BUFFER_DAYS", "21")
	t.Setenv("OPOPLAN_MAX_SESSION_HOURS", "1,5")
	t.Setenv("OPOPLAN_BATCH_SIZE", "100")
	t.Setenv("OPOPLAN_REBALANCE_PASSES", "1")
	t.Setenv("OPOPLAN_EQUITY_THRESHOLD", "10")
	t.Setenv("OPOPLAN_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.HTTPAddr != "127.0.0.1:9000" || cfg.LogMode != "production" {
		t.Errorf("strings = %+v", cfg)
	}
	if cfg.Workers != 4 || cfg.BatchSize != 100 || cfg.EquityThreshold != 10 {
		t.Errorf("ints = %+v", cfg)
	}
	if cfg.Schedule.BufferDays != 21 || cfg.Schedule.MaxSessionHours != 1.5 || cfg.Schedule.RebalancePasses != 1 {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.RedisURL == "" {
		t.Error("RedisURL not set")
	}
}

func TestFromEnvReportsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPOPLAN_WORKERS", "many")
	t.Setenv("OPOPLAN_MAX_SESSION_HOURS", "long")

	cfg, err := FromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"OPOPLAN_WORKERS", "OPOPLAN_MAX_SESSION_HOURS"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want default kept", cfg.Workers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no workers", func(c *Config) { c.Workers = 0 }, "OPOPLAN_WORKERS"},
		{"no batch", func(c *Config) { c.BatchSize = 0 }, "OPOPLAN_BATCH_SIZE"},
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }, "OPOPLAN_HTTP_ADDR"},
		{"bad log mode", func(c *Config) { c.LogMode = "loud" }, "log mode"},
		{"negative buffer", func(c *Config) { c.Schedule.BufferDays = -1 }, "buffer days"},
		{"zero session", func(c *Config) { c.Schedule.MaxSessionHours = 0 }, "max session hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("OPOPLAN_WORKERS=7\nOPOPLAN_HTTP_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Explicit process values win over the file.
	t.Setenv("OPOPLAN_HTTP_ADDR", ":7000")
	os.Unsetenv("OPOPLAN_WORKERS")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("OPOPLAN_WORKERS") })

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Workers != 7 {
		t.Errorf("Workers = %d, want 7 from file", cfg.Workers)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want process value", cfg.HTTPAddr)
	}
}
