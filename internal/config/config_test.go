package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tolerance != 0.55 {
		t.Errorf("Tolerance = %v, want 0.55", cfg.Tolerance)
	}
	if cfg.SessionCooldown != 10*time.Second {
		t.Errorf("SessionCooldown = %v, want 10s", cfg.SessionCooldown)
	}
	if cfg.LedgerMinInterval != time.Minute {
		t.Errorf("LedgerMinInterval = %v, want 1m", cfg.LedgerMinInterval)
	}
	if cfg.LedgerPath != "Attendance.csv" || cfg.CachePath != "encodings.gob" {
		t.Errorf("Unexpected default paths %q %q", cfg.LedgerPath, cfg.CachePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults must validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ROLLCALL_TOLERANCE", "0.4")
	t.Setenv("ROLLCALL_SESSION_COOLDOWN", "3s")
	t.Setenv("ROLLCALL_LEDGER_PATH", "/tmp/ledger.csv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tolerance != 0.4 || cfg.SessionCooldown != 3*time.Second || cfg.LedgerPath != "/tmp/ledger.csv" {
		t.Errorf("Environment not applied: %+v", cfg)
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("ROLLCALL_SESSION_COOLDOWN", "soon")
	if _, err := Load(); err == nil {
		t.Error("Expected error for unparsable duration")
	}
}

func TestValidate(t *testing.T) {
	base := Config{Tolerance: 0.55, SessionCooldown: 10 * time.Second, LedgerMinInterval: time.Minute, CachePath: "c", LedgerPath: "l"}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"Zero tolerance", func(c *Config) { c.Tolerance = 0 }, true},
		{"Tolerance above one", func(c *Config) { c.Tolerance = 1.5 }, true},
		{"Negative cooldown", func(c *Config) { c.SessionCooldown = -time.Second }, true},
		{"Zero cooldown allowed", func(c *Config) { c.SessionCooldown = 0 }, false},
		{"Zero interval", func(c *Config) { c.LedgerMinInterval = 0 }, true},
		{"Missing ledger path", func(c *Config) { c.LedgerPath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresURL(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	c := Config{}
	if got := c.PostgresURL(); got != "postgres://localhost:5432/rollcall" {
		t.Errorf("PostgresURL() = %q", got)
	}

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "att")
	t.Setenv("POSTGRES_PORT", "")
	if got := c.PostgresURL(); got != "postgres://u:p@db:5432/att" {
		t.Errorf("PostgresURL() = %q", got)
	}

	c.DatabaseURL = "postgres://explicit/db"
	if got := c.PostgresURL(); got != "postgres://explicit/db" {
		t.Errorf("PostgresURL() = %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("production", &buf).Debug("hidden")
	NewLogger("production", &buf).Info("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Production logger must drop debug records")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("Expected JSON output, got %q", out)
	}
}
