package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the settings shared by every command. Flags override these values.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	// Matching
	Tolerance float64 `envconfig:"TOLERANCE" default:"0.55"`

	// Cooldown tiers
	SessionCooldown   time.Duration `envconfig:"SESSION_COOLDOWN" default:"10s"`
	LedgerMinInterval time.Duration `envconfig:"LEDGER_MIN_INTERVAL" default:"1m"`

	// Files
	CachePath  string `envconfig:"CACHE_PATH" default:"encodings.gob"`
	LedgerPath string `envconfig:"LEDGER_PATH" default:"Attendance.csv"`
	EnrollDir  string `envconfig:"ENROLL_DIR" default:"ImageAttendance"`

	// Capture & extraction
	Device        string        `envconfig:"DEVICE" default:"/dev/video0"`
	Extractor     string        `envconfig:"EXTRACTOR" default:"python3 -u python/worker.py"`
	WorkerTimeout time.Duration `envconfig:"WORKER_TIMEOUT" default:"30s"`

	// Reporting mirror (optional)
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

// Prefix is prepended to every variable name, e.g. ROLLCALL_TOLERANCE.
const Prefix = "ROLLCALL"

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values the core depends on.
func (c *Config) Validate() error {
	if c.Tolerance <= 0 || c.Tolerance > 1.0 {
		return fmt.Errorf("tolerance must be between 0.0 and 1.0, got %f", c.Tolerance)
	}
	if c.SessionCooldown < 0 {
		return fmt.Errorf("session cooldown must not be negative, got %s", c.SessionCooldown)
	}
	if c.LedgerMinInterval <= 0 {
		return fmt.Errorf("ledger minimum interval must be positive, got %s", c.LedgerMinInterval)
	}
	if c.CachePath == "" || c.LedgerPath == "" {
		return fmt.Errorf("cache and ledger paths are required")
	}
	return nil
}

// PostgresURL resolves the reporting database connection string: the explicit
// value, then the POSTGRES_* variables, then a local default.
func (c *Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	return "postgres://localhost:5432/rollcall"
}
