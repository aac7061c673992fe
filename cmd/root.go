package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresmejia3/rollcall/internal/config"
	"github.com/andresmejia3/rollcall/internal/worker"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Options holds the flag values shared by the subcommands. Only flags the
// user actually set override the environment configuration.
type Options struct {
	CachePath  string
	LedgerPath string
	EnrollDir  string
	Extractor  string
	Debug      bool

	InputPath       string
	Device          string
	Tolerance       float64
	SessionCooldown time.Duration
	LedgerInterval  time.Duration
}

var (
	opts Options
	// cfg and logger are resolved once per invocation in PersistentPreRunE
	cfg    *config.Config
	logger *slog.Logger
	// dbURL is the reporting database connection string
	dbURL string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "rollcall",
	Short:   "Face recognition attendance recorder",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		applyOverrides(cmd, &opts, c)
		if err := c.Validate(); err != nil {
			return err
		}

		env := c.Environment
		if opts.Debug {
			env = "development"
		}
		cfg = c
		logger = config.NewLogger(env, os.Stderr)
		return nil
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// A missing .env is fine; the environment and flags still apply
	cobra.OnInitialize(func() { _ = godotenv.Load() })

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.CachePath, "cache-file", "", "Path to the face encoding cache (default: encodings.gob)")
	pf.StringVar(&opts.LedgerPath, "ledger-file", "", "Path to the attendance ledger (default: Attendance.csv)")
	pf.StringVar(&opts.EnrollDir, "enroll-dir", "", "Directory of enrollment images, one person per file (default: ImageAttendance)")
	pf.StringVar(&opts.Extractor, "extractor", "", "Command that starts the face extractor worker")
	pf.BoolVarP(&opts.Debug, "debug", "d", false, "Verbose logging and extractor debug output")
	pf.StringVar(&dbURL, "db", "", "PostgreSQL connection string for sync (default: postgres://localhost:5432/rollcall)")
}

// applyOverrides copies every flag the user set on cmd into c.
func applyOverrides(cmd *cobra.Command, o *Options, c *config.Config) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("cache-file", func() { c.CachePath = o.CachePath })
	set("ledger-file", func() { c.LedgerPath = o.LedgerPath })
	set("enroll-dir", func() { c.EnrollDir = o.EnrollDir })
	set("extractor", func() { c.Extractor = o.Extractor })
	set("device", func() { c.Device = o.Device })
	set("tolerance", func() { c.Tolerance = o.Tolerance })
	set("session-cooldown", func() { c.SessionCooldown = o.SessionCooldown })
	set("ledger-interval", func() { c.LedgerMinInterval = o.LedgerInterval })
	set("db", func() { c.DatabaseURL = dbURL })
}

// startExtractor launches one extractor worker configured from cfg.
func startExtractor(ctx context.Context, id int) (*worker.PythonWorker, error) {
	fmt.Fprintln(os.Stderr, "🚀 Starting face extractor...")
	return worker.NewPythonWorker(ctx, id, worker.Config{
		Command:     worker.ParseCommand(cfg.Extractor),
		ReadTimeout: cfg.WorkerTimeout,
		Debug:       opts.Debug,
	})
}
