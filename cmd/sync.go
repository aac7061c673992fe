package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/rollcall/internal/encodings"
	"github.com/andresmejia3/rollcall/internal/ledger"
	"github.com/andresmejia3/rollcall/internal/store"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var syncReport bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy known identities and attendance records into PostgreSQL",
	Long: "Mirrors the encoding cache and the attendance ledger into the reporting database. " +
		"The ledger stays authoritative; running sync twice inserts nothing new.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSync(cmd.Context())
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncReport, "report", false, "Print the per-person totals stored in the database afterwards")
	rootCmd.AddCommand(syncCmd)
}

// openStore connects to the reporting database.
func openStore(ctx context.Context) (*store.Store, error) {
	db, err := store.New(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func runSync(ctx context.Context) error {
	db, err := openStore(ctx)
	if err != nil {
		utils.ShowError("Database unavailable", err, nil)
		return err
	}
	// Background: ctx may already be cancelled and the close must still reach the server
	defer db.Close(context.Background())

	res := encodings.Load(cfg.CachePath)
	switch res.Status {
	case encodings.OK:
		fmt.Fprintf(os.Stderr, "🧬 Syncing %d known identities...\n", res.Cache.Len())
		if err := db.UpsertIdentities(ctx, res.Cache.Identities()); err != nil {
			utils.ShowError("Failed to sync identities", err, nil)
			return err
		}
	case encodings.Corrupt:
		fmt.Fprintf(os.Stderr, "⚠️  Encoding cache is unreadable, skipping identities: %v\n", res.Err)
	default:
		fmt.Fprintln(os.Stderr, "⚠️  No encoding cache, skipping identities")
	}

	records, err := ledger.New(cfg.LedgerPath, cfg.LedgerMinInterval).Records()
	if err != nil {
		utils.ShowError("Failed to read attendance ledger", err, nil)
		return err
	}
	inserted, err := db.InsertAttendance(ctx, records)
	if err != nil {
		utils.ShowError("Failed to sync attendance", err, nil)
		return err
	}
	logger.Info("ledger synced", "records", len(records), "inserted", inserted)
	fmt.Fprintf(os.Stderr, "✅ %d attendance records synced (%d new)\n", len(records), inserted)

	if !syncReport {
		return nil
	}

	rows, err := db.AttendanceSummary(ctx)
	if err != nil {
		utils.ShowError("Failed to query attendance summary", err, nil)
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tRECORDS\tFIRST SEEN\tLAST SEEN")
	fmt.Fprintln(w, "----\t-------\t----------\t---------")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Name, r.Count,
			r.First.Local().Format(ledger.TimeLayout), r.Last.Local().Format(ledger.TimeLayout))
	}
	return w.Flush()
}
