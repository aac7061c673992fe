package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetCache  bool
	resetLedger bool
	resetDB     bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset local state (encoding cache, attendance ledger)",
	Long: "Deletes the encoding cache and the attendance ledger. By default both are cleared. " +
		"Use flags to clear specific components; --drop-db also drops the reporting tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		// If no flags are set, clear both local files
		if !resetCache && !resetLedger && !resetDB {
			resetCache = true
			resetLedger = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetCache && confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete the encoding cache (%s)?", cfg.CachePath)) {
			fmt.Println("🗑️  Clearing encoding cache...")
			removeFile(cfg.CachePath)
		}

		if resetLedger && confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete ALL attendance records (%s)?", cfg.LedgerPath)) {
			fmt.Println("🗑️  Clearing attendance ledger...")
			removeFile(cfg.LedgerPath)
		}

		if resetDB && confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP the reporting tables?") {
			db, err := openStore(cmd.Context())
			if err != nil {
				utils.ShowError("Database unavailable", err, nil)
				return err
			}
			defer db.Close(cmd.Context())
			fmt.Println("🗑️  Clearing database...")
			if err := db.Reset(cmd.Context()); err != nil {
				utils.ShowError("Failed to reset database", err, nil)
				return err
			}
		}

		fmt.Println("✨ Reset complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetCache, "cache", false, "Delete the encoding cache")
	resetCmd.Flags().BoolVar(&resetLedger, "ledger", false, "Delete the attendance ledger")
	resetCmd.Flags().BoolVar(&resetDB, "drop-db", false, "Drop the PostgreSQL reporting tables")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
