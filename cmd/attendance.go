package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/rollcall/internal/ledger"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var attendanceName string

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show the last recorded attendance per person",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runAttendance(attendanceName)
	},
}

func init() {
	attendanceCmd.Flags().StringVarP(&attendanceName, "name", "n", "", "Only show this person (case-insensitive)")
	rootCmd.AddCommand(attendanceCmd)
}

func runAttendance(name string) error {
	l := ledger.New(cfg.LedgerPath, cfg.LedgerMinInterval)
	summaries, err := l.Summaries()
	if err != nil {
		utils.ShowError("Failed to read attendance ledger", err, nil)
		return err
	}

	if name != "" {
		want := ledger.Canonical(name)
		filtered := summaries[:0]
		for _, s := range summaries {
			if s.Name == want {
				filtered = append(filtered, s)
			}
		}
		summaries = filtered
	}

	if len(summaries) == 0 {
		fmt.Println("No attendance recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tRECORDS\tLAST SEEN")
	fmt.Fprintln(w, "----\t-------\t---------")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, s.Count, s.Last.Format(ledger.TimeLayout))
	}
	return w.Flush()
}
