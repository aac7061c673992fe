package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/rollcall/internal/encodings"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the known identities in the encoding cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if listMirror {
			return runListMirror(cmd.Context())
		}
		return runList()
	},
}

var listMirror bool

func init() {
	listCmd.Flags().BoolVar(&listMirror, "mirror", false, "List the identities synced to PostgreSQL instead")
	rootCmd.AddCommand(listCmd)
}

func runListMirror(ctx context.Context) error {
	db, err := openStore(ctx)
	if err != nil {
		utils.ShowError("Database unavailable", err, nil)
		return err
	}
	defer db.Close(context.Background())

	identities, err := db.ListIdentities(ctx)
	if err != nil {
		utils.ShowError("Failed to list identities", err, nil)
		return err
	}
	if len(identities) == 0 {
		fmt.Println("No identities found in database. Run 'rollcall sync' first.")
		return nil
	}
	printIdentities(identities)
	return nil
}

func runList() error {
	res := encodings.Load(cfg.CachePath)
	switch res.Status {
	case encodings.Absent:
		fmt.Printf("No encoding cache at %s. Run 'rollcall encode' first.\n", cfg.CachePath)
		return nil
	case encodings.Corrupt:
		utils.ShowError("Encoding cache is unreadable, run 'rollcall encode --rebuild'", res.Err, nil)
		return res.Err
	}

	printIdentities(res.Cache.Identities())
	return nil
}

func printIdentities(identities []types.Identity) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tDIMENSIONS")
	fmt.Fprintln(w, "-\t----\t----------")
	for i, id := range identities {
		fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, id.Name, len(id.Descriptor))
	}
	w.Flush()
}
