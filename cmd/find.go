package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/rollcall/internal/match"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/andresmejia3/rollcall/internal/worker"
	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find <image_path>",
	Short: "Identify every face in a single image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runFind(cmd.Context(), args[0])
	},
}

var findMirror bool

func init() {
	findCmd.Flags().Float64VarP(&opts.Tolerance, "tolerance", "t", 0, "Face matching tolerance, lower is stricter (default: 0.55)")
	findCmd.Flags().BoolVar(&findMirror, "mirror", false, "Search the PostgreSQL mirror instead of the local encoding cache")
	rootCmd.AddCommand(findCmd)
}

func runFind(ctx context.Context, imagePath string) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}

	imgData, err := os.ReadFile(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	w, err := startExtractor(ctx, 0)
	if err != nil {
		utils.ShowError("Failed to start face extractor", err, nil)
		return err
	}
	defer w.Close()

	identify, closeLookup, err := newIdentifier(ctx, w)
	if err != nil {
		return err
	}
	defer closeLookup()

	fmt.Fprintln(os.Stderr, "🔍 Analyzing image...")
	faces, err := w.Extract(ctx, imgData)
	if err != nil {
		utils.ShowError("Face extraction failed", err, w.Cmd)
		return err
	}

	if len(faces) == 0 {
		fmt.Println("❌ No faces detected in the provided image.")
		return nil
	}

	out := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(out, "FACE\tNAME\tDISTANCE\tBOX")
	fmt.Fprintln(out, "----\t----\t--------\t---")
	for i, face := range faces {
		name, dist, err := identify(ctx, face.Vec)
		if err != nil {
			utils.ShowError("Identity lookup failed", err, nil)
			return err
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%v\n", i+1, name, fmtDistance(dist), face.Loc)
	}
	return out.Flush()
}

type identifyFunc func(ctx context.Context, vec []float64) (string, float64, error)

// newIdentifier matches against the local known set, or the reporting mirror with --mirror.
func newIdentifier(ctx context.Context, w *worker.PythonWorker) (identifyFunc, func(), error) {
	if findMirror {
		db, err := openStore(ctx)
		if err != nil {
			utils.ShowError("Database unavailable", err, nil)
			return nil, nil, err
		}
		fmt.Fprintln(os.Stderr, "🗄️  Searching database...")
		return func(ctx context.Context, vec []float64) (string, float64, error) {
			name, dist, err := db.FindClosestIdentity(ctx, vec, cfg.Tolerance)
			if name == "" {
				name = types.Unknown
			}
			return name, dist, err
		}, func() { db.Close(context.Background()) }, nil
	}

	known, err := loadKnownSet(ctx, w)
	if err != nil {
		return nil, nil, err
	}
	return func(ctx context.Context, vec []float64) (string, float64, error) {
		res := match.Match(known.Descriptors, known.Names, vec, cfg.Tolerance)
		return res.Name, res.Distance, nil
	}, func() {}, nil
}

// fmtDistance prints "-" when there was nothing to compare against.
func fmtDistance(d float64) string {
	if math.IsInf(d, 1) {
		return "-"
	}
	return fmt.Sprintf("%.3f", d)
}
