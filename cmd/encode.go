package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/andresmejia3/rollcall/internal/encodings"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/andresmejia3/rollcall/internal/worker"
	"github.com/spf13/cobra"
)

var encodeRebuild bool

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Compute face encodings for the enrollment images and cache them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runEncode(cmd.Context(), encodeRebuild)
	},
}

func init() {
	encodeCmd.Flags().BoolVar(&encodeRebuild, "rebuild", false, "Ignore the existing cache and recompute every encoding")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(ctx context.Context, rebuild bool) error {
	if rebuild {
		if err := os.Remove(cfg.CachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			utils.ShowError("Failed to delete encoding cache", err, nil)
			return err
		}
	}

	w, err := startExtractor(ctx, 0)
	if err != nil {
		utils.ShowError("Failed to start face extractor", err, nil)
		return err
	}
	defer w.Close()

	known, err := loadKnownSet(ctx, w)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✅ %d identities ready (cache: %s)\n", known.Len(), cfg.CachePath)
	return nil
}

// loadKnownSet returns the cached encodings, rebuilding them from the
// enrollment directory when needed. An empty result is a hard error.
func loadKnownSet(ctx context.Context, w *worker.PythonWorker) (encodings.Cache, error) {
	// A valid cache never needs the enrollment directory
	var images []encodings.EnrollmentImage
	if res := encodings.Load(cfg.CachePath); res.Status != encodings.OK {
		var err error
		images, err = encodings.ListEnrollmentImages(cfg.EnrollDir)
		if err != nil {
			utils.ShowError("Failed to list enrollment images", err, nil)
			return encodings.Cache{}, err
		}
		fmt.Fprintf(os.Stderr, "📂 Found %d enrollment images in %s\n", len(images), cfg.EnrollDir)
	}

	m := encodings.NewManager(cfg.CachePath, w, logger)
	m.Progress = os.Stderr
	known, err := m.LoadOrBuild(ctx, images)
	if err != nil {
		utils.ShowError("Failed to compute face encodings", err, w.Cmd)
		return encodings.Cache{}, err
	}
	if known.Len() == 0 {
		utils.ShowError("Cannot recognize anyone", encodings.ErrEmptyKnownSet, w.Cmd)
		return encodings.Cache{}, encodings.ErrEmptyKnownSet
	}
	return known, nil
}
