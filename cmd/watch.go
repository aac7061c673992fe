package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/andresmejia3/rollcall/internal/cooldown"
	"github.com/andresmejia3/rollcall/internal/ledger"
	"github.com/andresmejia3/rollcall/internal/recognizer"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recognize faces from the camera and record attendance",
	Long: "Reads frames from the camera (or --input), matches every face against the known set " +
		"and appends attendance to the ledger. Runs until Ctrl+C or the end of the stream.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := validateWatchFlags(&opts); err != nil {
			utils.ShowError("Invalid input", err, nil)
			return err
		}
		return runWatch(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().StringVarP(&opts.InputPath, "input", "i", "", "Read a video file instead of the camera ('-' for MJPEG on stdin)")
	watchCmd.Flags().StringVar(&opts.Device, "device", "", "Camera device (default: /dev/video0)")
	watchCmd.Flags().Float64VarP(&opts.Tolerance, "tolerance", "t", 0, "Face matching tolerance, lower is stricter (default: 0.55)")
	watchCmd.Flags().DurationVar(&opts.SessionCooldown, "session-cooldown", 0, "Minimum time between two ledger checks for one person (default: 10s)")
	watchCmd.Flags().DurationVar(&opts.LedgerInterval, "ledger-interval", 0, "Minimum time between two ledger records for one person (default: 1m)")
	rootCmd.AddCommand(watchCmd)
}

// validateWatchFlags ensures the input can be opened before starting the extractor.
func validateWatchFlags(o *Options) error {
	if o.InputPath == "" || o.InputPath == "-" {
		return nil
	}
	info, err := os.Stat(o.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", o.InputPath)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a video file: %s", o.InputPath)
	}
	return nil
}

// openSource picks stdin, a file or the configured camera device.
func openSource(input, device string) (recognizer.FrameSource, func() string, func() error, error) {
	if input == "-" {
		return recognizer.NewJpegStream(os.Stdin), func() string { return "" }, func() error { return nil }, nil
	}
	target := device
	if input != "" {
		target = input
	}
	cam, err := recognizer.OpenCamera(target)
	if err != nil {
		return nil, nil, nil, err
	}
	return cam, cam.Logs, cam.Close, nil
}

func runWatch(ctx context.Context) error {
	sessionID := uuid.NewString()
	log := logger.With("session", sessionID)

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

	l := ledger.New(cfg.LedgerPath, cfg.LedgerMinInterval)
	loop := &recognizer.Loop{
		Extractor: w,
		Known:     known,
		Tolerance: cfg.Tolerance,
		Cooldown:  cooldown.New(l, cfg.SessionCooldown, nil),
		Renderer:  recognizer.NewTextRenderer(os.Stdout, log),
		Logger:    log,
	}

	src, ffmpegLogs, closeSource, err := openSource(opts.InputPath, cfg.Device)
	if err != nil {
		utils.ShowError("Failed to open video source", err, nil)
		return err
	}
	defer closeSource()

	fmt.Fprintf(os.Stderr, "👁️  Watching for %d known identities (session %s). Press Ctrl+C to stop.\n", known.Len(), sessionID[:8])
	log.Info("recognition started",
		"identities", known.Len(),
		"tolerance", cfg.Tolerance,
		"session_cooldown", cfg.SessionCooldown,
		"ledger_interval", cfg.LedgerMinInterval,
		"ledger", cfg.LedgerPath,
	)

	stats, runErr := loop.Run(ctx, src)
	if runErr != nil {
		if logs := ffmpegLogs(); logs != "" {
			fmt.Fprintf(os.Stderr, "\nFFmpeg Logs:\n%s\n", logs)
		}
		utils.ShowError("Recognition stopped", runErr, w.Cmd)
	}

	printWatchSummary(stats)
	log.Info("recognition finished", "frames", stats.Frames, "recorded", stats.Recorded)
	return runErr
}

func printWatchSummary(s recognizer.Stats) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 SESSION SUMMARY\n")
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🎞️  Frames processed:      %d\n", s.Frames)
	fmt.Fprintf(os.Stderr, "👁️  Faces detected:        %d\n", s.Faces)
	fmt.Fprintf(os.Stderr, "✅ Attendance recorded:    %d\n", s.Recorded)
	fmt.Fprintf(os.Stderr, "❓ Unknown faces:          %d\n", s.Unknown)
	if s.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Frames skipped:        %d\n", s.Skipped)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}
