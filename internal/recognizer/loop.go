// Package recognizer runs the per-frame pipeline: extract faces, match them,
// gate attendance through the cooldown controller and report feedback.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/andresmejia3/rollcall/internal/cooldown"
	"github.com/andresmejia3/rollcall/internal/encodings"
	"github.com/andresmejia3/rollcall/internal/match"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/andresmejia3/rollcall/internal/worker"
)

// Renderer consumes the feedback for every frame.
type Renderer interface {
	Render(feedback []types.Feedback)
}

// Stats counts what the loop saw.
type Stats struct {
	Frames     int
	Faces      int
	Unknown    int
	Recorded   int
	Cooling    int
	Ineligible int
	Skipped    int // frames the extractor rejected
}

// Loop is single threaded: one frame is fully processed, ledger write
// included, before the next one is read.
type Loop struct {
	Extractor encodings.Extractor
	Known     encodings.Cache
	Tolerance float64
	Cooldown  *cooldown.Controller
	Renderer  Renderer
	Logger    *slog.Logger
	Clock     func() time.Time
}

func (l *Loop) log() *slog.Logger {
	if l.Logger == nil {
		l.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.Logger
}

func (l *Loop) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}

// Run processes frames until the source ends, ctx is cancelled, or an error occurs.
// End of stream and cancellation are not errors.
func (l *Loop) Run(ctx context.Context, src FrameSource) (Stats, error) {
	var stats Stats
	if l.Known.Len() == 0 {
		return stats, encodings.ErrEmptyKnownSet
	}

	for {
		// Cancellation is polled once per frame; a frame in flight always completes.
		if ctx.Err() != nil {
			return stats, nil
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("frame acquisition failed: %w", err)
		}
		stats.Frames++

		feedback, err := l.ProcessFrame(ctx, stats.Frames, frame)
		if errors.Is(err, worker.ErrWorker) {
			stats.Skipped++
			l.log().Warn("extractor rejected frame", "frame", stats.Frames, "error", err)
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return stats, nil
			}
			return stats, err
		}

		for _, fb := range feedback {
			stats.Faces++
			switch {
			case fb.State == types.StateUnknown:
				stats.Unknown++
			case fb.State == types.StateCooling:
				stats.Cooling++
			case fb.Recorded:
				stats.Recorded++
			default:
				stats.Ineligible++
			}
		}

		if l.Renderer != nil {
			l.Renderer.Render(feedback)
		}
	}
}

// ProcessFrame runs extraction, matching and the cooldown gate for one frame.
func (l *Loop) ProcessFrame(ctx context.Context, index int, frame []byte) ([]types.Feedback, error) {
	faces, err := l.Extractor.Extract(ctx, frame)
	if err != nil {
		return nil, err
	}

	now := l.now()
	feedback := make([]types.Feedback, 0, len(faces))
	for _, face := range faces {
		res := match.Match(l.Known.Descriptors, l.Known.Names, face.Vec, l.Tolerance)
		fb := types.Feedback{
			Frame:    index,
			Loc:      utils.ScaleBox(face.Loc),
			Name:     types.Unknown,
			Distance: res.Distance,
			State:    types.StateUnknown,
		}

		if res.Known() {
			fb.Name = strings.ToUpper(res.Name)
			fb.State = types.StateMatched

			outcome, err := l.Cooldown.OnMatch(fb.Name, now)
			if err != nil {
				return nil, err
			}
			switch outcome {
			case cooldown.SessionCoolingDown:
				fb.State = types.StateCooling
			case cooldown.Recorded:
				fb.Recorded = true
				fb.RecordedAt = now
				l.log().Info("attendance recorded", "name", fb.Name, "distance", res.Distance)
			case cooldown.LedgerIneligible:
				l.log().Debug("ledger interval not elapsed", "name", fb.Name)
			}
		}
		feedback = append(feedback, fb)
	}
	return feedback, nil
}
