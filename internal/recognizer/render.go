package recognizer

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/andresmejia3/rollcall/internal/ledger"
	"github.com/andresmejia3/rollcall/internal/types"
)

// TextRenderer prints recorded attendance and logs per-identity state changes.
// Drawing boxes on a window is left to other renderers.
type TextRenderer struct {
	Out    io.Writer
	Logger *slog.Logger

	last map[string]types.FaceState
}

func NewTextRenderer(out io.Writer, logger *slog.Logger) *TextRenderer {
	return &TextRenderer{Out: out, Logger: logger, last: make(map[string]types.FaceState)}
}

func (r *TextRenderer) Render(feedback []types.Feedback) {
	for _, fb := range feedback {
		if fb.Recorded {
			fmt.Fprintf(r.Out, "✅ ATTENDANCE RECORDED: %s at %s\n", fb.Name, fb.RecordedAt.Format(ledger.TimeLayout))
		}
		if fb.State == types.StateUnknown {
			continue
		}
		if prev, ok := r.last[fb.Name]; !ok || prev != fb.State {
			r.Logger.Debug("face state", "name", fb.Name, "state", fb.State, "box", fb.Loc, "distance", fb.Distance)
			r.last[fb.Name] = fb.State
		}
	}
}
