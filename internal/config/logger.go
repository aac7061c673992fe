package config

import (
	"io"
	"log/slog"
)

// NewLogger returns a JSON logger at Info in production and a text logger at Debug otherwise.
// Logs go to w (normally stderr) so stdout stays free for command output.
func NewLogger(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		AddSource: env == "development",
	}

	if env == "production" {
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
