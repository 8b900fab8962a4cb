package cli

import (
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// newLogger creates a charm logger writing to w at level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// logLevel picks the log level: debug when verbose, otherwise the
// configured level name.
func logLevel(verbose bool, name string) (charmlog.Level, error) {
	if verbose {
		return charmlog.DebugLevel, nil
	}
	return charmlog.ParseLevel(strings.ToLower(name))
}

// installLogger routes the package-level slog calls made by the engine,
// store and harness through a charm logger.
func installLogger(w io.Writer, level charmlog.Level) {
	slog.SetDefault(slog.New(newLogger(w, level)))
}
