package klyptik

import (
	"fmt"
	"io"
	"log/slog"
)

// logLevel is shared by every logger built with NewLogger
var logLevel = new(slog.LevelVar)

// SetVerbose switches the shared level between Info and Debug
func SetVerbose(verbose bool) {
	if verbose {
		logLevel.Set(slog.LevelDebug)
		return
	}
	logLevel.Set(slog.LevelInfo)
}

// Verbose reports whether debug logging is on
func Verbose() bool {
	return logLevel.Level() <= slog.LevelDebug
}

// VerboseLog logs only when verbose mode is enabled
func VerboseLog(format string, v ...any) {
	if Verbose() {
		slog.Debug(fmt.Sprintf(format, v...))
	}
}

// NewLogger builds a text or JSON logger writing to w at the shared level
func NewLogger(w io.Writer, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
