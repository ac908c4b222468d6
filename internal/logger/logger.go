package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds a slog.Logger. format is "json" or "text"; level is one of
// debug, info, warn, error.
func Setup(w io.Writer, format, level string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// SetupDefault installs the logger as the process-wide default.
func SetupDefault(w io.Writer, format, level string) *slog.Logger {
	l := Setup(w, format, level)
	slog.SetDefault(l)
	return l
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
