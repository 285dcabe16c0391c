package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel maps "debug", "info", "warn" or "error" to a slog level
// (default info).
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initialises the global slog default logger.
// format may be "json" or "text" (default "json"). When file is non-empty,
// records are also appended to it as JSON. The returned func closes the file.
func Setup(level, format, file string) func() error {
	lvl := ParseLevel(level)

	var logFile io.Writer
	cleanup := func() error { return nil }
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Error("failed to open log file, using stdout only", "error", err, "file", file)
		} else {
			logFile = f
			cleanup = f.Close
		}
	}

	slog.SetDefault(New(os.Stdout, logFile, lvl, format))
	return cleanup
}

// New builds a logger writing to out in the given format and, when file is
// non-nil, fanning out a JSON copy to file.
func New(out, file io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if file == nil {
		return slog.New(handler)
	}
	return slog.New(slogmulti.Fanout(handler, slog.NewJSONHandler(file, opts)))
}
