package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vishalm/staycrest-sub000/internal/config"
)

// ParseLevel maps a configured level name (case-insensitive) to a slog.Level.
// The second return value is false when the name is not recognized, in which
// case slog.LevelInfo is returned.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a JSON logger writing to out at the given level name.
// Unknown level names fall back to info and emit a warning through the
// returned logger itself.
func New(levelName string, out io.Writer) *slog.Logger {
	level, ok := ParseLevel(levelName)

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	})
	l := slog.New(handler)

	if !ok {
		l.Warn("invalid log level configured, using default level",
			"configured_level", levelName,
			"default_level", "info")
	}

	return l
}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger on stdout
// with the appropriate log level and sets it as the default logger for the
// application, so the slog package functions can be used directly.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	l := New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(l)
	return l, nil
}
