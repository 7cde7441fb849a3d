package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prysmalight/prysma-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger with the service's default fields.
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger for the given configuration.
// Every entry carries service and version fields.
func New(cfg config.LoggingConfig, version string) *Logger {
	return newWithWriter(cfg, version, outputFor(cfg.Output))
}

func newWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "prysma"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func outputFor(name string) io.Writer {
	if strings.ToLower(name) == "stderr" {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel maps debug, info, warn and error onto slog levels. Unknown values become info.
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

// With returns a Logger that adds the given key-value pairs to every entry.
//
//	mqttLogger := logger.With("component", "mqtt")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON info-level logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
