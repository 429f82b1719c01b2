package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a logger based on environment. level overrides the
// environment's default when it names a slog level ("debug", "warn", ...).
func NewLogger(environment, level string) *slog.Logger {
	return newLogger(os.Stdout, environment, level)
}

func newLogger(w io.Writer, environment, level string) *slog.Logger {
	var handler slog.Handler

	if environment == "production" {
		// Production: JSON with structured fields
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     parseLevel(level, slog.LevelInfo),
			AddSource: true,
		})
	} else {
		// Development: Human-readable text
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: parseLevel(level, slog.LevelDebug),
		})
	}

	return slog.New(handler)
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	var lvl slog.Level
	if s == "" || lvl.UnmarshalText([]byte(strings.ToUpper(s))) != nil {
		return fallback
	}
	return lvl
}
