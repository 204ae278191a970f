package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup configures the global zerolog logger at the given level and returns
// it, mirroring the teacher's slog-based Setup but on zerolog's structured,
// leveled JSON output (grounded on intelligencedev-manifold's InitLogger).
func Setup(level string) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	l = l.Level(parseLevel(level))
	zerolog.SetGlobalLevel(l.GetLevel())
	return &l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger creates a default logger with info level.
func Logger() *zerolog.Logger {
	return Setup("info")
}
