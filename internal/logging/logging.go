// Package logging builds the process-wide structured logger, using
// github.com/rs/zerolog, grounded on ManuGH-xg2g's internal/log package
// (the pack's one other background-service repo with structured logging).
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing JSON lines to stdout, tagged with
// the service name and the given level ("debug", "info", "warn", "error";
// anything else falls back to info).
func New(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(os.Stdout).Level(parsed).With().
		Timestamp().
		Str("service", "whisper_aloud").
		Logger()
}
