package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger creates the process root logger. Component loggers derive from
// it with a "component" field.
func NewLogger(logLevel string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
