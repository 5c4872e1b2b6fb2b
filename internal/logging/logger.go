package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Local runs get human-readable console
// output on stderr; everything else writes JSON lines. Stdout stays free for
// command output such as `select --format json`.
func New(environment, level string) (zerolog.Logger, error) {
	return NewWithWriter(environment, level, os.Stderr)
}

func NewWithWriter(environment, level string, out io.Writer) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
	}

	writer := out
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "newspaper").
		Logger()

	return logger, nil
}

// Verbose lowers the level to debug when the edition config asks for it.
func Verbose(logger zerolog.Logger, verbose bool) zerolog.Logger {
	if !verbose || logger.GetLevel() <= zerolog.DebugLevel {
		return logger
	}
	return logger.Level(zerolog.DebugLevel)
}
