// Package logging builds the shell's diagnostic logger. Diagnostics are kept
// apart from the job notices the user sees on stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ParseLevel converts a level name to a zerolog.Level, defaulting to error
// when the name is empty.
func ParseLevel(levelString string) (zerolog.Level, error) {
	if levelString == "" {
		return zerolog.ErrorLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		return zerolog.ErrorLevel, fmt.Errorf("invalid log level %q: %w", levelString, err)
	}
	return level, nil
}

// NewLoggerWithWriter returns a JSON logger tagged with a fresh session id.
func NewLoggerWithWriter(level zerolog.Level, w io.Writer) zerolog.Logger {
	ctx := zerolog.New(w).Level(level).With().
		Timestamp().
		Str("session", uuid.NewString())
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the logger for a shell session. When file is empty, logs go to
// stderr through a console writer; otherwise they are appended to file as
// JSON lines. The returned closer releases the file.
func Open(levelString, file string) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(levelString)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	if file == "" {
		w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return NewLoggerWithWriter(level, w), nopCloser{}, nil
	}

	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("error opening log file: %w", err)
	}
	return NewLoggerWithWriter(level, f), f, nil
}
