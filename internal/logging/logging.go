// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a timestamped JSON logger writing to w. Pass nil to log
// to stdout.
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// NewConsole returns a human-readable logger for local development.
func NewConsole() zerolog.Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr})
}
