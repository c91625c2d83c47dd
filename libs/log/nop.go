package log

import (
	"github.com/rs/zerolog"
)

// NewNopLogger returns a logger that discards everything written to it.
func NewNopLogger() Logger {
	return defaultLogger{Logger: zerolog.Nop()}
}
