package log

import (
	"fmt"
	stdlog "log"
	"os"

	"github.com/rs/zerolog"
)

const (
	// LogFormatPlain indicates a human readable format where the log keyvals
	// are laid out linearly, each preceded by its key.
	LogFormatPlain = "plain"
	// LogFormatJSON indicates a json log format.
	LogFormatJSON = "json"
	// LogFormatStdlib routes through the standard library's log package
	// instead of zerolog, for operators piping into tooling that only
	// expects stdlib-shaped lines.
	LogFormatStdlib = "stdlib"

	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelNone  = "none"
)

// defaultLogger wraps a zerolog.Logger and satisfies the Logger interface.
// NewNopLogger returns it directly; NewDefaultLogger returns it wrapped in
// a tracingLogger for the plain and json formats.
type defaultLogger struct {
	zerolog.Logger
}

// NewDefaultLogger returns a logger that writes to os.Stdout, formatted either
// as json or a human readable plain format, filtering below level.
func NewDefaultLogger(format, level string) (Logger, error) {
	if format == LogFormatStdlib {
		allow, err := AllowLevel(level)
		if err != nil {
			return nil, err
		}
		return NewTracingLogger(NewFilter(NewStdLibLogger(os.Stdout, "", stdlog.LstdFlags), allow)), nil
	}

	var logger zerolog.Logger

	switch format {
	case LogFormatPlain:
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true})

	case LogFormatJSON:
		logger = zerolog.New(os.Stdout)

	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	logger = logger.With().Timestamp().Logger()

	switch level {
	case LogLevelInfo:
		logger = logger.Level(zerolog.InfoLevel)
	case LogLevelDebug:
		logger = logger.Level(zerolog.DebugLevel)
	case LogLevelError:
		logger = logger.Level(zerolog.ErrorLevel)
	case LogLevelNone:
		logger = logger.Level(zerolog.Disabled)
	default:
		return nil, fmt.Errorf("unsupported log level %q", level)
	}

	return NewTracingLogger(defaultLogger{Logger: logger}), nil
}

func (l defaultLogger) Info(msg string, keyvals ...interface{}) {
	l.Logger.Info().Fields(getFields(keyvals...)).Msg(msg)
}

func (l defaultLogger) Debug(msg string, keyvals ...interface{}) {
	l.Logger.Debug().Fields(getFields(keyvals...)).Msg(msg)
}

func (l defaultLogger) Warn(msg string, keyvals ...interface{}) {
	l.Logger.Warn().Fields(getFields(keyvals...)).Msg(msg)
}

func (l defaultLogger) Error(msg string, keyvals ...interface{}) {
	l.Logger.Error().Fields(getFields(keyvals...)).Msg(msg)
}

func (l defaultLogger) With(keyvals ...interface{}) Logger {
	return defaultLogger{Logger: l.Logger.With().Fields(getFields(keyvals...)).Logger()}
}

func getFields(keyvals ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fields[fmt.Sprintf("%v", keyvals[i])] = keyvals[i+1]
	}
	return fields
}
