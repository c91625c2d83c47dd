package log

import (
	"fmt"
	"io"
	stdlog "log"
	"strings"
)

// stdLibLogger wraps the standard library's log.Logger so it can be used
// anywhere a Logger is expected, e.g. when embedding this module as a
// dependency of something that only understands the stdlib logger.
type stdLibLogger struct {
	srcLogger *stdlog.Logger
	keyvals   []interface{}
}

// NewStdLibLogger returns a Logger backed by the standard library's log
// package, with the given prefix and flag (see stdlib log.New).
func NewStdLibLogger(w io.Writer, prefix string, flag int) Logger {
	return &stdLibLogger{srcLogger: stdlog.New(w, prefix, flag)}
}

func (l *stdLibLogger) Info(msg string, keyvals ...interface{}) {
	l.log(LogLevelInfo, msg, keyvals...)
}

func (l *stdLibLogger) Debug(msg string, keyvals ...interface{}) {
	l.log(LogLevelDebug, msg, keyvals...)
}

func (l *stdLibLogger) Warn(msg string, keyvals ...interface{}) {
	l.log(LogLevelWarn, msg, keyvals...)
}

func (l *stdLibLogger) Error(msg string, keyvals ...interface{}) {
	l.log(LogLevelError, msg, keyvals...)
}

func (l *stdLibLogger) log(level, msg string, keyvals ...interface{}) {
	all := append(append([]interface{}{}, l.keyvals...), keyvals...)
	parts := make([]string, 0, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", all[i], all[i+1]))
	}
	if len(parts) == 0 {
		l.srcLogger.Printf("%s: %s", level, msg)
		return
	}
	l.srcLogger.Printf("%s: %s %s", level, msg, strings.Join(parts, " "))
}

func (l *stdLibLogger) With(keyvals ...interface{}) Logger {
	return &stdLibLogger{
		srcLogger: l.srcLogger,
		keyvals:   append(append([]interface{}{}, l.keyvals...), keyvals...),
	}
}
