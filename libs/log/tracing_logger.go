package log

import "fmt"

// tracingLogger expands any error-typed value in a keyval list to its
// full %+v representation (stack trace included, for errors produced by
// github.com/pkg/errors) before delegating to next.
type tracingLogger struct {
	next Logger
}

// NewTracingLogger returns a Logger that expands error values with %+v
// before handing the line to next. Useful during debugging to recover a
// stack trace without changing every call site.
func NewTracingLogger(next Logger) Logger {
	return &tracingLogger{next: next}
}

func (l *tracingLogger) Info(msg string, keyvals ...interface{}) {
	l.next.Info(msg, formatErrors(keyvals)...)
}

func (l *tracingLogger) Debug(msg string, keyvals ...interface{}) {
	l.next.Debug(msg, formatErrors(keyvals)...)
}

func (l *tracingLogger) Warn(msg string, keyvals ...interface{}) {
	l.next.Warn(msg, formatErrors(keyvals)...)
}

func (l *tracingLogger) Error(msg string, keyvals ...interface{}) {
	l.next.Error(msg, formatErrors(keyvals)...)
}

func (l *tracingLogger) With(keyvals ...interface{}) Logger {
	return &tracingLogger{next: l.next.With(formatErrors(keyvals)...)}
}

func formatErrors(keyvals []interface{}) []interface{} {
	out := make([]interface{}, len(keyvals))
	copy(out, keyvals)
	for i := 1; i < len(out); i += 2 {
		if err, ok := out[i].(error); ok {
			out[i] = fmt.Sprintf("%+v", err)
		}
	}
	return out
}
