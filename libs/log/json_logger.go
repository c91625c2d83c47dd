package log

import (
	"io"

	kitlog "github.com/go-kit/kit/log"
	kitlevel "github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/log/term"
)

const msgKey = "_msg"

// tmLogger wraps a go-kit logger, used for the colorized terminal logger
// and the legacy logfmt/JSON encodings still consumed by some tooling.
type tmLogger struct {
	srcLogger kitlog.Logger
}

// NewTMLogger returns a colorized, human readable logger writing to w.
func NewTMLogger(w io.Writer) Logger {
	colorFn := func(keyvals ...interface{}) term.FgBgColor {
		for i := 0; i < len(keyvals)-1; i += 2 {
			if keyvals[i] != kitlevel.Key() {
				continue
			}
			switch keyvals[i+1] {
			case kitlevel.DebugValue():
				return term.FgBgColor{Fg: term.DarkGray}
			case kitlevel.InfoValue():
				return term.FgBgColor{}
			case kitlevel.WarnValue():
				return term.FgBgColor{Fg: term.Yellow}
			case kitlevel.ErrorValue():
				return term.FgBgColor{Fg: term.Red}
			default:
				return term.FgBgColor{}
			}
		}
		return term.FgBgColor{}
	}

	return &tmLogger{srcLogger: kitlog.NewSyncLogger(term.NewLogger(w, kitlog.NewLogfmtLogger, colorFn))}
}

// NewTMJSONLogger returns a JSON logger with a UTC timestamp attached to
// every line.
func NewTMJSONLogger(w io.Writer) Logger {
	logger := kitlog.NewJSONLogger(w)
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	return &tmLogger{srcLogger: logger}
}

// NewTMJSONLoggerNoTS is NewTMJSONLogger without the timestamp, handy for
// tests that assert on exact output.
func NewTMJSONLoggerNoTS(w io.Writer) Logger {
	return &tmLogger{srcLogger: kitlog.NewJSONLogger(w)}
}

func (l *tmLogger) Info(msg string, keyvals ...interface{}) {
	lWithLevel := kitlevel.Info(l.srcLogger)
	if err := kitlog.With(lWithLevel, msgKey, msg).Log(keyvals...); err != nil {
		panic(err)
	}
}

func (l *tmLogger) Debug(msg string, keyvals ...interface{}) {
	lWithLevel := kitlevel.Debug(l.srcLogger)
	if err := kitlog.With(lWithLevel, msgKey, msg).Log(keyvals...); err != nil {
		panic(err)
	}
}

func (l *tmLogger) Warn(msg string, keyvals ...interface{}) {
	lWithLevel := kitlevel.Warn(l.srcLogger)
	if err := kitlog.With(lWithLevel, msgKey, msg).Log(keyvals...); err != nil {
		panic(err)
	}
}

func (l *tmLogger) Error(msg string, keyvals ...interface{}) {
	lWithLevel := kitlevel.Error(l.srcLogger)
	if err := kitlog.With(lWithLevel, msgKey, msg).Log(keyvals...); err != nil {
		panic(err)
	}
}

func (l *tmLogger) With(keyvals ...interface{}) Logger {
	return &tmLogger{srcLogger: kitlog.With(l.srcLogger, keyvals...)}
}
