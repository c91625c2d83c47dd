package log

import "fmt"

type level byte

const (
	levelDebug level = 1 << iota
	levelInfo
	levelWarn
	levelError
)

// Option sets a parameter for the filter.
type Option func(*filter)

// AllowLevel returns an Option for the given level string, as in
// AllowLevelInfo, AllowLevelDebug, etc. An error is returned if the level
// string is invalid.
func AllowLevel(lvl string) (Option, error) {
	switch lvl {
	case LogLevelDebug:
		return AllowDebug(), nil
	case LogLevelInfo:
		return AllowInfo(), nil
	case LogLevelError:
		return AllowError(), nil
	case LogLevelNone:
		return AllowNone(), nil
	default:
		return nil, fmt.Errorf("expected either %q, %q, %q or %q level, given %s",
			LogLevelDebug, LogLevelInfo, LogLevelError, LogLevelNone, lvl)
	}
}

// AllowAll is an alias for AllowDebug.
func AllowAll() Option {
	return AllowDebug()
}

// AllowDebug allows error, warn, info and debug level output.
func AllowDebug() Option {
	return allowed(levelDebug | levelInfo | levelWarn | levelError)
}

// AllowInfo allows error, warn and info level output.
func AllowInfo() Option {
	return allowed(levelInfo | levelWarn | levelError)
}

// AllowError allows only error level output.
func AllowError() Option {
	return allowed(levelError)
}

// AllowNone allows no output at all.
func AllowNone() Option {
	return allowed(0)
}

func allowed(allowed level) Option {
	return func(l *filter) { l.allowed = allowed }
}

// AllowDebugWith allows error, warn, info and debug level output for log
// lines (determined by the With call) matching the given key/value pair.
func AllowDebugWith(key, value interface{}) Option {
	return func(l *filter) {
		l.allowedKeyvals[keyval{key, value}] = levelDebug | levelInfo | levelWarn | levelError
	}
}

// AllowInfoWith allows error, warn and info level output for log lines
// matching the given key/value pair.
func AllowInfoWith(key, value interface{}) Option {
	return func(l *filter) { l.allowedKeyvals[keyval{key, value}] = levelInfo | levelWarn | levelError }
}

// AllowErrorWith allows only error level output for log lines matching the
// given key/value pair.
func AllowErrorWith(key, value interface{}) Option {
	return func(l *filter) { l.allowedKeyvals[keyval{key, value}] = levelError }
}

// AllowNoneWith suppresses all output for log lines matching the given
// key/value pair, regardless of level.
func AllowNoneWith(key, value interface{}) Option {
	return func(l *filter) { l.allowedKeyvals[keyval{key, value}] = 0 }
}

type keyval struct {
	key, value interface{}
}

type filter struct {
	next           Logger
	allowed        level
	allowedKeyvals map[keyval]level
	keyvals        []interface{}
}

// NewFilter wraps next and implements filtering. See the commentary on the
// Allow* functions for a detailed description of how to configure levels.
func NewFilter(next Logger, options ...Option) Logger {
	l := &filter{
		next:           next,
		allowedKeyvals: make(map[keyval]level),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *filter) Info(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelInfo != 0
	if !levelAllowed && !l.mustBeLoggedWith(levelInfo, keyvals...) {
		return
	}
	l.next.Info(msg, keyvals...)
}

func (l *filter) Debug(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelDebug != 0
	if !levelAllowed && !l.mustBeLoggedWith(levelDebug, keyvals...) {
		return
	}
	l.next.Debug(msg, keyvals...)
}

func (l *filter) Warn(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelWarn != 0
	if !levelAllowed && !l.mustBeLoggedWith(levelWarn, keyvals...) {
		return
	}
	l.next.Warn(msg, keyvals...)
}

func (l *filter) Error(msg string, keyvals ...interface{}) {
	levelAllowed := l.allowed&levelError != 0
	if !levelAllowed && !l.mustBeLoggedWith(levelError, keyvals...) {
		return
	}
	l.next.Error(msg, keyvals...)
}

// mustBeLoggedWith walks the bound (via With) and call-site key/value pairs,
// in that order, and returns the decision of the last pair that has a
// matching AllowXWith rule. A later pair overrides an earlier one, so the
// most specific With call governs.
func (l *filter) mustBeLoggedWith(lvl level, keyvals ...interface{}) bool {
	all := append(append([]interface{}{}, l.keyvals...), keyvals...)
	found, allow := false, false
	for i := 0; i+1 < len(all); i += 2 {
		if a, ok := l.allowedKeyvals[keyval{all[i], all[i+1]}]; ok {
			found, allow = true, a&lvl != 0
		}
	}
	return found && allow
}

func (l *filter) With(keyvals ...interface{}) Logger {
	combined := append(append([]interface{}{}, l.keyvals...), keyvals...)
	return &filter{
		next:           l.next.With(keyvals...),
		allowed:        l.allowed,
		allowedKeyvals: l.allowedKeyvals,
		keyvals:        combined,
	}
}
