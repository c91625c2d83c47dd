package log

import (
	"os"
	"testing"
)

// TestingLogger returns a Logger that writes debug-level output when tests
// are run with -v, and discards everything otherwise.
func TestingLogger() Logger {
	if testing.Verbose() {
		logger, err := NewDefaultLogger(LogFormatPlain, LogLevelDebug)
		if err != nil {
			panic(err)
		}
		return logger
	}
	return NewNopLogger()
}

// TestingLoggerWithOutputToFile returns a Logger that always writes
// debug-level JSON, for tests that want to assert on log output.
func TestingLoggerWithOutputToFile(t testing.TB, path string) Logger {
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating log file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return NewTMJSONLogger(f)
}
