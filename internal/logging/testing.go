package logging

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries are kept in memory for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger records every entry at Debug and above.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core)},
		observed: observed,
	}
}

func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries with exactly this message.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset drops everything recorded so far.
func (t *TestLogger) Reset() {
	_ = t.observed.TakeAll()
}

func (t *TestLogger) matching(level zapcore.Level, snippet string) *observer.ObservedLogs {
	return t.observed.FilterLevelExact(level).FilterMessageSnippet(snippet)
}

// AssertLogged fails tb unless an entry at level contains snippet.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if t.matching(level, snippet).Len() == 0 {
		tb.Errorf("no %s entry containing %q; recorded: %v", level, snippet, t.messages())
	}
}

// AssertNotLogged fails tb if an entry at level contains snippet.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if n := t.matching(level, snippet).Len(); n > 0 {
		tb.Errorf("found %d unexpected %s entries containing %q", n, level, snippet)
	}
}

// AssertField fails tb unless an entry with message msg carries key=expected.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	entries := t.observed.FilterMessage(msg).FilterFieldKey(key).All()
	for _, entry := range entries {
		if reflect.DeepEqual(entry.ContextMap()[key], expected) {
			return
		}
	}
	tb.Errorf("%q has no field %s=%v (%d entries carry the key)", msg, key, expected, len(entries))
}

// AssertTraceCorrelation fails tb unless an entry with message msg carries a
// trace_id, meaning it was logged inside a recording span.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	if t.observed.FilterMessage(msg).FilterFieldKey("trace_id").Len() == 0 {
		tb.Errorf("%q was not logged with a trace_id", msg)
	}
}

func (t *TestLogger) messages() []string {
	all := t.observed.All()
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.Level.String() + " " + e.Message
	}
	return out
}
