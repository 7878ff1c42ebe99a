package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuietLogger() *Logger {
	l := New("connector-test", "0.0.0")
	l.DisableConsoleOutput()
	return l
}

func receive(t *testing.T, ch <-chan LogEntry) LogEntry {
	t.Helper()
	select {
	case entry := <-ch:
		return entry
	case <-time.After(time.Second):
		require.FailNow(t, "no log entry received")
		return LogEntry{}
	}
}

func TestLoggerPublishesToSubscribers(t *testing.T) {
	l := newQuietLogger()
	ch := l.Subscribe()

	l.Infof("connected to %s", "mongodb")

	entry := receive(t, ch)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "connected to mongodb", entry.Message)
	assert.Nil(t, entry.Fields)
}

func TestLogContextCarriesFields(t *testing.T) {
	l := newQuietLogger()
	ch := l.Subscribe()

	ctx := l.WithFields(map[string]string{"connection": "c1"})
	ctx.With("operation", "create_record").Error("write failed")
	ctx.Debug("still here")

	first := receive(t, ch)
	assert.Equal(t, "ERROR", first.Level)
	assert.Equal(t, map[string]string{"connection": "c1", "operation": "create_record"}, first.Fields)

	second := receive(t, ch)
	assert.Equal(t, "DEBUG", second.Level)
	assert.Equal(t, map[string]string{"connection": "c1"}, second.Fields, "With must not mutate the parent context")
}

func TestFormatFields(t *testing.T) {
	assert.Equal(t, "", formatFields(nil))
	assert.Equal(t, " a=1 b=2", formatFields(map[string]string{"b": "2", "a": "1"}))
}

func TestFormatServiceName(t *testing.T) {
	assert.Len(t, formatServiceName("mongodb"), ServiceNameWidth)
	assert.Equal(t, "averyveryverylongse…", formatServiceName("averyveryverylongservicename"))
}

func TestConsoleLevelFiltersOutputOnly(t *testing.T) {
	var buf bytes.Buffer
	l := New("connector-test", "0.0.0")
	l.SetOutput(&buf)
	l.SetLevel(LevelWarn)
	ch := l.Subscribe()

	l.Info("hidden")
	l.WithFields(map[string]string{"trace_id": "t-1"}).Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WARN  shown trace_id=t-1")

	assert.Equal(t, "hidden", receive(t, ch).Message)
	warn := receive(t, ch)
	assert.Equal(t, "t-1", warn.TraceID)
	assert.Equal(t, "connector-test", warn.Service)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{in: "debug", want: LevelDebug, ok: true},
		{in: "", want: LevelInfo, ok: true},
		{in: " Warning ", want: LevelWarn, ok: true},
		{in: "ERROR", want: LevelError, ok: true},
		{in: "loud", want: LevelInfo, ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}
