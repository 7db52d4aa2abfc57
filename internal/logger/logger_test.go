package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestSlogLoggerLevels(t *testing.T) {
	tests := []struct {
		level   LogLevel
		emitted []string
	}{
		{LogLevelTrace, []string{"trace", "debug", "info", "warn", "error"}},
		{LogLevelDebug, []string{"debug", "info", "warn", "error"}},
		{LogLevelInfo, []string{"info", "warn", "error"}},
		{LogLevelError, []string{"error"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := NewSlogLogger(buf, tt.level, time.UTC)
			log.Trace("trace")
			log.Debug("debug")
			log.Info("info")
			log.Warn("warn")
			log.Error("error")

			var got []string
			for _, line := range decodeLines(t, buf) {
				got = append(got, line["msg"].(string))
			}
			assert.Equal(t, tt.emitted, got)
		})
	}
}

func TestTraceLevelName(t *testing.T) {
	buf := &bytes.Buffer{}
	NewSlogLogger(buf, LogLevelTrace, time.UTC).Trace("deep")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "TRACE", lines[0]["level"])
}

func TestModuleAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	root := NewSlogLogger(buf, LogLevelDebug, time.UTC)

	log := root.Module("pestnet").Module("resolver").With(String("strategy", "complete"))
	log.Info("attempt failed",
		Error(errors.New("missing model.json")),
		Float32("confidence", 0.123456),
		Duration("elapsed", 1234*time.Microsecond))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "pestnet.resolver", lines[0]["module"])
	assert.Equal(t, "complete", lines[0]["strategy"])
	assert.Equal(t, "missing model.json", lines[0]["error"])
	assert.InDelta(t, 0.123, lines[0]["confidence"], 1e-9)
	assert.Equal(t, "1ms", lines[0]["elapsed"])
}

func TestWithContextTraceID(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(context.Background(), "req-42")).Info("handled")
	log.WithContext(context.Background()).Info("no trace")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-42", lines[0][traceIDKey])
	assert.NotContains(t, lines[1], traceIDKey)
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pestnet.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"datastore": "warn"},
	})
	require.NoError(t, err)

	cl.Module("api").Debug("request received", String("path", "/predict"))
	cl.Module("datastore").Info("suppressed by module level")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, lines, 1)
	assert.Equal(t, "api", lines[0]["module"])
	assert.Equal(t, "/predict", lines[0]["path"])
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)
}

func TestNilConfig(t *testing.T) {
	_, err := NewCentralLogger(nil)
	require.Error(t, err)
}
