package logger_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiobridge/internal/logger"
)

func TestLogLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		level     logger.LogLevel
		logFunc   func(l logger.Logger, msg string)
		shouldLog bool
	}{
		{"debug at info", logger.LogLevelInfo, func(l logger.Logger, m string) { l.Debug(m) }, false},
		{"info at info", logger.LogLevelInfo, func(l logger.Logger, m string) { l.Info(m) }, true},
		{"warn at error", logger.LogLevelError, func(l logger.Logger, m string) { l.Warn(m) }, false},
		{"error at error", logger.LogLevelError, func(l logger.Logger, m string) { l.Error(m) }, true},
		{"trace at debug", logger.LogLevelDebug, func(l logger.Logger, m string) { l.Trace(m) }, false},
		{"trace at trace", logger.LogLevelTrace, func(l logger.Logger, m string) { l.Trace(m) }, true},
		{"explicit warn at info", logger.LogLevelInfo, func(l logger.Logger, m string) { l.Log(logger.LogLevelWarn, m) }, true},
		{"explicit debug at info", logger.LogLevelInfo, func(l logger.Logger, m string) { l.Log(logger.LogLevelDebug, m) }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.NewSlogLogger(&buf, tc.level, time.UTC)
			tc.logFunc(log, "queue drained")

			if tc.shouldLog {
				assert.Contains(t, buf.String(), "queue drained")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestFieldFormatting(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC).Module("audioio")

	log.Info("stream started",
		logger.String("stream_id", "abc"),
		logger.Int("channels", 2),
		logger.Float64("drift_ms", 1.23456),
		logger.Bool("close_on_error", true),
		logger.Duration("period", 20*time.Millisecond),
		logger.Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "module=audioio")
	assert.Contains(t, out, "stream_id=abc")
	assert.Contains(t, out, "channels=2")
	assert.Contains(t, out, "drift_ms=1.235")
	assert.Contains(t, out, "close_on_error=true")
	assert.Contains(t, out, "period=20ms")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "time=", "console output omits timestamps")
}

func TestModuleNestingAndWith(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)
	child := base.Module("device").Module("portaudio").With(logger.Int("device", 3))

	child.Info("opened")
	base.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "module=device.portaudio")
	assert.Contains(t, lines[0], "device=3")
	assert.NotContains(t, lines[1], "device=3", "With must not leak into the parent")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	log.WithContext(logger.WithTraceID(t.Context(), "trace-1")).Info("with trace")
	log.WithContext(t.Context()).Info("without trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=trace-1")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "audiobridge.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput: &logger.FileOutput{
			Enabled: true,
			Path:    path,
			Level:   "debug",
			MaxSize: 1,
		},
		ModuleLevels: map[string]string{"engine": "warn"},
	})
	require.NoError(t, err)

	cl.Module("audioio").Debug("opened", logger.Int("frames", 256))
	cl.Module("engine").Info("suppressed by module level")
	require.NoError(t, cl.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 1)
	assert.Equal(t, "opened", records[0]["msg"])
	assert.Equal(t, "audioio", records[0]["module"])
	assert.InDelta(t, 256, records[0]["frames"], 0)
}

func TestNewCentralLoggerErrors(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)

	_, err = logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Not/AZone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

func TestGlobalFallback(t *testing.T) {
	t.Parallel()

	log := logger.Global().Module("test")
	require.NotNil(t, log)
	assert.NotPanics(t, func() { log.Debug("fallback logger is usable") })
}
