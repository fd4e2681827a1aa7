package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/pkg/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "test", LogLevel: "info", LogFormat: "json"}, &buf)

	log.Debug("hidden")
	log.Info("visible")
	log.Infof("pool size %d", 50)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "visible", lines[0]["message"])
	assert.Equal(t, "test", lines[0]["env"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "pool size 50", lines[1]["message"])
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "test", LogLevel: "debug"}, &buf)

	log.WithComponent("scheduler").
		WithFields(map[string]interface{}{"job": "pool_refresh", "dates": 3}).
		WithError(errors.New("boom")).
		Warn("job failed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "scheduler", lines[0]["component"])
	assert.Equal(t, "pool_refresh", lines[0]["job"])
	assert.Equal(t, float64(3), lines[0]["dates"])
	assert.Equal(t, "boom", lines[0]["error"])
}

func TestZerolog_SharesOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{LogLevel: "warn"}, &buf).WithField("run", "r1")

	z := log.Zerolog()
	z.Info().Msg("below level")
	z.Error().Msg("engine error")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "r1", lines[0]["run"])
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&config.Config{LogLevel: "info", LogFormat: "console"}, &buf).Info("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().WithComponent("x").Error("dropped") })
}
