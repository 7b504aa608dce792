package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "test message"

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(raw, &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		emitDebug bool
		emitInfo  bool
	}{
		{name: "debug", level: "debug", emitDebug: true, emitInfo: true},
		{name: "info", level: "info", emitDebug: false, emitInfo: true},
		{name: "error", level: "error", emitDebug: false, emitInfo: false},
		{name: "invalid falls back to info", level: "chatty", emitDebug: false, emitInfo: true},
		{name: "empty falls back to info", level: "", emitDebug: false, emitInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(tt.level, false, &buf, nil)

			log.Debug().Msg("debug line")
			log.Info().Msg("info line")

			out := buf.String()
			assert.Equal(t, tt.emitDebug, bytes.Contains([]byte(out), []byte("debug line")))
			assert.Equal(t, tt.emitInfo, bytes.Contains([]byte(out), []byte("info line")))
		})
	}
}

func TestLogEventFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", false, &buf, nil)

	log.Warn().
		Str("method", "GET").
		Str("authorization", "Bearer abc").
		Int("status", 503).
		Int64("bytes", 1024).
		Bool("retry", true).
		Dur("elapsed", 1500*time.Millisecond).
		Interface("body", map[string]any{"password": "x", "name": "y"}).
		Err(errors.New("boom")).
		Msg(testMessage)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]

	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, testMessage, entry["message"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, DefaultMaskValue, entry["authorization"])
	assert.Equal(t, float64(503), entry["status"])
	assert.Equal(t, float64(1024), entry["bytes"])
	assert.Equal(t, true, entry["retry"])
	assert.Equal(t, "boom", entry["error"])

	body := entry["body"].(map[string]any)
	assert.Equal(t, DefaultMaskValue, body["password"])
	assert.Equal(t, "y", body["name"])
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", false, &buf, nil).WithFields(map[string]any{
		"component": "httpclient",
		"api_key":   "k",
	})

	log.Info().Msgf("sent %d", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "httpclient", lines[0]["component"])
	assert.Equal(t, DefaultMaskValue, lines[0]["api_key"])
	assert.Equal(t, "sent 3", lines[0]["message"])
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", true, &buf, nil)

	log.Info().Str("path", "/rest/api").Msg(testMessage)

	assert.Contains(t, buf.String(), testMessage)
	assert.Contains(t, buf.String(), "/rest/api")
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.Error().Str("k", "v").Msg(testMessage)
		log.WithFields(map[string]any{"a": 1}).Info().Msg(testMessage)
	})
	assert.NotNil(t, log.Filter())
}
