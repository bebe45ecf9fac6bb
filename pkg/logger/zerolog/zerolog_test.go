package zerolog

import (
	"bytes"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLevels(t *testing.T) {
	cases := []struct {
		name  string
		log   func(h *Handler)
		level string
	}{
		{"error", func(h *Handler) { h.Error("boom") }, "error"},
		{"warn", func(h *Handler) { h.Warn("boom") }, "warn"},
		{"info", func(h *Handler) { h.Info("boom") }, "info"},
		{"debug", func(h *Handler) { h.Debug("boom") }, "debug"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			tc.log(NewWriter(&buf))

			line := logLine(t, &buf)
			assert.Equal(t, tc.level, line["level"])
			assert.Equal(t, "boom", line["message"])
			assert.Contains(t, line, "time")
		})
	}
}

func TestKeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Info("fetched rows", "table", "ingredients", "count", 3)

	line := logLine(t, &buf)
	assert.Equal(t, "ingredients", line["table"])
	assert.Equal(t, 3.0, line["count"])
}

func TestTrailingKeyWithoutValue(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Info("oops", "table", "ingredients", "dangling")

	line := logLine(t, &buf)
	assert.Equal(t, "ingredients", line["table"])
	assert.Equal(t, "dangling", line["!BADKEY"])
}

func TestNonStringKey(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Info("odd key", 42, "value")

	line := logLine(t, &buf)
	assert.Equal(t, "value", line["42"])
}
