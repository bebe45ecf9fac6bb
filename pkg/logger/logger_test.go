package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogForwarding(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Error("read failed", "table", "ingredients")
	log.Warn("stale cache")
	log.Info("connected")
	log.Debug("probe ok")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="read failed"`)
	assert.Contains(t, out, "table=ingredients")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "level=DEBUG")
}

func TestDefaultHandlerDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(slog.NewTextHandler(&buf, nil))

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}
