package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = "info"
	logger, closeFn, err := New(cfg, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("table opened", zap.Int("rows", 3))
	require.NoError(t, closeFn())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "table opened")
	assert.Contains(t, out, `"rows": 3`)
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Debug("page flushed", zap.Uint32("page", 4))
	require.NoError(t, closeFn())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "page flushed", entry["msg"])
	assert.EqualValues(t, 4, entry["page"])
}

func TestFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "sqlet.log")
	cfg := DefaultConfig()
	cfg.File = path
	logger, closeFn, err := New(cfg, &buf)
	require.NoError(t, err)
	logger.Warn("input ended without .exit")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "input ended without .exit"))
	assert.Empty(t, buf.String())
}

func TestOff(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Config{Level: "off"}, &buf)
	require.NoError(t, err)
	logger.Error("dropped")
	require.NoError(t, closeFn())
	assert.Empty(t, buf.String())
}

func TestInvalid(t *testing.T) {
	_, _, err := New(Config{Level: "loud"}, new(bytes.Buffer))
	require.Error(t, err)
	_, _, err = New(Config{Level: "info", Format: "xml"}, new(bytes.Buffer))
	require.Error(t, err)
}
