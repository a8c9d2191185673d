package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "info", Format: FormatJSON}, &buf)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	logger.Debug("hidden")
	logger.Info("turn handled", "stage", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "turn handled", rec["msg"])
	assert.InDelta(t, 2, rec["stage"], 0)
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "debug", Format: FormatConsole}, &buf)
	require.NoError(t, err)

	logger.Debug("visible", "session_id", "tab-1")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "tab-1")
}

func TestNewFanOutToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "callprep.log")
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "info", Format: FormatConsole, File: path}, &buf)
	require.NoError(t, err)

	logger.Warn("session expired", "owner_id", "anon_1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "session expired", rec["msg"])
	assert.Contains(t, buf.String(), "session expired")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, _, err := New(Options{Level: "info", Format: "xml"}, &bytes.Buffer{})
	require.Error(t, err)
}
