package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(&buf, Options{Level: "warn"})
	defer func() { require.NoError(t, closer.Close()) }()

	logger.Info("recording started")
	logger.Warn("recorder release failed", "error", "busy")

	assert.NotContains(t, buf.String(), "recording started")
	assert.Contains(t, buf.String(), "recorder release failed")
	assert.Contains(t, buf.String(), "error=busy")
}

func TestNewWritesToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "talkrec.log")

	logger, closer := New(&buf, Options{File: path, Level: "debug", MaxSizeMB: 1, MaxBackups: 1})
	logger.Debug("recording too short, not reported", "session_id", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session_id=abc")
	assert.Contains(t, buf.String(), "session_id=abc")
}
