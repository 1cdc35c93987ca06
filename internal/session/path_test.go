package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/sdcard", "myai"), RecordingDir("/sdcard"))
}

func TestNewOutputFileCreatesDirectoryAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "myai")
	ts := time.UnixMilli(1700000000123)

	path, err := newOutputFile(dir, ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1700000000123.m4a"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestNewOutputFileNeverReusesName(t *testing.T) {
	dir := t.TempDir()
	ts := time.UnixMilli(1700000000000)

	first, err := newOutputFile(dir, ts)
	require.NoError(t, err)
	second, err := newOutputFile(dir, ts)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, filepath.Join(dir, "1700000000001.m4a"), second)
}

func TestNewOutputFileDirectoryError(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := newOutputFile(filepath.Join(blocker, "myai"), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create recording directory")
}
