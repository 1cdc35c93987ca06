package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

// maxNameAttempts bounds the search for a free file name.
const maxNameAttempts = 1000

// RecordingDir returns the directory recordings are stored in under root.
func RecordingDir(root string) string {
	return filepath.Join(root, types.RecordingDir)
}

// newOutputFile creates a new, empty recording file named after t in epoch
// milliseconds. If the name is taken, the timestamp is advanced one
// millisecond at a time, so a name is never reused.
func newOutputFile(dir string, t time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", util.WrapError("create recording directory", err)
	}

	ms := t.UnixMilli()
	for i := range int64(maxNameAttempts) {
		path := filepath.Join(dir, strconv.FormatInt(ms+i, 10)+"."+types.FileExt)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", util.WrapError("create recording file", err)
		}
		util.Close(f, "recording file")
		return path, nil
	}
	return "", fmt.Errorf("no free recording file name in %s", dir)
}
