// Package recording maintains the directory of finished recordings.
package recording

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
)

// CleanupInterval is how often the cleanup runs.
const CleanupInterval = 1 * time.Hour

// Cleanup periodically deletes recordings older than the retention period.
type Cleanup struct {
	dir           string
	retentionDays func() int
	interval      time.Duration
	now           func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewCleanup creates a Cleanup for the recordings in dir. retentionDays is
// read on every run so setting changes apply without a restart; zero or less
// disables deletion.
func NewCleanup(dir string, retentionDays func() int) *Cleanup {
	return &Cleanup{
		dir:           dir,
		retentionDays: retentionDays,
		interval:      CleanupInterval,
		now:           time.Now,
	}
}

// Start begins the cleanup goroutine.
func (c *Cleanup) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	slog.Info("recording cleanup started", "dir", c.dir, "interval", c.interval)
}

// Stop stops the cleanup goroutine.
func (c *Cleanup) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	c.mu.Unlock()

	c.wg.Wait()
	slog.Info("recording cleanup stopped", "dir", c.dir)
}

// run is the main cleanup loop.
func (c *Cleanup) run() {
	defer c.wg.Done()

	// Run immediately on start
	c.RunOnce()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.RunOnce()
		}
	}
}

// RunOnce removes expired recordings and returns how many were deleted.
// Only regular files with the recording extension are considered.
func (c *Cleanup) RunOnce() int {
	retentionDays := c.retentionDays()
	if c.dir == "" || retentionDays <= 0 {
		return 0
	}

	cutoff := c.now().AddDate(0, 0, -retentionDays)
	slog.Debug("running recording cleanup", "dir", c.dir, "retention_days", retentionDays, "cutoff", cutoff.Format("2006-01-02"))

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		slog.Error("failed to read recording directory", "dir", c.dir, "error", err)
		return 0
	}

	var deleted int
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), "."+types.FileExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		filePath := filepath.Join(c.dir, entry.Name())
		if err := os.Remove(filePath); err != nil {
			slog.Error("failed to remove old recording file", "path", filePath, "error", err)
			continue
		}
		deleted++
		slog.Debug("removed old recording file", "path", filePath)
	}

	if deleted > 0 {
		slog.Info("recording cleanup completed", "dir", c.dir, "deleted_files", deleted)
	}
	return deleted
}
