package capture

import (
	"sync"

	"github.com/oszuidwest/zwfm-talkrec/internal/ffmpeg"
)

// stderrTail keeps the last limit bytes an FFmpeg process wrote to stderr.
// The process writes from its own goroutine while the worker reads on failure.
type stderrTail struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newStderrTail(limit int) *stderrTail {
	return &stderrTail{limit: limit}
}

// Write appends p and drops the oldest bytes beyond the limit.
func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p) >= t.limit {
		t.buf = append(t.buf[:0], p[len(p)-t.limit:]...)
		return len(p), nil
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// lastError returns the final non-empty stderr line, which is where FFmpeg
// reports why it gave up.
func (t *stderrTail) lastError() string {
	return ffmpeg.ExtractLastError(t.String())
}

func (t *stderrTail) reset() {
	t.mu.Lock()
	t.buf = t.buf[:0]
	t.mu.Unlock()
}
