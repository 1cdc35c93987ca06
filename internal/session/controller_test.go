package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oszuidwest/zwfm-talkrec/internal/capture"
	"github.com/oszuidwest/zwfm-talkrec/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeFactory creates fakeRecorders and tracks how many are alive.
type fakeFactory struct {
	mu       sync.Mutex
	created  []*fakeRecorder
	alive    int
	maxAlive int

	configureErr error
	stopErr      error
	panicOnStart bool

	// If set, the first recorder blocks in Configure until gate is closed,
	// after closing entered.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeFactory) New() capture.Recorder {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := &fakeRecorder{factory: f}
	if len(f.created) == 0 {
		r.gate, r.entered = f.gate, f.entered
	}
	f.created = append(f.created, r)
	f.alive++
	f.maxAlive = max(f.maxAlive, f.alive)
	return r
}

func (f *fakeFactory) counts() (created, alive, maxAlive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created), f.alive, f.maxAlive
}

type fakeRecorder struct {
	factory  *fakeFactory
	settings capture.Settings
	started  bool
	released bool
	gate     chan struct{}
	entered  chan struct{}
}

func (r *fakeRecorder) Configure(s capture.Settings) error {
	if r.gate != nil {
		close(r.entered)
		<-r.gate
	}
	r.settings = s
	return r.factory.configureErr
}

func (r *fakeRecorder) Start() error {
	if r.factory.panicOnStart {
		panic("native start failure")
	}
	r.started = true
	return nil
}

func (r *fakeRecorder) Stop() error {
	if !r.started {
		return capture.ErrNotStarted
	}
	return r.factory.stopErr
}

func (r *fakeRecorder) Release() {
	if r.released {
		return
	}
	r.released = true
	r.factory.mu.Lock()
	r.factory.alive--
	r.factory.mu.Unlock()
}

// fakePoster collects notices.
type fakePoster struct {
	ch chan types.Notice
}

func newFakePoster() *fakePoster {
	return &fakePoster{ch: make(chan types.Notice, 16)}
}

func (p *fakePoster) Post(n types.Notice)         { p.ch <- n }
func (p *fakePoster) HandleNotice(n types.Notice) { p.Post(n) }

func (p *fakePoster) drain() []types.Notice {
	var out []types.Notice
	for {
		select {
		case n := <-p.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	ctrl     *Controller
	factory  *fakeFactory
	ui       *fakePoster
	listener *fakePoster
	clock    *fakeClock
	dir      string
}

func newHarness(t *testing.T, factory *fakeFactory) *harness {
	t.Helper()
	h := &harness{
		factory:  factory,
		ui:       newFakePoster(),
		listener: newFakePoster(),
		clock:    &fakeClock{t: time.UnixMilli(1700000000000)},
		dir:      t.TempDir(),
	}
	h.ctrl = New(Options{
		Dir:         h.dir,
		Device:      func() string { return "hw:0" },
		NewRecorder: factory.New,
		UI:          h.ui,
		Listener:    h.listener,
		Now:         h.clock.Now,
	})
	t.Cleanup(func() {
		h.ctrl.Shutdown()
		h.ctrl.Wait()
	})
	return h
}

// flush waits until every task submitted so far has run.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	h.onWorker(t, func() {})
}

// onWorker runs fn on the controller's worker and waits for it.
func (h *harness) onWorker(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.True(t, h.ctrl.queue.Submit(func() {
		fn()
		close(done)
	}))
	<-done
}

func (h *harness) hold(t *testing.T, d time.Duration) {
	t.Helper()
	require.True(t, h.ctrl.Begin())
	h.flush(t)
	h.clock.Advance(d)
	require.True(t, h.ctrl.End())
	h.flush(t)
}

func TestHoldReportsDuration(t *testing.T) {
	h := newHarness(t, &fakeFactory{})

	h.hold(t, 1500*time.Millisecond)

	notices := h.ui.drain()
	require.Len(t, notices, 1)
	n := notices[0]
	assert.Equal(t, types.NoticeSucceeded, n.Kind)
	assert.Equal(t, 1, n.Session.DurationSeconds())
	assert.NotEmpty(t, n.Session.ID)
	assert.FileExists(t, n.Session.OutputPath)
	assert.Equal(t, h.dir, filepath.Dir(n.Session.OutputPath))

	assert.Equal(t, notices, h.listener.drain())

	created, alive, _ := h.factory.counts()
	assert.Equal(t, 1, created)
	assert.Zero(t, alive)
	assert.Equal(t, types.StateIdle, h.ctrl.State())

	s := h.factory.created[0].settings
	assert.Equal(t, capture.DefaultSettings("hw:0", n.Session.OutputPath), s)
}

func TestDurationIsFloorOfElapsedSeconds(t *testing.T) {
	h := newHarness(t, &fakeFactory{})

	h.hold(t, 2999*time.Millisecond)

	notices := h.ui.drain()
	require.Len(t, notices, 1)
	assert.Equal(t, 2, notices[0].Session.DurationSeconds())
}

func TestShortRecordingIsNotReported(t *testing.T) {
	h := newHarness(t, &fakeFactory{})

	h.hold(t, 400*time.Millisecond)

	assert.Empty(t, h.ui.drain())
	assert.Empty(t, h.listener.drain())
	_, alive, _ := h.factory.counts()
	assert.Zero(t, alive)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the file stays on disk")
}

func TestConfigureFailureReportsOnce(t *testing.T) {
	h := newHarness(t, &fakeFactory{configureErr: errors.New("mic unavailable")})

	require.True(t, h.ctrl.Begin())
	h.flush(t)

	notices := h.ui.drain()
	require.Len(t, notices, 1)
	assert.Equal(t, types.NoticeFailed, notices[0].Kind)
	assert.Contains(t, notices[0].Error, "mic unavailable")

	_, alive, _ := h.factory.counts()
	assert.Zero(t, alive)

	// release without a live resource is a no-op.
	assert.NotPanics(t, func() { h.onWorker(t, h.ctrl.release) })

	// The matching release gesture does not report a second failure.
	require.True(t, h.ctrl.End())
	h.flush(t)
	assert.Empty(t, h.ui.drain())
	assert.Equal(t, types.StateIdle, h.ctrl.State())
}

func TestStopFailureReportsAndReleases(t *testing.T) {
	h := newHarness(t, &fakeFactory{stopErr: errors.New("stop called too early")})

	h.hold(t, 2*time.Second)

	notices := h.ui.drain()
	require.Len(t, notices, 1)
	assert.Equal(t, types.NoticeFailed, notices[0].Kind)
	_, alive, _ := h.factory.counts()
	assert.Zero(t, alive)
}

func TestPanicInRecorderBecomesFailure(t *testing.T) {
	h := newHarness(t, &fakeFactory{panicOnStart: true})

	require.True(t, h.ctrl.Begin())
	h.flush(t)

	notices := h.ui.drain()
	require.Len(t, notices, 1)
	assert.Equal(t, types.NoticeFailed, notices[0].Kind)
	assert.Contains(t, notices[0].Error, "panicked")
	_, alive, _ := h.factory.counts()
	assert.Zero(t, alive)
}

func TestAtMostOneResourceAlive(t *testing.T) {
	h := newHarness(t, &fakeFactory{})

	require.True(t, h.ctrl.Begin())
	require.True(t, h.ctrl.Begin())
	require.True(t, h.ctrl.Begin())
	require.True(t, h.ctrl.End())
	require.True(t, h.ctrl.Begin())
	require.True(t, h.ctrl.End())
	h.flush(t)

	created, alive, maxAlive := h.factory.counts()
	assert.Equal(t, 4, created)
	assert.Zero(t, alive)
	assert.Equal(t, 1, maxAlive)
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := newHarness(t, &fakeFactory{})

	require.True(t, h.ctrl.Begin())
	h.flush(t)
	assert.Equal(t, types.StateRecording, h.ctrl.State())

	h.onWorker(t, h.ctrl.release)
	h.onWorker(t, h.ctrl.release)

	_, alive, _ := h.factory.counts()
	assert.Zero(t, alive)
	assert.Equal(t, types.StateIdle, h.ctrl.State())
}

func TestShutdownDiscardsQueuedRequests(t *testing.T) {
	factory := &fakeFactory{
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	h := newHarness(t, factory)

	require.True(t, h.ctrl.Begin())
	<-factory.entered
	require.True(t, h.ctrl.End())
	require.True(t, h.ctrl.Begin())

	assert.Equal(t, 2, h.ctrl.Shutdown())
	assert.False(t, h.ctrl.Begin())

	close(factory.gate)
	h.ctrl.Wait()

	created, alive, _ := factory.counts()
	assert.Equal(t, 1, created, "queued begin never ran")
	assert.Zero(t, alive, "in-flight resource is released at teardown")
	assert.Empty(t, h.ui.drain())
}

func TestDefaultSessionID(t *testing.T) {
	assert.Len(t, newSessionID(), 21)
	assert.NotEqual(t, newSessionID(), newSessionID())
}
