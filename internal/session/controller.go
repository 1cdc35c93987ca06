// Package session implements the recording session controller: it serializes
// begin and end requests against a single capture resource on one worker
// goroutine and posts user-visible outcomes back to the UI context.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/oszuidwest/zwfm-talkrec/internal/capture"
	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
	"github.com/oszuidwest/zwfm-talkrec/internal/worker"
)

// Poster delivers notices to the UI context. Post must not block for long;
// it is called from the worker goroutine.
type Poster interface {
	Post(n types.Notice)
}

// Listener observes recording outcomes outside the UI, such as notification
// delivery. It receives exactly the notices the UI receives.
type Listener interface {
	HandleNotice(n types.Notice)
}

// Options configures a Controller.
type Options struct {
	// Dir is the directory recordings are written to. It is created on demand.
	Dir string

	// Device returns the capture device to use for the next recording.
	Device func() string

	// NewRecorder creates the capture resource for each session.
	NewRecorder capture.Factory

	// UI receives success and failure notices.
	UI Poster

	// Listener, if set, receives the same notices as UI.
	Listener Listener

	// Now and NewID override the clock and session ID generator.
	Now   func() time.Time
	NewID func() string
}

// Controller owns the capture resource for one screen.
// Resource access is serialized by the controller's worker queue.
type Controller struct {
	dir         string
	device      func() string
	newRecorder capture.Factory
	ui          Poster
	listener    Listener
	now         func() time.Time
	newID       func() string

	queue *worker.Queue

	// Worker-owned; never touched from other goroutines.
	rec     capture.Recorder
	current *types.RecordingSession

	mu    sync.RWMutex
	state types.SessionState
}

// New creates a Controller and starts its worker.
func New(opts Options) *Controller {
	c := &Controller{
		dir:         opts.Dir,
		device:      opts.Device,
		newRecorder: opts.NewRecorder,
		ui:          opts.UI,
		listener:    opts.Listener,
		now:         opts.Now,
		newID:       opts.NewID,
		state:       types.StateIdle,
	}
	if c.device == nil {
		c.device = func() string { return "" }
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = newSessionID
	}
	// A resource still live at teardown is freed once the in-flight task
	// has finished.
	c.queue = worker.New(worker.WithExitHook(c.release))
	return c
}

// newSessionID returns a random session identifier.
func newSessionID() string {
	id, err := gonanoid.New()
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return id
}

// State returns the current controller state.
func (c *Controller) State() types.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(state types.SessionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Begin enqueues the start of a new recording. Any stale resource is released
// first. It returns false if the controller has been shut down.
func (c *Controller) Begin() bool {
	return c.queue.Submit(func() {
		c.release()
		if err := c.guard("start", c.doStart); err != nil {
			c.release()
			c.reportFailure(err)
		}
	})
}

// End enqueues the stop of the current recording. The resource is always
// released afterward. It returns false if the controller has been shut down.
func (c *Controller) End() bool {
	return c.queue.Submit(func() {
		if err := c.guard("stop", c.doStop); err != nil {
			c.reportFailure(err)
		}
		c.release()
	})
}

// Shutdown stops the worker immediately. Queued begin and end requests that
// have not started are discarded; a request already running completes. It
// returns the number of discarded requests.
func (c *Controller) Shutdown() int {
	return c.queue.ShutdownNow()
}

// Wait blocks until the in-flight request and teardown release have
// finished after Shutdown.
func (c *Controller) Wait() {
	c.queue.Wait()
}

// errNoRecording is returned by doStop when no resource is live.
var errNoRecording = errors.New("no active recording")

// doStart allocates the output file, configures the resource and starts it.
func (c *Controller) doStart() error {
	c.setState(types.StateStarting)

	path, err := newOutputFile(c.dir, c.now())
	if err != nil {
		return err
	}
	c.current = &types.RecordingSession{
		ID:         c.newID(),
		OutputPath: path,
	}

	c.rec = c.newRecorder()
	if err := c.rec.Configure(capture.DefaultSettings(c.device(), path)); err != nil {
		return util.WrapError("configure recorder", err)
	}
	if err := c.rec.Start(); err != nil {
		return util.WrapError("start recorder", err)
	}

	c.current.StartedAt = c.now()
	c.setState(types.StateRecording)
	slog.Info("recording started", "session_id", c.current.ID, "file", path)
	return nil
}

// doStop stops the resource and reports recordings of at least one second.
func (c *Controller) doStop() error {
	if c.rec == nil {
		return errNoRecording
	}
	c.setState(types.StateStopping)

	if err := c.rec.Stop(); err != nil {
		return util.WrapError("stop recorder", err)
	}

	session := *c.current
	session.StoppedAt = c.now()
	c.current = nil

	seconds := session.DurationSeconds()
	if seconds < types.MinReportSeconds {
		slog.Debug("recording too short, not reported", "session_id", session.ID, "elapsed", session.StoppedAt.Sub(session.StartedAt))
		return nil
	}

	slog.Info("recording finished", "session_id", session.ID, "file", session.OutputPath, "duration_sec", seconds)
	c.post(types.Notice{Kind: types.NoticeSucceeded, Session: session})
	return nil
}

// release frees the resource if one is held. It is idempotent.
func (c *Controller) release() {
	if c.rec == nil {
		c.setState(types.StateIdle)
		return
	}
	rec := c.rec
	c.rec = nil
	if err := c.guard("release", func() error { rec.Release(); return nil }); err != nil {
		slog.Warn("recorder release failed", "error", err)
	}
	c.setState(types.StateIdle)
}

// reportFailure clears the partial session and notifies the user.
// An end request without a live resource follows an already reported
// failure, so it is only logged.
func (c *Controller) reportFailure(err error) {
	c.current = nil
	if errors.Is(err, errNoRecording) {
		slog.Debug("stop requested without active recording")
		return
	}
	slog.Error("recording failed", "error", err)
	c.post(types.Notice{Kind: types.NoticeFailed, Error: err.Error()})
}

// post sends a notice to the UI and the listener.
func (c *Controller) post(n types.Notice) {
	if c.ui != nil {
		c.ui.Post(n)
	}
	if c.listener != nil {
		c.listener.HandleNotice(n)
	}
}

// guard runs fn and converts a panic raised by the resource into an error.
func (c *Controller) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recorder %s panicked: %v", op, r)
		}
	}()
	return fn()
}
