// Package ui implements the hold-to-talk screen: the single goroutine that
// owns display state, turns gestures into controller requests and applies
// notices posted by the recording worker.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
)

// User-visible text.
const (
	LabelIdle      = "Hold to talk"
	LabelRecording = "Recording..."
	ToastFailed    = "Recording failed"
)

// ResultText returns the result label for a finished recording.
func ResultText(seconds int) string {
	return fmt.Sprintf("Recording succeeded, duration: %ds", seconds)
}

// Gesture is a touch event on the talk button.
type Gesture string

const (
	GesturePress   Gesture = "press"
	GestureRelease Gesture = "release"
	GestureCancel  Gesture = "cancel"
)

// View is the display state of the screen.
type View struct {
	ButtonLabel string `json:"button_label"`
	Recording   bool   `json:"recording"`
	Result      string `json:"result,omitempty"`
}

// Update is published to subscribers whenever the screen changes. Toast is
// transient and is not part of the view.
type Update struct {
	View  View   `json:"view"`
	Toast string `json:"toast,omitempty"`
}

// Controller is the recording controller driven by the screen.
type Controller interface {
	Begin() bool
	End() bool
	Shutdown() int
}

// subscriberBuffer is the number of updates buffered per subscriber.
const subscriberBuffer = 16

// Screen is the UI context. Only its loop goroutine mutates the view.
type Screen struct {
	gestures chan Gesture
	inbox    chan types.Notice
	quit     chan struct{}
	done     chan struct{}

	ctrl      Controller
	view      View // Owned by the loop goroutine
	startOnce sync.Once
	closeOnce sync.Once

	mu       sync.Mutex
	snapshot View
	subs     map[int]chan Update
	nextSub  int
}

// NewScreen creates a screen in its initial state. Call Start to run it.
func NewScreen() *Screen {
	initial := View{ButtonLabel: LabelIdle}
	return &Screen{
		gestures: make(chan Gesture),
		inbox:    make(chan types.Notice, subscriberBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		view:     initial,
		snapshot: initial,
		subs:     make(map[int]chan Update),
	}
}

// Start runs the screen loop against ctrl.
func (s *Screen) Start(ctrl Controller) {
	s.startOnce.Do(func() {
		s.ctrl = ctrl
		go s.run()
	})
}

// Press delivers a press-down gesture. It returns false once the screen is closed.
func (s *Screen) Press() bool { return s.Gesture(GesturePress) }

// Release delivers a press-up gesture.
func (s *Screen) Release() bool { return s.Gesture(GestureRelease) }

// Cancel delivers a cancel gesture, which is accepted and ignored.
func (s *Screen) Cancel() bool { return s.Gesture(GestureCancel) }

// Gesture delivers g to the screen loop.
func (s *Screen) Gesture(g Gesture) bool {
	select {
	case s.gestures <- g:
		return true
	case <-s.quit:
		return false
	}
}

// Post delivers a notice from the recording worker to the screen loop.
// Notices posted after Close are dropped.
func (s *Screen) Post(n types.Notice) {
	select {
	case s.inbox <- n:
	case <-s.quit:
		slog.Debug("screen closed, notice dropped", "kind", n.Kind)
	}
}

// View returns the current display state.
func (s *Screen) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Subscribe returns a channel of screen updates and a function that ends the
// subscription. Updates are dropped for subscribers that fall behind.
func (s *Screen) Subscribe() (<-chan Update, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Update, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// Close tears the screen down. The controller is shut down immediately,
// discarding requests that have not started. Close waits for the screen
// loop, not for the controller.
func (s *Screen) Close() {
	s.closeOnce.Do(func() {
		if s.ctrl != nil {
			s.ctrl.Shutdown()
		}
		close(s.quit)

		s.startOnce.Do(func() { close(s.done) })
		<-s.done

		s.mu.Lock()
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	})
}

// run is the screen loop.
func (s *Screen) run() {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		case g := <-s.gestures:
			s.handleGesture(g)
		case n := <-s.inbox:
			s.handleNotice(n)
		}
	}
}

// handleGesture updates the label for the requested state before the
// controller has acted on the request.
func (s *Screen) handleGesture(g Gesture) {
	switch g {
	case GesturePress:
		s.view.ButtonLabel = LabelRecording
		s.view.Recording = true
		s.publish("")
		s.ctrl.Begin()
	case GestureRelease:
		s.view.ButtonLabel = LabelIdle
		s.view.Recording = false
		s.publish("")
		s.ctrl.End()
	case GestureCancel:
	default:
		slog.Warn("unknown gesture", "gesture", g)
	}
}

func (s *Screen) handleNotice(n types.Notice) {
	switch n.Kind {
	case types.NoticeSucceeded:
		s.view.Result = ResultText(n.Session.DurationSeconds())
		s.publish("")
	case types.NoticeFailed:
		s.publish(ToastFailed)
	}
}

// publish stores the view and fans the update out to subscribers.
func (s *Screen) publish(toast string) {
	u := Update{View: s.view, Toast: toast}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = s.view
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
