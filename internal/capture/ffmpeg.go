package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/oszuidwest/zwfm-talkrec/internal/ffmpeg"
	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

// FFmpegRecorder records the microphone to a file with an FFmpeg child process.
// It follows the Recorder contract: Configure, Start, Stop and finally Release.
type FFmpegRecorder struct {
	command     string
	stopTimeout time.Duration

	settings   Settings
	args       []string
	configured bool
	released   bool

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *stderrTail
	done   chan struct{} // Closed when the process has exited
	exit   error         // Result of cmd.Wait, valid after done is closed
}

// NewFFmpegRecorder creates an unconfigured FFmpeg recorder.
func NewFFmpegRecorder() *FFmpegRecorder {
	return &FFmpegRecorder{
		command:     "ffmpeg",
		stopTimeout: types.StopTimeout,
		stderr:      newStderrTail(ffmpeg.MaxStderrSize),
	}
}

// NewFFmpegFactory returns a Factory producing FFmpeg recorders.
func NewFFmpegFactory() Factory {
	return func() Recorder {
		return NewFFmpegRecorder()
	}
}

// validateSettings checks that s describes a recording this recorder can produce.
func validateSettings(s *Settings) error {
	switch {
	case s.Source != SourceMic:
		return fmt.Errorf("unsupported audio source %q", s.Source)
	case s.Format != FormatMPEG4:
		return fmt.Errorf("unsupported output format %q", s.Format)
	case s.Encoder != EncoderAAC:
		return fmt.Errorf("unsupported audio encoder %q", s.Encoder)
	case s.SampleRate <= 0:
		return fmt.Errorf("invalid sample rate %d", s.SampleRate)
	case s.BitRate <= 0:
		return fmt.Errorf("invalid bit rate %d", s.BitRate)
	case s.OutputPath == "":
		return errors.New("output path is required")
	}
	return nil
}

// Configure validates the settings and prepares the FFmpeg arguments.
func (r *FFmpegRecorder) Configure(s Settings) error {
	if r.released {
		return ErrReleased
	}
	if err := validateSettings(&s); err != nil {
		return err
	}
	if _, err := exec.LookPath(r.command); err != nil {
		return util.WrapError("find "+r.command, err)
	}

	input, err := inputArgs(s.Device)
	if err != nil {
		return err
	}

	r.settings = s
	r.args = ffmpeg.BuildRecordArgs(input, s.SampleRate, s.BitRate, s.OutputPath)
	r.configured = true
	return nil
}

// Start launches the FFmpeg process.
func (r *FFmpegRecorder) Start() error {
	switch {
	case r.released:
		return ErrReleased
	case !r.configured:
		return ErrNotConfigured
	case r.cmd != nil:
		return errors.New("recorder already started")
	}

	cmd := exec.Command(r.command, r.args...)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return util.WrapError("create stdin pipe", err)
	}

	r.stderr.reset()
	cmd.Stderr = r.stderr

	if err := cmd.Start(); err != nil {
		util.Close(stdinPipe, "capture stdin")
		return util.WrapError("start FFmpeg", err)
	}

	r.cmd = cmd
	r.stdin = stdinPipe
	r.done = make(chan struct{})
	go func(done chan struct{}) {
		r.exit = cmd.Wait()
		close(done)
	}(r.done)

	slog.Info("capture started", "file", r.settings.OutputPath, "device", r.settings.Device)
	return nil
}

// Stop asks FFmpeg to finish the file and waits for it to exit.
// A process that already exited on its own is reported as an error.
func (r *FFmpegRecorder) Stop() error {
	if r.released {
		return ErrReleased
	}
	if r.cmd == nil {
		return ErrNotStarted
	}
	defer r.clearProcess()

	select {
	case <-r.done:
		return r.exitError("capture process exited early")
	default:
	}

	// FFmpeg finalizes the container when it reads "q" on stdin.
	if _, err := io.WriteString(r.stdin, "q"); err != nil {
		interrupt(r.cmd.Process)
	}
	util.Close(r.stdin, "capture stdin")

	select {
	case <-r.done:
	case <-time.After(r.stopTimeout):
		kill(r.cmd.Process)
		<-r.done
		return fmt.Errorf("capture did not stop within %s", r.stopTimeout)
	}

	if r.exit != nil {
		return r.exitError("capture process failed")
	}
	slog.Info("capture stopped", "file", r.settings.OutputPath)
	return nil
}

// Release terminates any running process. It is safe to call more than once.
func (r *FFmpegRecorder) Release() {
	if r.released {
		return
	}
	r.released = true

	if r.cmd == nil {
		return
	}
	util.Close(r.stdin, "capture stdin")
	select {
	case <-r.done:
	default:
		kill(r.cmd.Process)
		<-r.done
	}
	r.clearProcess()
}

// clearProcess drops the references to the finished process.
func (r *FFmpegRecorder) clearProcess() {
	r.cmd = nil
	r.stdin = nil
}

// exitError builds an error from the process exit status and stderr output.
func (r *FFmpegRecorder) exitError(msg string) error {
	if detail := r.stderr.lastError(); detail != "" {
		return fmt.Errorf("%s: %s", msg, detail)
	}
	if r.exit != nil {
		return fmt.Errorf("%s: %w", msg, r.exit)
	}
	return errors.New(msg)
}

// interrupt asks FFmpeg to finalize the file. Windows cannot deliver
// os.Interrupt to a child, so the process is killed there instead.
func interrupt(p *os.Process) {
	if err := p.Signal(os.Interrupt); err != nil {
		kill(p)
	}
}

func kill(p *os.Process) {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Warn("failed to kill capture process", "pid", p.Pid, "error", err)
	}
}
