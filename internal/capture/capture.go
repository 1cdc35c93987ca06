// Package capture provides the microphone recording resource and its
// cross-platform FFmpeg implementation.
package capture

import (
	"errors"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
)

// Sentinel errors returned by Recorder implementations.
var (
	// ErrNoAudioDevice is returned when no audio input device is available.
	ErrNoAudioDevice = errors.New("no audio input device found")
	// ErrNotConfigured is returned when Start is called before Configure.
	ErrNotConfigured = errors.New("recorder not configured")
	// ErrNotStarted is returned when Stop is called on a recorder that is not recording.
	ErrNotStarted = errors.New("recorder not started")
	// ErrReleased is returned when a released recorder is used again.
	ErrReleased = errors.New("recorder released")
)

// Source identifies where audio is captured from.
type Source string

// Format identifies the output container.
type Format string

// Encoder identifies the audio codec.
type Encoder string

const (
	SourceMic   Source  = "mic"
	FormatMPEG4 Format  = "mpeg4"
	EncoderAAC  Encoder = "aac"
)

// Settings describes how a Recorder captures and encodes audio.
type Settings struct {
	Source     Source
	Format     Format
	SampleRate int
	Encoder    Encoder
	BitRate    int
	OutputPath string

	// Device is the platform input device identifier. Empty selects the
	// platform default.
	Device string
}

// DefaultSettings returns the fixed recording settings for the given device
// and output file.
func DefaultSettings(device, outputPath string) Settings {
	return Settings{
		Source:     SourceMic,
		Format:     FormatMPEG4,
		SampleRate: types.SampleRate,
		Encoder:    EncoderAAC,
		BitRate:    types.BitRate,
		OutputPath: outputPath,
		Device:     device,
	}
}

// Recorder is a stateful, hardware-backed recording resource.
// Implementations are not safe for concurrent use; callers must serialize
// every call.
type Recorder interface {
	// Configure prepares the recorder. It must be called once before Start.
	Configure(s Settings) error
	// Start begins capturing audio to the configured output.
	Start() error
	// Stop finalizes the output file.
	Stop() error
	// Release frees the underlying resource. It is safe to call more than once.
	Release()
}

// Factory creates a new, unconfigured Recorder.
type Factory func() Recorder
