// Package types provides shared type definitions used across the recorder.
package types

import "time"

// SessionState represents the current state of the recording session controller.
type SessionState string

const (
	// StateIdle indicates no capture resource is recording.
	StateIdle SessionState = "idle"
	// StateStarting indicates the capture resource is being configured and started.
	StateStarting SessionState = "starting"
	// StateRecording indicates the capture resource is actively recording.
	StateRecording SessionState = "recording"
	// StateStopping indicates the capture resource is being stopped.
	StateStopping SessionState = "stopping"
)

// Capture settings. These are fixed and not configurable.
const (
	SampleRate   = 44100
	BitRate      = 96000
	FileExt      = "m4a"
	RecordingDir = "myai" // Subdirectory of the storage root
)

// StopTimeout is how long to wait for a graceful capture stop before SIGKILL.
const StopTimeout = 3 * time.Second

// MinReportSeconds is the shortest recording, in whole seconds, that is
// reported to the user. Shorter recordings complete silently.
const MinReportSeconds = 1

// RecordingSession represents one press-to-release recording cycle.
type RecordingSession struct {
	ID         string    `json:"id"`
	OutputPath string    `json:"path"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at,omitzero"`
}

// DurationSeconds returns the elapsed whole seconds between start and stop.
// It returns 0 until the session has been stopped.
func (s *RecordingSession) DurationSeconds() int {
	if s.StoppedAt.IsZero() || s.StoppedAt.Before(s.StartedAt) {
		return 0
	}
	return int(s.StoppedAt.Sub(s.StartedAt) / time.Second)
}

// NoticeKind identifies the outcome carried by a Notice.
type NoticeKind string

const (
	// NoticeSucceeded reports a finished recording of at least MinReportSeconds.
	NoticeSucceeded NoticeKind = "succeeded"
	// NoticeFailed reports a failed begin or end.
	NoticeFailed NoticeKind = "failed"
)

// Notice is a message posted from the recording worker to the UI context.
type Notice struct {
	Kind    NoticeKind
	Session RecordingSession // Set for NoticeSucceeded
	Error   string           // Set for NoticeFailed
}

// AudioDevice represents an audio input device.
type AudioDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecordingLogEntry is a single line in the recording log file.
type RecordingLogEntry struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	SessionID   string `json:"session_id,omitempty"`
	Path        string `json:"path,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	Error       string `json:"error,omitempty"`
}

// VersionInfo contains version information for the frontend.
type VersionInfo struct {
	Current     string `json:"current"`
	Latest      string `json:"latest,omitempty"`
	UpdateAvail bool   `json:"update_available"`
	Commit      string `json:"commit,omitempty"`
	BuildTime   string `json:"build_time,omitempty"`
}

// WSTestResult is sent to the client after a notification test.
type WSTestResult struct {
	Type     string `json:"type"`
	TestType string `json:"test_type"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// WSRecordingLogResult is sent to the client with recording log contents.
type WSRecordingLogResult struct {
	Type    string              `json:"type"`
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Entries []RecordingLogEntry `json:"entries,omitempty"`
	Path    string              `json:"path,omitempty"`
}
