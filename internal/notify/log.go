package notify

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

// Recording log events.
const (
	EventRecordingFinished = "recording_finished"
	EventRecordingFailed   = "recording_failed"
	EventTest              = "test"
)

// LogRecordingFinished appends a finished recording to the recording log.
func LogRecordingFinished(logPath string, session *types.RecordingSession) error {
	return appendLogEntry(logPath, types.RecordingLogEntry{
		Timestamp:   util.RFC3339Now(),
		Event:       EventRecordingFinished,
		SessionID:   session.ID,
		Path:        session.OutputPath,
		DurationSec: session.DurationSeconds(),
	})
}

// LogRecordingFailed appends a failed recording to the recording log.
func LogRecordingFailed(logPath, reason string) error {
	return appendLogEntry(logPath, types.RecordingLogEntry{
		Timestamp: util.RFC3339Now(),
		Event:     EventRecordingFailed,
		Error:     reason,
	})
}

// WriteTestLog writes a test entry to verify log file configuration.
func WriteTestLog(logPath string) error {
	if logPath == "" {
		return fmt.Errorf("log file path not configured")
	}

	return appendLogEntry(logPath, types.RecordingLogEntry{
		Timestamp: util.RFC3339Now(),
		Event:     EventTest,
	})
}

// appendLogEntry appends a JSON log entry to the file.
func appendLogEntry(logPath string, entry types.RecordingLogEntry) error {
	if !configured(logPath) {
		return nil
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return util.WrapError("marshal log entry", err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return util.WrapError("open log file", err)
	}
	defer util.Close(f, "log file")

	if _, err := f.Write(append(jsonData, '\n')); err != nil {
		return util.WrapError("write log entry", err)
	}

	return nil
}

// ReadRecordingLog returns up to maxEntries of the most recent log entries,
// newest first. A missing file yields no entries. Malformed lines are skipped.
func ReadRecordingLog(logPath string, maxEntries int) ([]types.RecordingLogEntry, error) {
	f, err := os.Open(logPath)
	if os.IsNotExist(err) {
		return []types.RecordingLogEntry{}, nil
	}
	if err != nil {
		return nil, util.WrapError("open log file", err)
	}
	defer util.Close(f, "log file")

	entries := []types.RecordingLogEntry{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry types.RecordingLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
		if len(entries) > maxEntries {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, util.WrapError("read log file", err)
	}

	slices.Reverse(entries)
	return entries, nil
}
