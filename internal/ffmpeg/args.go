// Package ffmpeg provides shared FFmpeg utilities and constants.
package ffmpeg

import (
	"bytes"
	"strconv"
)

// MaxStderrSize limits the stderr buffer to prevent memory exhaustion.
const MaxStderrSize = 64 * 1024 // 64KB

// ExtractLastError extracts the last meaningful error line from FFmpeg stderr.
// Returns empty string if no meaningful error found.
func ExtractLastError(stderr string) string {
	if stderr == "" {
		return ""
	}
	lines := bytes.Split([]byte(stderr), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := string(bytes.TrimSpace(lines[i]))
		if line != "" {
			if len(line) > 200 {
				return line[:200] + "..."
			}
			return line
		}
	}
	return ""
}

// BaseArgs returns the common FFmpeg arguments placed before the input.
func BaseArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
	}
}

// EncodeArgs returns the output arguments for an AAC recording in an MPEG-4
// container written to output.
func EncodeArgs(sampleRate, bitRate int, output string) []string {
	return []string{
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-codec:a", "aac",
		"-b:a", strconv.Itoa(bitRate),
		"-f", "mp4",
		"-movflags", "+faststart",
		"-y", output,
	}
}

// BuildRecordArgs constructs complete FFmpeg arguments for recording from a
// capture input to a file.
func BuildRecordArgs(inputArgs []string, sampleRate, bitRate int, output string) []string {
	args := BaseArgs()
	args = append(args, inputArgs...)
	args = append(args, EncodeArgs(sampleRate, bitRate, output)...)
	return args
}
