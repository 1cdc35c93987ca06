package capture

import (
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
)

// platform describes how FFmpeg reaches the microphone on one operating system.
type platform struct {
	format        string // FFmpeg input format
	defaultDevice string // used when no device is configured; empty means auto-detect

	listCommand  []string
	sectionStart string // listing lines before this marker are ignored
	sectionEnd   string // listing lines after this marker are ignored
	parse        func(line string) (types.AudioDevice, bool)
	fallback     []types.AudioDevice
}

var (
	arecordCard = regexp.MustCompile(`^card\s+\d+:\s+(\S+)\s+\[([^\]]+)\],\s+device\s+(\d+):`)
	avfDevice   = regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`)
	dshowDevice = regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"(?:\s+\((audio|video)\))?`)
)

var platforms = map[string]platform{
	// plughw lets ALSA resample cards that cannot capture at 44.1 kHz natively.
	"linux": {
		format:        "alsa",
		defaultDevice: "default",
		listCommand:   []string{"arecord", "-l"},
		parse: func(line string) (types.AudioDevice, bool) {
			m := arecordCard.FindStringSubmatch(line)
			if m == nil {
				return types.AudioDevice{}, false
			}
			return types.AudioDevice{
				ID:   fmt.Sprintf("plughw:CARD=%s,DEV=%s", m[1], m[3]),
				Name: fmt.Sprintf("%s (device %s)", m[2], m[3]),
			}, true
		},
		fallback: []types.AudioDevice{{ID: "default", Name: "System default"}},
	},
	"darwin": {
		format:        "avfoundation",
		defaultDevice: ":0",
		listCommand:   []string{"ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""},
		sectionStart:  "AVFoundation audio devices:",
		sectionEnd:    "AVFoundation video devices:",
		parse: func(line string) (types.AudioDevice, bool) {
			m := avfDevice.FindStringSubmatch(line)
			if m == nil {
				return types.AudioDevice{}, false
			}
			return types.AudioDevice{ID: ":" + m[1], Name: strings.TrimSpace(m[2])}, true
		},
	},
	// Older FFmpeg builds print audio and video sections, newer ones tag
	// each device with its kind instead.
	"windows": {
		format:       "dshow",
		listCommand:  []string{"ffmpeg", "-hide_banner", "-f", "dshow", "-list_devices", "true", "-i", "dummy"},
		sectionStart: "DirectShow audio devices",
		sectionEnd:   "DirectShow video devices",
		parse: func(line string) (types.AudioDevice, bool) {
			if strings.Contains(line, "Alternative name") {
				return types.AudioDevice{}, false
			}
			m := dshowDevice.FindStringSubmatch(line)
			if m == nil || m[2] == "video" {
				return types.AudioDevice{}, false
			}
			name := strings.TrimSpace(m[1])
			return types.AudioDevice{ID: "audio=" + name, Name: name}, true
		},
	},
}

func currentPlatform() (platform, error) {
	p, ok := platforms[runtime.GOOS]
	if !ok {
		return platform{}, fmt.Errorf("audio capture is not supported on %s", runtime.GOOS)
	}
	return p, nil
}

// ListDevices returns the microphones FFmpeg can record from on this machine.
func ListDevices() []types.AudioDevice {
	p, err := currentPlatform()
	if err != nil {
		return nil
	}
	return p.devices()
}

func (p platform) devices() []types.AudioDevice {
	out, err := exec.Command(p.listCommand[0], p.listCommand[1:]...).CombinedOutput()
	if err != nil && len(out) == 0 {
		slog.Error("failed to list audio devices", "command", p.listCommand[0], "error", err)
		return p.fallback
	}
	return p.parseDevices(string(out))
}

// parseDevices extracts the audio inputs from a listing command's output.
// The listing tools exit non-zero even when they print devices.
func (p platform) parseDevices(output string) []types.AudioDevice {
	var found []types.AudioDevice
	// A listing without the start marker uses the newer untagged format.
	inSection := p.sectionStart == "" || !strings.Contains(output, p.sectionStart)
	for line := range strings.SplitSeq(output, "\n") {
		switch {
		case p.sectionStart != "" && strings.Contains(line, p.sectionStart):
			inSection = true
			continue
		case p.sectionEnd != "" && strings.Contains(line, p.sectionEnd):
			inSection = false
			continue
		case !inSection:
			continue
		}
		if dev, ok := p.parse(line); ok {
			found = append(found, dev)
		}
	}
	if len(found) == 0 {
		return p.fallback
	}
	return found
}

// inputArgs returns the FFmpeg input arguments for device, falling back to
// the platform default and then to the first detected microphone.
func (p platform) inputArgs(device string) ([]string, error) {
	if device == "" {
		device = p.defaultDevice
	}
	if device == "" {
		devs := p.devices()
		if len(devs) == 0 {
			return nil, ErrNoAudioDevice
		}
		device = devs[0].ID
	}
	return []string{"-f", p.format, "-i", device}, nil
}

// inputArgs returns the FFmpeg input arguments for device on this machine.
func inputArgs(device string) ([]string, error) {
	p, err := currentPlatform()
	if err != nil {
		return nil, err
	}
	return p.inputArgs(device)
}
