package capture

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings("hw:1", "/data/myai/1.m4a")

	assert.Equal(t, SourceMic, s.Source)
	assert.Equal(t, FormatMPEG4, s.Format)
	assert.Equal(t, EncoderAAC, s.Encoder)
	assert.Equal(t, 44100, s.SampleRate)
	assert.Equal(t, 96000, s.BitRate)
	assert.Equal(t, "/data/myai/1.m4a", s.OutputPath)
	assert.Equal(t, "hw:1", s.Device)
	require.NoError(t, validateSettings(&s))
}

func TestValidateSettings(t *testing.T) {
	base := DefaultSettings("", "/tmp/x.m4a")
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"source", func(s *Settings) { s.Source = "line" }},
		{"format", func(s *Settings) { s.Format = "ogg" }},
		{"encoder", func(s *Settings) { s.Encoder = "opus" }},
		{"sample rate", func(s *Settings) { s.SampleRate = 0 }},
		{"bit rate", func(s *Settings) { s.BitRate = -1 }},
		{"output path", func(s *Settings) { s.OutputPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			assert.Error(t, validateSettings(&s))
		})
	}
}

func TestConfigureRejectsInvalidSettings(t *testing.T) {
	r := NewFFmpegRecorder()
	err := r.Configure(Settings{Source: SourceMic})
	require.Error(t, err)
	assert.ErrorIs(t, r.Start(), ErrNotConfigured)
}

func TestRecorderStateErrors(t *testing.T) {
	r := NewFFmpegRecorder()

	assert.ErrorIs(t, r.Start(), ErrNotConfigured)
	assert.ErrorIs(t, r.Stop(), ErrNotStarted)

	r.Release()
	r.Release()

	assert.ErrorIs(t, r.Configure(DefaultSettings("", "/tmp/x.m4a")), ErrReleased)
	assert.ErrorIs(t, r.Start(), ErrReleased)
	assert.ErrorIs(t, r.Stop(), ErrReleased)
}

// shellRecorder returns a recorder that runs a shell script instead of FFmpeg.
func shellRecorder(t *testing.T, script string) *FFmpegRecorder {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	r := NewFFmpegRecorder()
	r.command = "sh"
	r.args = []string{"-c", script}
	r.configured = true
	return r
}

func TestRecorderStopGraceful(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := shellRecorder(t, "read line; exit 0")
	require.NoError(t, r.Start())
	require.Error(t, r.Start())

	require.NoError(t, r.Stop())
	assert.ErrorIs(t, r.Stop(), ErrNotStarted)
	r.Release()
}

func TestRecorderStopAfterEarlyExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := shellRecorder(t, "echo 'device busy' >&2; exit 1")
	require.NoError(t, r.Start())
	<-r.done

	err := r.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
	r.Release()
}

func TestRecorderReleaseKillsProcess(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := shellRecorder(t, "exec sleep 30")
	require.NoError(t, r.Start())

	r.Release()
	assert.Nil(t, r.cmd)
	assert.ErrorIs(t, r.Stop(), ErrReleased)
}

func TestParseDevicesPerPlatform(t *testing.T) {
	tests := []struct {
		goos   string
		output string
		want   []types.AudioDevice
	}{
		{
			goos: "linux",
			output: "**** List of CAPTURE Hardware Devices ****\n" +
				"card 0: PCH [HDA Intel PCH], device 0: ALC3246 Analog [ALC3246 Analog]\n" +
				"  Subdevices: 1/1\n" +
				"card 2: Mic [Studio USB Mic], device 0: USB Audio [USB Audio]\n",
			want: []types.AudioDevice{
				{ID: "plughw:CARD=PCH,DEV=0", Name: "HDA Intel PCH (device 0)"},
				{ID: "plughw:CARD=Mic,DEV=0", Name: "Studio USB Mic (device 0)"},
			},
		},
		{
			goos:   "linux",
			output: "arecord: device_list:277: no soundcards found...\n",
			want:   []types.AudioDevice{{ID: "default", Name: "System default"}},
		},
		{
			goos: "darwin",
			output: "[AVFoundation indev @ 0x7f9] AVFoundation video devices:\n" +
				"[AVFoundation indev @ 0x7f9] [0] FaceTime HD Camera\n" +
				"[AVFoundation indev @ 0x7f9] AVFoundation audio devices:\n" +
				"[AVFoundation indev @ 0x7f9] [0] MacBook Pro Microphone\n" +
				"[AVFoundation indev @ 0x7f9] [1] Studio USB Mic\n",
			want: []types.AudioDevice{
				{ID: ":0", Name: "MacBook Pro Microphone"},
				{ID: ":1", Name: "Studio USB Mic"},
			},
		},
		{
			goos: "windows",
			output: "[dshow @ 0000] DirectShow video devices\n" +
				"[dshow @ 0000]  \"Integrated Camera\"\n" +
				"[dshow @ 0000] DirectShow audio devices\n" +
				"[dshow @ 0000]  \"Microphone (Studio USB Mic)\"\n" +
				"[dshow @ 0000]     Alternative name \"@device_cm_{33D9A762}\"\n",
			want: []types.AudioDevice{{ID: "audio=Microphone (Studio USB Mic)", Name: "Microphone (Studio USB Mic)"}},
		},
		{
			goos: "windows",
			output: "[dshow @ 0000] \"Integrated Camera\" (video)\n" +
				"[dshow @ 0000] \"Microphone Array (Realtek)\" (audio)\n" +
				"[dshow @ 0000]   Alternative name \"@device_cm_{33D9A762}\"\n",
			want: []types.AudioDevice{{ID: "audio=Microphone Array (Realtek)", Name: "Microphone Array (Realtek)"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			p, ok := platforms[tt.goos]
			require.True(t, ok)
			assert.Equal(t, tt.want, p.parseDevices(tt.output))
		})
	}
}

func TestPlatformInputArgs(t *testing.T) {
	args, err := platforms["linux"].inputArgs("")
	require.NoError(t, err)
	assert.Equal(t, []string{"-f", "alsa", "-i", "default"}, args)

	args, err = platforms["darwin"].inputArgs(":1")
	require.NoError(t, err)
	assert.Equal(t, []string{"-f", "avfoundation", "-i", ":1"}, args)

	args, err = platforms["windows"].inputArgs("audio=Mic")
	require.NoError(t, err)
	assert.Equal(t, []string{"-f", "dshow", "-i", "audio=Mic"}, args)
}

func TestCurrentPlatformIsSupported(t *testing.T) {
	if _, ok := platforms[runtime.GOOS]; !ok {
		t.Skip("no capture support on " + runtime.GOOS)
	}
	p, err := currentPlatform()
	require.NoError(t, err)
	assert.NotEmpty(t, p.format)
}

func TestStderrTailKeepsLastBytes(t *testing.T) {
	tail := newStderrTail(8)

	_, err := tail.Write([]byte("abcd"))
	require.NoError(t, err)
	_, err = tail.Write([]byte("efgh"))
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", tail.String())

	n, err := tail.Write([]byte("ij"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "cdefghij", tail.String())

	_, err = tail.Write([]byte(strings.Repeat("x", 20) + "12345678"))
	require.NoError(t, err)
	assert.Equal(t, "12345678", tail.String())

	tail.reset()
	assert.Empty(t, tail.String())
}

func TestStderrTailLastError(t *testing.T) {
	tail := newStderrTail(64)
	_, err := tail.Write([]byte("Input #0, alsa\nhw:9: No such device\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "hw:9: No such device", tail.lastError())
}
