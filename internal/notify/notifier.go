package notify

import (
	"sync"

	"github.com/oszuidwest/zwfm-talkrec/internal/config"
	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

// RecordingNotifier fans recording outcomes out to the configured webhook,
// email and log channels. Each channel is delivered on its own goroutine so
// the recording worker never waits on the network.
type RecordingNotifier struct {
	cfg *config.Config
	wg  sync.WaitGroup
}

// NewRecordingNotifier returns a RecordingNotifier configured with the given config.
func NewRecordingNotifier(cfg *config.Config) *RecordingNotifier {
	return &RecordingNotifier{cfg: cfg}
}

// HandleNotice delivers a recording outcome to every configured channel.
func (n *RecordingNotifier) HandleNotice(notice types.Notice) {
	cfg := n.cfg.Snapshot()

	switch notice.Kind {
	case types.NoticeSucceeded:
		session := notice.Session
		n.send(cfg.HasWebhook(), func() error { return SendRecordingWebhook(cfg.WebhookURL, &session) }, "Recording webhook")
		n.send(cfg.HasEmail(), func() error { return SendRecordingEmail(emailConfig(&cfg), &session) }, "Recording email")
		n.send(cfg.HasLogPath(), func() error { return LogRecordingFinished(cfg.LogPath, &session) }, "Recording log")
	case types.NoticeFailed:
		reason := notice.Error
		n.send(cfg.HasWebhook(), func() error { return SendFailureWebhook(cfg.WebhookURL, reason) }, "Failure webhook")
		n.send(cfg.HasEmail(), func() error { return SendFailureEmail(emailConfig(&cfg), reason) }, "Failure email")
		n.send(cfg.HasLogPath(), func() error { return LogRecordingFailed(cfg.LogPath, reason) }, "Failure log")
	}
}

// Wait blocks until all in-flight deliveries have finished.
func (n *RecordingNotifier) Wait() {
	n.wg.Wait()
}

// send spawns the sender if its channel is configured.
func (n *RecordingNotifier) send(configured bool, fn func() error, notifyType string) {
	if !configured {
		return
	}
	n.wg.Go(func() {
		util.LogNotifyResult(fn, notifyType, true)
	})
}

// emailConfig builds the SMTP settings from a config snapshot.
func emailConfig(cfg *config.Snapshot) *EmailConfig {
	return &EmailConfig{
		Host:       cfg.EmailSMTPHost,
		Port:       cfg.EmailSMTPPort,
		FromName:   cfg.EmailFromName,
		Username:   cfg.EmailUsername,
		Password:   cfg.EmailPassword,
		Recipients: cfg.EmailRecipients,
	}
}

// TestTriggers returns the notification tests exposed to the web interface,
// keyed by test type.
func (n *RecordingNotifier) TestTriggers() map[string]func() error {
	return map[string]func() error{
		"webhook": func() error { return SendTestWebhook(n.cfg.WebhookURL()) },
		"log":     func() error { return WriteTestLog(n.cfg.LogPath()) },
		"email": func() error {
			cfg := n.cfg.Snapshot()
			return SendTestEmail(emailConfig(&cfg))
		},
	}
}

// configured reports whether every value is set.
func configured(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return false
		}
	}
	return true
}
