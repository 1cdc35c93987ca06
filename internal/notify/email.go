// Package notify delivers recording outcomes by webhook, email and log file.
package notify

import (
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

// EmailConfig contains SMTP server settings for email notifications.
type EmailConfig struct {
	Host       string
	Port       int
	FromName   string
	Username   string
	Password   string
	Recipients string
}

// configured reports whether enough settings are present to send mail.
func (c *EmailConfig) configured() bool {
	return configured(c.Host, c.Username, c.Recipients)
}

// SendRecordingEmail sends an email notification for a finished recording.
func SendRecordingEmail(cfg *EmailConfig, session *types.RecordingSession) error {
	if !cfg.configured() {
		return nil // Silently skip if not configured
	}

	subject := "[REC] New talkback recording - ZuidWest FM"
	body := fmt.Sprintf(
		"A new talkback recording is available.\n\n"+
			"Duration: %d seconds\n"+
			"File:     %s\n"+
			"Time:     %s",
		session.DurationSeconds(), session.OutputPath, util.HumanTime(),
	)

	return sendEmail(cfg, subject, body)
}

// SendFailureEmail sends an email notification for a failed recording.
func SendFailureEmail(cfg *EmailConfig, reason string) error {
	if !cfg.configured() {
		return nil // Silently skip if not configured
	}

	subject := "[ALERT] Talkback recording failed - ZuidWest FM"
	body := fmt.Sprintf(
		"A talkback recording failed.\n\n"+
			"Error: %s\n"+
			"Time:  %s\n\n"+
			"Please check the microphone.",
		reason, util.HumanTime(),
	)

	return sendEmail(cfg, subject, body)
}

// SendTestEmail sends a test email to verify SMTP configuration.
func SendTestEmail(cfg *EmailConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if cfg.Username == "" {
		return fmt.Errorf("email username not configured")
	}
	if cfg.Recipients == "" {
		return fmt.Errorf("email recipients not configured")
	}

	subject := "[TEST] ZuidWest FM Talkback"
	body := fmt.Sprintf(
		"Test email from the talkback recorder.\n\n"+
			"Time: %s\n\n"+
			"SMTP configuration is working correctly.",
		util.HumanTime(),
	)

	return sendEmail(cfg, subject, body)
}

// parseRecipients splits a comma-separated recipient list.
func parseRecipients(list string) []string {
	var recipients []string
	for r := range strings.SplitSeq(list, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return recipients
}

// buildMessage assembles the email message.
func buildMessage(cfg *EmailConfig, subject, body string) (*mail.Msg, error) {
	recipients := parseRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no valid recipients")
	}

	m := mail.NewMsg()
	if cfg.FromName != "" {
		if err := m.FromFormat(cfg.FromName, cfg.Username); err != nil {
			return nil, util.WrapError("set from address", err)
		}
	} else {
		if err := m.From(cfg.Username); err != nil {
			return nil, util.WrapError("set from address", err)
		}
	}
	if err := m.To(recipients...); err != nil {
		return nil, util.WrapError("set recipient address", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}

// clientOptions returns SMTP client options with port-appropriate TLS settings.
func clientOptions(cfg *EmailConfig) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}

	switch cfg.Port {
	case 465: // SMTPS - implicit TLS
		opts = append(opts, mail.WithSSL())
	case 587: // Submission - STARTTLS required
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	default: // Port 25 or custom - opportunistic TLS
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	return opts
}

// sendEmail delivers an email message to configured recipients.
func sendEmail(cfg *EmailConfig, subject, body string) error {
	m, err := buildMessage(cfg, subject, body)
	if err != nil {
		return err
	}

	c, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		return util.WrapError("create SMTP client", err)
	}

	if err := c.DialAndSend(m); err != nil {
		return util.WrapError("send email", err)
	}

	return nil
}
