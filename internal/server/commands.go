package server

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oszuidwest/zwfm-talkrec/internal/config"
	"github.com/oszuidwest/zwfm-talkrec/internal/notify"
	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/ui"
)

// maxLogEntries is the number of recording log entries returned to the client.
const maxLogEntries = 100

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// GestureTarget receives talk button gestures.
type GestureTarget interface {
	Gesture(g ui.Gesture) bool
}

// Reply sends a message to the client that issued a command.
type Reply func(v any)

var validate = validator.New()

// CommandHandler processes WebSocket commands.
type CommandHandler struct {
	cfg          *config.Config
	screen       GestureTarget
	testTriggers map[string]func() error
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(cfg *config.Config, screen GestureTarget, testTriggers map[string]func() error) *CommandHandler {
	return &CommandHandler{
		cfg:          cfg,
		screen:       screen,
		testTriggers: testTriggers,
	}
}

// Handle processes a WebSocket command and performs the requested action.
func (h *CommandHandler) Handle(cmd WSCommand, reply Reply, triggerStatusUpdate func()) {
	switch cmd.Type {
	case "press", "release", "cancel":
		// Gestures are reflected through screen updates, not status.
		if !h.screen.Gesture(ui.Gesture(cmd.Type)) {
			slog.Debug("gesture after screen closed", "gesture", cmd.Type)
		}
		return
	case "update_settings":
		h.handleUpdateSettings(cmd)
	case "test_webhook", "test_log", "test_email":
		h.handleTest(reply, cmd.Type)
	case "view_recording_log":
		h.handleViewRecordingLog(reply)
	default:
		slog.Warn("unknown WebSocket command type", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// updateStringSetting updates a string setting.
func updateStringSetting(value *string, name string, setter func(string) error) {
	if value == nil {
		return
	}
	slog.Info("update_settings: changing setting", "setting", name)
	if err := setter(*value); err != nil {
		slog.Error("update_settings: failed to save", "error", err)
	}
}

// settingsUpdate is the payload of an update_settings command. Absent fields
// are left unchanged.
type settingsUpdate struct {
	AudioInput      *string `json:"audio_input"`
	RetentionDays   *int    `json:"retention_days"`
	WebhookURL      *string `json:"webhook_url"`
	LogPath         *string `json:"log_path"`
	EmailSMTPHost   *string `json:"email_smtp_host"`
	EmailSMTPPort   *int    `json:"email_smtp_port"`
	EmailFromName   *string `json:"email_from_name"`
	EmailUsername   *string `json:"email_username"`
	EmailPassword   *string `json:"email_password"`
	EmailRecipients *string `json:"email_recipients"`
}

func (u *settingsUpdate) hasEmail() bool {
	return u.EmailSMTPHost != nil || u.EmailSMTPPort != nil ||
		u.EmailFromName != nil || u.EmailUsername != nil ||
		u.EmailPassword != nil || u.EmailRecipients != nil
}

func (h *CommandHandler) handleUpdateSettings(cmd WSCommand) {
	var settings settingsUpdate
	if err := json.Unmarshal(cmd.Data, &settings); err != nil {
		slog.Warn("update_settings: invalid JSON data", "error", err)
		return
	}

	// The next recording picks up the new device.
	updateStringSetting(settings.AudioInput, "audio input", h.cfg.SetAudioInput)

	if settings.RetentionDays != nil {
		if err := validate.Var(*settings.RetentionDays, "min=0,max=3650"); err != nil {
			slog.Warn("update_settings: validation failed", "setting", "retention days", "error", err)
		} else {
			slog.Info("update_settings: changing setting", "setting", "retention days", "value", *settings.RetentionDays)
			if err := h.cfg.SetRetentionDays(*settings.RetentionDays); err != nil {
				slog.Error("update_settings: failed to save", "error", err)
			}
		}
	}

	if settings.WebhookURL != nil {
		if err := validate.Var(strings.TrimSpace(*settings.WebhookURL), "omitempty,url"); err != nil {
			slog.Warn("update_settings: validation failed", "setting", "webhook URL", "error", err)
		} else {
			trimmed := strings.TrimSpace(*settings.WebhookURL)
			updateStringSetting(&trimmed, "webhook URL", h.cfg.SetWebhookURL)
		}
	}
	updateStringSetting(settings.LogPath, "log path", h.cfg.SetLogPath)

	if settings.hasEmail() {
		h.updateEmail(&settings)
	}
}

// updateEmail merges the changed email fields with the current configuration.
func (h *CommandHandler) updateEmail(settings *settingsUpdate) {
	cur := h.cfg.Snapshot()
	host, port := cur.EmailSMTPHost, cur.EmailSMTPPort
	fromName, username := cur.EmailFromName, cur.EmailUsername
	password, recipients := cur.EmailPassword, cur.EmailRecipients

	if settings.EmailSMTPHost != nil {
		host = strings.TrimSpace(*settings.EmailSMTPHost)
		if err := validate.Var(host, "omitempty,max=253,hostname_rfc1123|ip"); err != nil {
			slog.Warn("update_settings: validation failed", "setting", "email SMTP host", "error", err)
			return
		}
	}
	if settings.EmailSMTPPort != nil {
		if err := validate.Var(*settings.EmailSMTPPort, "min=1,max=65535"); err != nil {
			slog.Warn("update_settings: validation failed", "setting", "email SMTP port", "error", err)
			return
		}
		port = *settings.EmailSMTPPort
	}
	if settings.EmailFromName != nil {
		fromName = *settings.EmailFromName
	}
	if settings.EmailUsername != nil {
		username = *settings.EmailUsername
	}
	if settings.EmailPassword != nil {
		password = *settings.EmailPassword
	}
	if settings.EmailRecipients != nil {
		recipients = *settings.EmailRecipients
	}

	slog.Info("update_settings: updating email configuration")
	if err := h.cfg.SetEmailConfig(host, port, fromName, username, password, recipients); err != nil {
		slog.Error("update_settings: failed to save email config", "error", err)
	}
}

// handleTest executes a notification test and sends the result to the client.
// testCmd should be in format "test_<type>" (e.g., "test_email", "test_webhook").
func (h *CommandHandler) handleTest(reply Reply, testCmd string) {
	testType := strings.TrimPrefix(testCmd, "test_")
	trigger, ok := h.testTriggers[testType]
	if !ok {
		slog.Warn("unknown test type", "command", testCmd)
		return
	}

	go func() {
		result := types.WSTestResult{
			Type:     "test_result",
			TestType: testType,
			Success:  true,
		}

		if err := trigger(); err != nil {
			slog.Error("test failed", "command", testCmd, "error", err)
			result.Success = false
			result.Error = err.Error()
		} else {
			slog.Info("test succeeded", "command", testCmd)
		}

		reply(result)
	}()
}

// handleViewRecordingLog reads and returns the recording log file contents.
func (h *CommandHandler) handleViewRecordingLog(reply Reply) {
	go func() {
		result := types.WSRecordingLogResult{
			Type:    "recording_log_result",
			Success: true,
		}

		logPath := h.cfg.LogPath()
		if logPath == "" {
			result.Success = false
			result.Error = "Log file path not configured"
			reply(result)
			return
		}

		entries, err := notify.ReadRecordingLog(logPath, maxLogEntries)
		if err != nil {
			result.Success = false
			result.Error = err.Error()
		} else {
			result.Entries = entries
			result.Path = logPath
		}

		reply(result)
	}()
}
