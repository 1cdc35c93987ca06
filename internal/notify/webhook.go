package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

// webhookTimeout bounds a single webhook delivery.
const webhookTimeout = 10 * time.Second

// SendRecordingWebhook posts a finished recording to the webhook URL.
func SendRecordingWebhook(webhookURL string, session *types.RecordingSession) error {
	return sendWebhook(webhookURL, map[string]any{
		"event":        "recording_finished",
		"session_id":   session.ID,
		"path":         session.OutputPath,
		"duration_sec": session.DurationSeconds(),
		"started_at":   session.StartedAt.UTC().Format(time.RFC3339),
		"timestamp":    util.RFC3339Now(),
	})
}

// SendFailureWebhook posts a failed recording to the webhook URL.
func SendFailureWebhook(webhookURL, reason string) error {
	return sendWebhook(webhookURL, map[string]any{
		"event":     "recording_failed",
		"error":     reason,
		"timestamp": util.RFC3339Now(),
	})
}

// SendTestWebhook sends a test POST request to verify webhook configuration.
func SendTestWebhook(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(webhookURL, map[string]any{
		"event":     "test",
		"message":   "This is a test notification from ZuidWest FM Talkback",
		"timestamp": util.RFC3339Now(),
	})
}

// sendWebhook sends a POST request with JSON payload to the webhook URL.
func sendWebhook(webhookURL string, payload map[string]any) error {
	if !configured(webhookURL) {
		return nil // Silently skip if not configured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: webhookTimeout}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.Close(resp.Body, "webhook response body")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
