/*
alerts.go - Best-effort webhook alert channel

PURPOSE:
  Implements fleet.AlertChannel over a plain HTTP webhook. Used by the
  sweep scheduler to push daily reports and sweep-failure alerts to an
  operations channel (Slack-compatible: POST {"text": "..."}).

DELIVERY SEMANTICS:
  Best effort only. A failed delivery is logged and reported as false;
  it never blocks or fails the operation that produced the message.
  There is no retry queue: the next scheduled report supersedes a lost
  one anyway.

SEE ALSO:
  - scheduler.go: The only producer of alert messages
  - fleet/store.go: AlertChannel interface and NopAlerts
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookAlerts posts messages to a webhook URL as {"text": "..."}.
type WebhookAlerts struct {
	URL    string
	Client *http.Client
	Log    zerolog.Logger
}

// NewWebhookAlerts builds a channel with the given delivery timeout.
func NewWebhookAlerts(url string, timeout time.Duration, log zerolog.Logger) *WebhookAlerts {
	return &WebhookAlerts{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		Log:    log,
	}
}

// SendMessage delivers text to the webhook. Returns false on any
// failure; the failure itself is only logged.
func (w *WebhookAlerts) SendMessage(ctx context.Context, text string) bool {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		w.Log.Error().Err(err).Msg("alerts: encode message")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		w.Log.Error().Err(err).Msg("alerts: build request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		w.Log.Warn().Err(err).Str("url", w.URL).Msg("alerts: delivery failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.Log.Warn().Int("status", resp.StatusCode).Str("url", w.URL).
			Msg("alerts: webhook rejected message")
		return false
	}
	return true
}
