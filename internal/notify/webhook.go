package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const webhookPostTimeout = 10 * time.Second

// WebhookSender posts notifications as JSON to a generic webhook
// endpoint (ntfy, Slack-compatible bridges, home-automation hooks).
type WebhookSender struct {
	url    string
	client *http.Client
}

// webhookPayload is the wire format expected by generic endpoints.
type webhookPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewWebhookSender creates a WebhookSender for the given endpoint URL.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url: url,
		client: &http.Client{
			Timeout: webhookPostTimeout,
		},
	}
}

func (w *WebhookSender) Name() string { return "webhook" }

// Send POSTs the message and treats any non-2xx response as a failure.
func (w *WebhookSender) Send(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(webhookPayload{Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %s", resp.Status)
	}
	return nil
}
