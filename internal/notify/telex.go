// Package notify delivers reconciliation outcomes to a Telex-style channel
// webhook. Delivery is best effort; callers log failures and move on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sentinelpay/alertmatch/internal/common"
)

// TelexNotifier posts channel messages to a webhook. With no webhook URL
// configured it degrades to a log-only mock send, so demo environments work
// without a live channel.
type TelexNotifier struct {
	client     *http.Client
	webhookURL string
	token      string
	channelID  string
}

type telexMessage struct {
	Metadata  map[string]any `json:"metadata"`
	ChannelID string         `json:"channel_id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
}

// NewTelexNotifier creates a webhook notifier. An empty webhookURL enables
// mock mode.
func NewTelexNotifier(webhookURL, token, channelID string) *TelexNotifier {
	if channelID == "" {
		channelID = "demo-channel"
	}
	return &TelexNotifier{
		webhookURL: webhookURL,
		token:      token,
		channelID:  channelID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify sends one channel message.
func (n *TelexNotifier) Notify(ctx context.Context, title, body string, metadata map[string]any) error {
	if n.webhookURL == "" {
		slog.Info("telex mock send",
			"channel_id", n.channelID,
			"title", title,
			"body", body)
		return nil
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(telexMessage{
		ChannelID: n.channelID,
		Title:     title,
		Body:      body,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %v", common.ErrNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrNotificationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: webhook returned %d - %s",
			common.ErrNotificationFailed, resp.StatusCode, string(respBody))
	}

	slog.Debug("telex message delivered", "channel_id", n.channelID, "title", title)
	return nil
}
