// Package mail retrieves inbound bank-alert emails for reconciliation.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
)

// MailtrapClient reads alert emails from a Mailtrap sandbox inbox. The
// sandbox API lists message envelopes first; the plain-text body is a second
// request per message.
type MailtrapClient struct {
	client  *http.Client
	baseURL string
	token   string
	inboxID string
}

type mailtrapMessage struct {
	ID        int64  `json:"id"`
	Subject   string `json:"subject"`
	FromEmail string `json:"from_email"`
	SentAt    string `json:"sent_at"`
	IsRead    bool   `json:"is_read"`
}

// NewMailtrapClient creates a sandbox inbox reader.
func NewMailtrapClient(baseURL, token, inboxID string) (*MailtrapClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: mailtrap API URL is required", common.ErrMissingConfig)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: mailtrap API token is required", common.ErrMissingConfig)
	}
	if inboxID == "" {
		return nil, fmt.Errorf("%w: mailtrap inbox ID is required", common.ErrMissingConfig)
	}
	return &MailtrapClient{
		baseURL: baseURL,
		token:   token,
		inboxID: inboxID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// FetchAlerts lists the inbox and returns each message as a raw alert.
func (c *MailtrapClient) FetchAlerts(ctx context.Context) ([]model.RawAlert, error) {
	messagesURL := fmt.Sprintf("%s/inboxes/%s/messages", c.baseURL, c.inboxID)

	var messages []mailtrapMessage
	if err := c.getJSON(ctx, messagesURL, &messages); err != nil {
		return nil, err
	}

	alerts := make([]model.RawAlert, 0, len(messages))
	for _, msg := range messages {
		body, err := c.fetchBody(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, model.RawAlert{
			Subject: msg.Subject,
			Sender:  msg.FromEmail,
			Body:    body,
		})
	}
	return alerts, nil
}

func (c *MailtrapClient) fetchBody(ctx context.Context, messageID int64) (string, error) {
	bodyURL := fmt.Sprintf("%s/inboxes/%s/messages/%d/body.txt", c.baseURL, c.inboxID, messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bodyURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMailUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: mailtrap returned %d for message body",
			common.ErrMailUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	return string(body), nil
}

func (c *MailtrapClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrMailUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: mailtrap returned %d - %s",
			common.ErrMailUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode mailtrap response: %w", err)
	}
	return nil
}
