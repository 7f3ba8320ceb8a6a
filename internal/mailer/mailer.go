package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Client posts transactional emails to the notification endpoint. Send
// failures never fail the calling mutation; callers log and continue.
type Client struct {
	endpoint string
	from     string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a mailer client
func NewClient(endpoint, from string) *Client {
	return &Client{
		endpoint: endpoint,
		from:     from,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   util.GetLogger(),
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Send delivers one email. The kind label feeds the email metrics.
func (c *Client) Send(ctx context.Context, kind, to, subject, text string) error {
	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      to,
		Subject: subject,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		util.EmailSendFailuresTotal.Inc()
		return fmt.Errorf("email send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		util.EmailSendFailuresTotal.Inc()
		return fmt.Errorf("email endpoint returned %d", resp.StatusCode)
	}

	util.EmailsSentTotal.WithLabelValues(kind).Inc()
	c.logger.Info("Email sent", zap.String("kind", kind), zap.String("to", to))
	return nil
}
