// Package mailer delivers templated email through an HTTP mail relay.
// Delivery is best-effort: the OTP flows enqueue jobs and never block on
// the relay.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gatehouse-hq/apiserver/config"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, name, subject, htmlBody string) error
}

// Client talks to the HTTP mail relay.
type Client struct {
	relayURL    string
	apiKey      string
	senderName  string
	senderEmail string
	httpClient  *http.Client
}

// NewClient constructs a relay client from config.
func NewClient(cfg config.MailerConfig) (*Client, error) {
	if cfg.RelayURL == "" || cfg.APIKey == "" {
		return nil, errors.New("mail relay url and api key are required")
	}
	return &Client{
		relayURL:    cfg.RelayURL,
		apiKey:      cfg.APIKey,
		senderName:  cfg.SenderName,
		senderEmail: cfg.SenderEmail,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type relayAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type relayRequest struct {
	Sender      relayAddress   `json:"sender"`
	To          []relayAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// Send posts one email to the relay.
func (c *Client) Send(ctx context.Context, to, name, subject, htmlBody string) error {
	payload, err := json.Marshal(relayRequest{
		Sender:      relayAddress{Name: c.senderName, Email: c.senderEmail},
		To:          []relayAddress{{Name: name, Email: to}},
		Subject:     subject,
		HTMLContent: htmlBody,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail relay returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
