// Package email provides Postmark email provider.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/exstoreapp/exstore/internal/observability"
)

// PostmarkProvider implements the Provider interface for Postmark.
type PostmarkProvider struct {
	apiKey string
	from   string
	client *http.Client
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// NewPostmarkProvider creates a new Postmark provider.
func NewPostmarkProvider(apiKey, from string) *PostmarkProvider {
	return &PostmarkProvider{
		apiKey: apiKey,
		from:   from,
		client: observability.NewHTTPClient(10 * time.Second),
	}
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody,omitempty"`
	HtmlBody string `json:"HtmlBody,omitempty"`
	Tag      string `json:"Tag,omitempty"`
}

// SendEmail sends an email via the Postmark API.
func (p *PostmarkProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}

	payload := postmarkEmail{
		From:     p.from,
		To:       email.To,
		Subject:  email.Subject,
		TextBody: email.Text,
		HtmlBody: email.HTML,
		Tag:      "order-notification",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode postmark payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build postmark request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email via postmark: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read postmark response: %w", err)
	}

	var decoded postmarkResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return fmt.Errorf("failed to decode postmark response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || decoded.ErrorCode != 0 {
		return fmt.Errorf("postmark rejected email (code %d): %s", decoded.ErrorCode, decoded.Message)
	}

	return nil
}
