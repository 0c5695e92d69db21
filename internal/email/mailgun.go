// Package email provides Mailgun email provider.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/exstoreapp/exstore/internal/observability"
)

// MailgunProvider implements the Provider interface for Mailgun.
type MailgunProvider struct {
	apiKey  string
	from    string
	domain  string
	baseURL string
	client  *http.Client
}

type mailgunResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// NewMailgunProvider creates a new Mailgun provider.
func NewMailgunProvider(apiKey, domain, from string) *MailgunProvider {
	return &MailgunProvider{
		apiKey:  apiKey,
		domain:  domain,
		from:    from,
		baseURL: "https://api.mailgun.net/v3",
		client:  observability.NewHTTPClient(10 * time.Second),
	}
}

// SendEmail sends an email via the Mailgun API.
func (m *MailgunProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}

	data := url.Values{}
	data.Set("from", m.from)
	data.Set("to", email.To)
	data.Set("subject", email.Subject)
	if email.Text != "" {
		data.Set("text", email.Text)
	}
	if email.HTML != "" {
		data.Set("html", email.HTML)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", strings.TrimRight(m.baseURL, "/"), m.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build mailgun request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email via mailgun: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read mailgun response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var decoded mailgunResponse
		if err := json.Unmarshal(respBody, &decoded); err == nil && decoded.Message != "" {
			return fmt.Errorf("mailgun rejected email (status %d): %s", resp.StatusCode, decoded.Message)
		}
		return fmt.Errorf("mailgun rejected email (status %d)", resp.StatusCode)
	}

	return nil
}
