package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reachlabs/reach-be/internal/job"
)

// EmailConfig holds email provider credentials and endpoint settings.
type EmailConfig struct {
	APIKey   string
	From     string
	FromName string
	BaseURL  string
	Timeout  time.Duration
}

// EmailProvider sends mail through a SendGrid-compatible REST API.
type EmailProvider struct {
	config     *EmailConfig
	httpClient *http.Client
}

// NewEmailProvider creates an email provider from config.
func NewEmailProvider(config *EmailConfig) *EmailProvider {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmailProvider{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type emailRequest struct {
	Personalizations []struct {
		To []emailAddress `json:"to"`
	} `json:"personalizations"`
	From    emailAddress `json:"from"`
	Subject string       `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

// Send posts one mail and returns the provider message id (from the
// X-Message-Id response header). The first line of content is used as the
// subject when the rendered message spans multiple lines.
func (p *EmailProvider) Send(ctx context.Context, address, content string) (string, error) {
	subject := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		subject = strings.TrimSpace(content[:idx])
	}

	var reqBody emailRequest
	reqBody.Personalizations = append(reqBody.Personalizations, struct {
		To []emailAddress `json:"to"`
	}{To: []emailAddress{{Email: address}}})
	reqBody.From = emailAddress{Email: p.config.From, Name: p.config.FromName}
	reqBody.Subject = subject
	reqBody.Content = append(reqBody.Content, struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{Type: "text/plain", Value: content})

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email request: %w", err)
	}

	endpoint := strings.TrimRight(p.config.BaseURL, "/") + "/v3/mail/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", job.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Header.Get("X-Message-Id"), nil

	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: email provider returned %d", job.ErrProviderUnavailable, resp.StatusCode)

	default:
		return "", fmt.Errorf("%w: email provider returned %d: %s", job.ErrProviderRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
