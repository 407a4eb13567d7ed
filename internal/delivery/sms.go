package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reachlabs/reach-be/internal/job"
)

// SMSConfig holds SMS provider credentials and endpoint settings.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
}

// SMSProvider sends text messages through a Twilio-compatible REST API.
type SMSProvider struct {
	config     *SMSConfig
	httpClient *http.Client
}

// NewSMSProvider creates an SMS provider from config.
func NewSMSProvider(config *SMSConfig) *SMSProvider {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSProvider{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts one message and returns the provider message sid. Network
// failures and 5xx responses are transient; 4xx responses are permanent
// rejections.
func (p *SMSProvider) Send(ctx context.Context, address, content string) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json",
		strings.TrimRight(p.config.BaseURL, "/"), p.config.AccountSID)

	form := url.Values{}
	form.Set("To", address)
	form.Set("From", p.config.From)
	form.Set("Body", content)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build sms request: %w", err)
	}
	req.SetBasicAuth(p.config.AccountSID, p.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", job.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out struct {
			SID string `json:"sid"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("failed to parse sms provider response: %w", err)
		}
		return out.SID, nil

	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: sms provider returned %d", job.ErrProviderUnavailable, resp.StatusCode)

	default:
		return "", fmt.Errorf("%w: sms provider returned %d: %s", job.ErrProviderRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
