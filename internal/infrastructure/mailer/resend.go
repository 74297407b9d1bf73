package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TechDigest/internal/config"
	"TechDigest/internal/ports"
)

// ResendMailer sends transactional email through the Resend HTTP API.
type ResendMailer struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

var _ ports.Mailer = (*ResendMailer)(nil)

// NewResendMailer builds a client from configuration.
func NewResendMailer(cfg config.MailConfig) *ResendMailer {
	return &ResendMailer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts one message to a single recipient. Delivery is irreversible;
// callers own any partial-failure bookkeeping.
func (m *ResendMailer) Send(ctx context.Context, mail ports.Mail) error {
	if m.apiKey == "" || m.endpoint == "" || m.from == "" {
		return fmt.Errorf("mailer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"from":    m.from,
		"to":      []string{mail.To},
		"subject": mail.Subject,
		"html":    mail.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	return nil
}
