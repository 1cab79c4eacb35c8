// Package email provides the email client for sending transactional emails.
package email

import (
	"errors"
	"fmt"

	"github.com/AtRiskMedia/tractcall-go/pkg/config"
	"github.com/resendlabs/resend-go"
)

// Sender delivers one HTML email, allowing for mock implementations in tests.
type Sender interface {
	Send(to []string, subject, html string) error
}

// ResendClient is the concrete implementation of Sender using the Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

// NewResendClient creates a new email client from configuration.
func NewResendClient() (*ResendClient, error) {
	if config.ResendAPIKey == "" {
		return nil, errors.New("RESEND_API_KEY environment variable is required")
	}
	return &ResendClient{
		client:    resend.NewClient(config.ResendAPIKey),
		fromEmail: config.EmailFrom,
		fromName:  config.EmailFromName,
	}, nil
}

func (c *ResendClient) Send(to []string, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      to,
		Subject: subject,
		Html:    html,
	}
	if _, err := c.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return nil
}

// LogSender records emails instead of sending them. Used when no Resend key
// is configured.
type LogSender struct {
	Logf func(format string, args ...any)
}

func (s LogSender) Send(to []string, subject, _ string) error {
	if s.Logf != nil {
		s.Logf("email not sent (no provider): to=%v subject=%q", to, subject)
	}
	return nil
}
