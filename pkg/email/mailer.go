// Package email sends transactional mail through Postmark, or logs it in
// development.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
)

// EmailSender delivers one message.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Validate checks the recipient address and required fields.
func (p SendEmailParams) Validate() error {
	if strings.TrimSpace(p.SendTo) == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	}
	if _, err := mail.ParseAddress(p.SendTo); err != nil {
		return fmt.Errorf("%w: invalid recipient %q", ErrInvalidParams, p.SendTo)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// New picks the Postmark sender when an API key is configured and dev mode
// is off, and the log sender otherwise.
func New(cfg Config, log *slog.Logger) (EmailSender, error) {
	if cfg.DevMode || cfg.APIKey == "" {
		return NewLogSender(log), nil
	}
	return NewPostmarkClient(cfg)
}
