package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/mrz1836/postmark"
)

type postmarkClient struct {
	client  *postmark.Client
	from    string
	replyTo string
}

// PostmarkOption configures the Postmark sender.
type PostmarkOption func(*postmark.Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) PostmarkOption {
	return func(c *postmark.Client) {
		if u != "" {
			c.BaseURL = u
		}
	}
}

func NewPostmarkClient(cfg Config, opts ...PostmarkOption) (EmailSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: MAIL_API_KEY is required", ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("%w: MAIL_FROM must be a valid email address", ErrInvalidConfig)
	}

	client := postmark.NewClient(cfg.APIKey, cfg.AccountToken)
	for _, opt := range opts {
		opt(client)
	}
	return &postmarkClient{client: client, from: cfg.From, replyTo: cfg.ReplyTo}, nil
}

func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.from,
		ReplyTo:    c.replyTo,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: false,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
