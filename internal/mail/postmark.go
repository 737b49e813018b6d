package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
	"github.com/msomdec/shopfront/internal/domain"
)

// PostmarkConfig holds Postmark API settings.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
	From         string
	ReplyTo      string
	// BaseURL overrides the API endpoint; empty uses Postmark's.
	BaseURL string
}

// PostmarkMailer sends mail through the Postmark API.
type PostmarkMailer struct {
	client *postmark.Client
	config PostmarkConfig
}

// NewPostmarkMailer validates cfg and returns a mailer.
func NewPostmarkMailer(cfg PostmarkConfig) (*PostmarkMailer, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: Postmark server token is required", ErrInvalidConfig)
	}
	if !isValidEmail(cfg.From) {
		return nil, fmt.Errorf("%w: sender must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyTo != "" && !isValidEmail(cfg.ReplyTo) {
		return nil, fmt.Errorf("%w: reply-to must be a valid email address", ErrInvalidConfig)
	}

	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	return &PostmarkMailer{client: client, config: cfg}, nil
}

func (m *PostmarkMailer) Send(ctx context.Context, msg domain.Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:     m.config.From,
		ReplyTo:  m.config.ReplyTo,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		HTMLBody: msg.HTML,
		TextBody: msg.Text,
	})
	if err != nil {
		return errors.Join(domain.ErrMailDispatch, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			domain.ErrMailDispatch,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
