// Package mail delivers the storefront's transactional email through SMTP,
// Postmark, or the application log.
package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"

	"github.com/msomdec/shopfront/internal/domain"
)

// ErrInvalidConfig is returned by constructors given incomplete settings.
var ErrInvalidConfig = errors.New("invalid mail configuration")

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func validate(msg domain.Message) error {
	if msg.To == "" {
		return fmt.Errorf("%w: recipient is required", domain.ErrMailDispatch)
	}
	if msg.Subject == "" {
		return fmt.Errorf("%w: subject is required", domain.ErrMailDispatch)
	}
	if msg.HTML == "" && msg.Text == "" {
		return fmt.Errorf("%w: body is required", domain.ErrMailDispatch)
	}
	return nil
}

// Welcome is sent after a successful signup.
func Welcome(to string) domain.Message {
	escaped := html.EscapeString(to)
	return domain.Message{
		To:      to,
		Subject: "Welcome to our shop",
		HTML:    "<p>Hi " + escaped + ",</p><p>Thanks for signing up!</p>",
		Text:    "Hi " + to + ",\n\nThanks for signing up!",
		Tag:     "welcome",
	}
}

// PasswordReset carries the single-use reset link.
func PasswordReset(to, link string) domain.Message {
	escaped := html.EscapeString(link)
	return domain.Message{
		To:      to,
		Subject: "Password reset",
		HTML: "<p>You requested a password reset.</p>" +
			`<p>Click this <a href="` + escaped + `">link</a> to set a new password.</p>` +
			"<p><small>This link is valid for 1 hour.</small></p>",
		Text: "You requested a password reset.\nOpen this link to set a new password:\n" + link +
			"\n\nThis link is valid for 1 hour.",
		Tag: "password-reset",
	}
}

// LogMailer writes messages to the logger instead of sending them.
// Useful in development; the body is logged, so never use it in production.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer returns a LogMailer writing to logger.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg domain.Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "mail not sent (log driver)",
		"to", msg.To,
		"subject", msg.Subject,
		"tag", msg.Tag,
		"text", msg.Text,
	)
	return nil
}
