package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLSMode  string // starttls, tls or plain
	From     string
	ReplyTo  string
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	config SMTPConfig
	auth   smtp.Auth
}

// NewSMTPMailer validates cfg and returns a mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: SMTP host is required", ErrInvalidConfig)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: SMTP port must be between 1 and 65535", ErrInvalidConfig)
	}
	switch cfg.TLSMode {
	case "starttls", "tls", "plain":
	default:
		return nil, fmt.Errorf("%w: SMTP TLS mode must be starttls, tls, or plain", ErrInvalidConfig)
	}
	if !isValidEmail(cfg.From) {
		return nil, fmt.Errorf("%w: sender must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyTo != "" && !isValidEmail(cfg.ReplyTo) {
		return nil, fmt.Errorf("%w: reply-to must be a valid email address", ErrInvalidConfig)
	}

	m := &SMTPMailer{config: cfg}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(domain.ErrMailDispatch, err)
	}
	if err := validate(msg); err != nil {
		return err
	}

	body, err := m.buildMessage(msg)
	if err != nil {
		return errors.Join(domain.ErrMailDispatch, err)
	}

	addr := net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))
	client, err := m.dial(ctx, addr)
	if err != nil {
		return errors.Join(domain.ErrMailDispatch, err)
	}
	defer func() { _ = client.Close() }()

	if err := m.transact(client, msg.To, body); err != nil {
		return errors.Join(domain.ErrMailDispatch, err)
	}
	return nil
}

func (m *SMTPMailer) dial(ctx context.Context, addr string) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	tlsConfig := &tls.Config{ServerName: m.config.Host}

	var (
		conn net.Conn
		err  error
	)
	if m.config.TLSMode == "tls" {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to smtp server: %w", err)
	}

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	if m.config.TLSMode == "starttls" {
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("start tls: %w", err)
		}
	}
	return client, nil
}

func (m *SMTPMailer) transact(client *smtp.Client, to string, body []byte) error {
	if m.auth != nil {
		if err := client.Auth(m.auth); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}
	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}
	// Some servers drop the connection right after DATA; the message is
	// already accepted by then.
	_ = client.Quit()
	return nil
}

// buildMessage renders a multipart/alternative message with text and HTML
// parts.
func (m *SMTPMailer) buildMessage(msg domain.Message) ([]byte, error) {
	var b strings.Builder
	mw := multipart.NewWriter(&b)

	headers := []string{
		"From: " + m.config.From,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"Date: " + time.Now().Format(time.RFC1123Z),
		"Message-ID: <" + uuid.NewString() + "@" + m.config.Host + ">",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="` + mw.Boundary() + `"`,
	}
	if m.config.ReplyTo != "" {
		headers = append(headers, "Reply-To: "+m.config.ReplyTo)
	}
	for _, h := range headers {
		if strings.ContainsAny(h, "\r\n") {
			return nil, fmt.Errorf("header contains line break")
		}
		b.WriteString(h + "\r\n")
	}
	b.WriteString("\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		if _, err := pw.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("write mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mime writer: %w", err)
	}
	return []byte(b.String()), nil
}
