// Package mailer sends transactional email through an SMTP relay.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned by Send when no SMTP host was configured.
var ErrNotConfigured = errors.New("smtp relay not configured")

// Message is one rendered email.
type Message struct {
	FromName string
	To       string
	Subject  string
	Text     string
	HTML     string
	Type     string // verification, confirmation or reset_password
}

// Content is what gets logged for the message: the HTML body when present.
func (m Message) Content() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Text
}

// Sender delivers a Message and returns the relay's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Config holds the relay parameters.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTP is a Sender backed by go-mail.  A fresh connection is dialed per
// message; there is no pooling, queueing or retry.
type SMTP struct {
	cfg Config
}

func NewSMTP(cfg Config) *SMTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &SMTP{cfg: cfg}
}

// Send dials the relay and delivers msg.  Port 465 uses implicit TLS; every
// other port upgrades with STARTTLS when the server offers it.  Self-signed
// relay certificates are accepted.
func (s *SMTP) Send(ctx context.Context, msg Message) (string, error) {
	if s.cfg.Host == "" {
		return "", ErrNotConfigured
	}
	m, err := s.build(msg)
	if err != nil {
		return "", err
	}
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return messageID(m), nil
}

func (s *SMTP) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSConfig(&tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: true}),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password))
	}
	return opts
}

func (s *SMTP) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}
	if err := m.FromFormat(msg.FromName, from); err != nil {
		return nil, fmt.Errorf("smtp from %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp to %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func messageID(m *mail.Msg) string {
	ids := m.GetGenHeader(mail.HeaderMessageID)
	if len(ids) == 0 {
		return ""
	}
	return strings.Trim(ids[0], "<>")
}
