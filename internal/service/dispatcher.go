package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/mailer"
	"github.com/iliyamo/superta-auth/internal/metrics"
	"github.com/iliyamo/superta-auth/internal/model"
)

// Dispatcher renders and sends the transactional emails and records every
// accepted message in sending_emails.
type Dispatcher struct {
	sender     mailer.Sender
	logs       EmailLogStore
	metrics    *metrics.Registry
	log        *zap.Logger
	now        func() time.Time
	websiteURL string
	senderName string
}

func NewDispatcher(d Deps) *Dispatcher {
	d = withDefaults(d)
	return &Dispatcher{
		sender:     d.Sender,
		logs:       d.EmailLog,
		metrics:    d.Metrics,
		log:        d.Log,
		now:        d.Now,
		websiteURL: strings.TrimRight(d.WebsiteURL, "/"),
		senderName: d.SenderName,
	}
}

// VerificationLink is the address embedded in the verification email.
func (d *Dispatcher) VerificationLink(token string) string {
	return d.websiteURL + "/verify?token=" + url.QueryEscape(token)
}

// ResetLink is the address embedded in the reset email.
func (d *Dispatcher) ResetLink(token string) string {
	return d.websiteURL + "/reset-password?token=" + url.QueryEscape(token)
}

func (d *Dispatcher) SendVerification(ctx context.Context, to, token string) error {
	msg, err := mailer.VerificationMessage(to, d.VerificationLink(token))
	if err != nil {
		return err
	}
	return d.Send(ctx, msg)
}

func (d *Dispatcher) SendReset(ctx context.Context, to, token string, ttl time.Duration) error {
	msg, err := mailer.ResetMessage(to, d.ResetLink(token), humanDuration(ttl))
	if err != nil {
		return err
	}
	return d.Send(ctx, msg)
}

func (d *Dispatcher) SendConfirmation(ctx context.Context, to string) error {
	return d.Send(ctx, mailer.ConfirmationMessage(to, d.senderName))
}

// Send hands msg to the relay.  A relay failure is returned.  Once the
// relay accepted the message the log write is best effort: its failure is
// logged and swallowed because the user already has the email.
func (d *Dispatcher) Send(ctx context.Context, msg mailer.Message) error {
	id, err := d.sender.Send(ctx, msg)
	if err != nil {
		d.metrics.EmailsSentTotal.WithLabelValues(msg.Type, "failed").Inc()
		d.log.Error("email not sent", zap.String("type", msg.Type), zap.String("to", msg.To), zap.Error(err))
		return err
	}
	d.metrics.EmailsSentTotal.WithLabelValues(msg.Type, "sent").Inc()
	d.log.Info("email sent", zap.String("type", msg.Type), zap.String("to", msg.To), zap.String("message_id", id))

	rec := model.SentEmail{
		To:        msg.To,
		Subject:   msg.Subject,
		Content:   msg.Content(),
		Type:      msg.Type,
		MessageID: id,
		Timestamp: model.Timestamp(d.now()),
	}
	if err := d.logs.Insert(ctx, rec); err != nil {
		d.log.Warn("email log write failed", zap.String("type", msg.Type), zap.Error(err))
	}
	return nil
}

// humanDuration renders whole hours and minutes, e.g. "1 hour", "30 minutes".
func humanDuration(ttl time.Duration) string {
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		return plural(int(ttl/time.Hour), "hour")
	case ttl >= time.Minute:
		return plural(int(ttl/time.Minute), "minute")
	default:
		return ttl.String()
	}
}

func plural(n int, unit string) string {
	s := strconv.Itoa(n) + " " + unit
	if n != 1 {
		s += "s"
	}
	return s
}
