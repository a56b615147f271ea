package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/queue"
)

// Publisher forwards audit events to the message broker.  Failures are
// returned so callers can log them; they never fail the request.
type Publisher interface {
	PublishAudit(ctx context.Context, ev queue.AuditEvent) error
}

// NopPublisher drops every event.  Used when EVENTS_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) PublishAudit(context.Context, queue.AuditEvent) error { return nil }

// RabbitPublisher dials the broker for every event.  Audit traffic is a
// handful of messages per user session, so there is no connection pool.
// Publishing runs on the request path; DialTimeout keeps a dead broker from
// stalling it.
type RabbitPublisher struct {
	URL         string
	DialTimeout time.Duration
	Log         *zap.Logger
}

func NewRabbitPublisher(url string, log *zap.Logger) *RabbitPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RabbitPublisher{URL: url, DialTimeout: queue.DefaultDialTimeout, Log: log}
}

// PublishAudit publishes ev to the durable audit queue as a persistent
// JSON message.
func (p *RabbitPublisher) PublishAudit(ctx context.Context, ev queue.AuditEvent) error {
	conn, err := queue.Dial(ctx, p.URL, p.DialTimeout)
	if err != nil {
		p.Log.Warn("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.AuditQueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		p.Log.Warn("rabbitmq queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",                   // default exchange
		queue.AuditQueueName, // routing key = queue name
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		p.Log.Warn("rabbitmq publish failed", zap.Error(err))
		return err
	}
	return nil
}
