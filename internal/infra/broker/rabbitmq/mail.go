package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"getmyguide/internal/app/policies"
)

// DefaultMailQueue is consumed by the mail relay that talks to SMTP.
const DefaultMailQueue = "mail.outgoing"

var ErrMailerClosed = errors.New("rabbitmq: mail publisher closed")

// Config defines broker settings.
type Config struct {
	URL         string
	Queue       string
	PublishWait time.Duration
}

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// MailPublisher hands outgoing email to a durable RabbitMQ queue.
type MailPublisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     Channel
	queue  string
	wait   time.Duration
	logger *slog.Logger
	now    func() time.Time
	closed bool
}

type mailEnvelope struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTMLBody string    `json:"html_body"`
	QueuedAt time.Time `json:"queued_at"`
}

// Dial connects to the broker and declares the mail queue.
func Dial(cfg Config, logger *slog.Logger) (*MailPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq: broker url required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultMailQueue
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("mail queue ready", "queue", queue)
	}
	p := NewMailPublisher(ch, queue, cfg.PublishWait, logger)
	p.conn = conn
	return p, nil
}

// NewMailPublisher publishes through an already declared queue on ch.
func NewMailPublisher(ch Channel, queue string, wait time.Duration, logger *slog.Logger) *MailPublisher {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MailPublisher{ch: ch, queue: queue, wait: wait, logger: logger, now: time.Now}
}

func (p *MailPublisher) Send(ctx context.Context, msg policies.Message) error {
	body, err := json.Marshal(mailEnvelope{To: msg.To, Subject: msg.Subject, HTMLBody: msg.HTMLBody, QueuedAt: p.now().UTC()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.wait)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrMailerClosed
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.logger.Warn("mail publish failed", "to", msg.To, "subject", msg.Subject, "error", err)
		return err
	}
	return nil
}

// Close releases the channel and connection.
func (p *MailPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

var _ policies.Notifier = (*MailPublisher)(nil)
