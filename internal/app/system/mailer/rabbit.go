package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Job is the JSON body published for the mail worker.
type Job struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	TextBody  string    `json:"text_body"`
	HTMLBody  string    `json:"html_body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RabbitSender publishes each Email as a persistent message on a durable
// queue. A separate worker performs SMTP delivery.
type RabbitSender struct {
	conn  *amqp.Connection
	mu    sync.Mutex // amqp channels are not safe for concurrent publish
	ch    *amqp.Channel
	queue string
	log   *zap.Logger
}

// DialRabbit connects to url and declares queue.
func DialRabbit(url, queue string, log *zap.Logger) (*RabbitSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}
	log.Info("mail queue ready", zap.String("queue", queue))
	return &RabbitSender{conn: conn, ch: ch, queue: queue, log: log}, nil
}

// Send publishes e as a Job.
func (s *RabbitSender) Send(ctx context.Context, e Email) error {
	job := NewJob(e, time.Now().UTC())
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode mail job: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.PublishWithContext(ctx,
		"",      // default exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Timestamp:    job.CreatedAt,
			Body:         body,
		},
	)
}

// Check reports whether the broker connection and channel are still open.
func (s *RabbitSender) Check(context.Context) error {
	if s.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	if s.ch.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// Close shuts the channel and connection.
func (s *RabbitSender) Close() error {
	if err := s.ch.Close(); err != nil {
		return err
	}
	return s.conn.Close()
}

// NewJob wraps e with a fresh message ID.
func NewJob(e Email, at time.Time) Job {
	return Job{
		ID:        uuid.NewString(),
		To:        e.To,
		Subject:   e.Subject,
		TextBody:  e.TextBody,
		HTMLBody:  e.HTMLBody,
		CreatedAt: at,
	}
}
