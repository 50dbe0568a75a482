// Package mail delivers outbound email over SMTP, through the job queue,
// or into the log.
package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"emis/internal/metrics"
	"emis/internal/queue"
)

// JobKind tags queue jobs carrying a Message.
const JobKind = "mail.send"

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("mail: missing recipient")

// Message is a plain-text email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// QueueSender defers delivery by publishing a job to a queue.
type QueueSender struct {
	q queue.Queue
}

// NewQueueSender wraps q.
func NewQueueSender(q queue.Queue) *QueueSender {
	return &QueueSender{q: q}
}

// Send enqueues msg for a Deliver loop to pick up.
func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mail: encode message: %w", err)
	}
	if err := s.q.Publish(ctx, queue.Job{Kind: JobKind, Payload: payload}); err != nil {
		return fmt.Errorf("mail: enqueue: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	s.logger.InfoContext(ctx, "mail not sent (log transport)",
		"from", msg.From, "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}

// Deliver consumes mail jobs from q and hands each to sender until ctx is
// cancelled. Failed deliveries are logged and counted, not retried.
func Deliver(ctx context.Context, q queue.Queue, sender Sender, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	jobs, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("mail: consume: %w", err)
	}
	for job := range jobs {
		if job.Kind != JobKind {
			metrics.MailJobs.WithLabelValues("skipped").Inc()
			logger.WarnContext(ctx, "unknown job kind", "kind", job.Kind)
			continue
		}
		var msg Message
		if err := json.Unmarshal(job.Payload, &msg); err != nil {
			metrics.MailJobs.WithLabelValues("invalid").Inc()
			logger.ErrorContext(ctx, "bad mail job", "error", err)
			continue
		}
		if err := sender.Send(ctx, msg); err != nil {
			metrics.MailJobs.WithLabelValues("failed").Inc()
			logger.ErrorContext(ctx, "mail delivery failed", "to", msg.To, "error", err)
			continue
		}
		metrics.MailJobs.WithLabelValues("sent").Inc()
		logger.InfoContext(ctx, "mail delivered", "to", msg.To, "subject", msg.Subject)
	}
	return ctx.Err()
}
