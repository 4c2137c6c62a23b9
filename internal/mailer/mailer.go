// Package mailer accepts outgoing client emails, applies quote reminders
// and hands the message to the job queue.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
	"github.com/rapid-pub/backoffice/internal/sales"
	"github.com/rapid-pub/backoffice/jobs"
)

const (
	TypeQuote    = "quote"
	TypeReminder = "reminder"
	TypeRelance  = "relance"

	StatusQueued    = "queued"
	StatusSimulated = "simulated"
)

var ErrReminderNeedsQuote = fmt.Errorf("mailer: %w: reminder requires quote_id", httpx.ErrValidation)

// Request is the body of POST /email.
type Request struct {
	Type    string     `json:"type,omitempty" validate:"omitempty,oneof=quote reminder relance"`
	QuoteID *uuid.UUID `json:"quote_id,omitempty"`
	To      string     `json:"to" validate:"required,email"`
	Subject string     `json:"subject" validate:"required"`
	Message string     `json:"message,omitempty"`
}

// Receipt describes what happened to a message.
type Receipt struct {
	ID      uuid.UUID    `json:"id"`
	Status  string       `json:"status"`
	From    string       `json:"from"`
	To      string       `json:"to"`
	Subject string       `json:"subject"`
	Quote   *sales.Quote `json:"quote,omitempty"`
}

// Queue enqueues send tasks.
type Queue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Reminder applies the reminder pseudo-transition to a quote.
type Reminder interface {
	RemindQuote(ctx context.Context, id uuid.UUID) (*sales.Quote, error)
}

// SenderSource resolves the From address.
type SenderSource interface {
	Sender(ctx context.Context, fallback string) string
}

// Service sends emails through the queue, or logs them when no queue is
// configured.
type Service struct {
	queue       Queue
	reminders   Reminder
	senders     SenderSource
	defaultFrom string
	logger      *slog.Logger
}

// NewService creates a mailer. queue may be nil.
func NewService(queue Queue, reminders Reminder, senders SenderSource, defaultFrom string, logger *slog.Logger) *Service {
	return &Service{
		queue:       queue,
		reminders:   reminders,
		senders:     senders,
		defaultFrom: defaultFrom,
		logger:      logger,
	}
}

// Send validates req, applies a reminder when asked, then queues the
// message. A rejected reminder sends nothing.
func (s *Service) Send(ctx context.Context, req Request) (*Receipt, error) {
	req.To = strings.TrimSpace(req.To)
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	if isReminder(req.Type) && req.QuoteID == nil {
		return nil, ErrReminderNeedsQuote
	}

	receipt := &Receipt{
		ID:      uuid.New(),
		From:    s.sender(ctx),
		To:      req.To,
		Subject: req.Subject,
	}

	if isReminder(req.Type) {
		quote, err := s.reminders.RemindQuote(ctx, *req.QuoteID)
		if err != nil {
			return nil, err
		}
		receipt.Quote = quote
	}

	payload := jobs.SendEmailPayload{
		MessageID: receipt.ID.String(),
		From:      receipt.From,
		To:        receipt.To,
		Subject:   req.Subject,
		Body:      req.Message,
	}
	logger := s.logger.With(
		slog.String("message_id", payload.MessageID),
		slog.String("to", payload.To),
		slog.String("type", req.Type),
	)

	if s.queue == nil {
		receipt.Status = StatusSimulated
		logger.Info("simulated email send", slog.String("from", payload.From), slog.String("subject", payload.Subject))
		return receipt, nil
	}
	if _, err := s.queue.EnqueueSendEmail(ctx, payload); err != nil {
		logger.Error("enqueue email", slog.Any("error", err))
		return nil, fmt.Errorf("mailer: enqueue: %w", err)
	}
	receipt.Status = StatusQueued
	logger.Info("email queued")
	return receipt, nil
}

func isReminder(kind string) bool {
	return kind == TypeReminder || kind == TypeRelance
}

func (s *Service) sender(ctx context.Context) string {
	if s.senders == nil {
		return s.defaultFrom
	}
	return s.senders.Sender(ctx, s.defaultFrom)
}
