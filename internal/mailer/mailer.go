// Package mailer delivers transactional mail.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// Message is one plain-text email, with an optional HTML alternative.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender hands a message to a delivery backend.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer sends through a backend and applies the fail-silently policy:
// when set, delivery errors are logged and swallowed.
type Mailer struct {
	sender       Sender
	failSilently bool
	logger       *slog.Logger
	onFailure    func()
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithFailureHook registers fn to run on every failed delivery.
func WithFailureHook(fn func()) Option {
	return func(m *Mailer) { m.onFailure = fn }
}

// New creates a Mailer.
func New(sender Sender, failSilently bool, logger *slog.Logger, opts ...Option) *Mailer {
	m := &Mailer{sender: sender, failSilently: failSilently, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send delivers msg. A delivery failure wraps ErrMailDelivery unless the
// mailer fails silently.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	err := m.sender.Send(ctx, msg)
	if err == nil {
		return nil
	}

	if m.onFailure != nil {
		m.onFailure()
	}
	m.logger.ErrorContext(ctx, "mail delivery failed",
		slog.String("subject", msg.Subject),
		slog.Bool("fail_silently", m.failSilently),
		slog.String("error", err.Error()),
	)
	if m.failSilently {
		return nil
	}
	return fmt.Errorf("%w: %w", apperrors.ErrMailDelivery, err)
}
