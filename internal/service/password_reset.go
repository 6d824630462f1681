package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/event"
	"github.com/XxvipoxX/ChaosAWS/internal/mailer"
	"github.com/XxvipoxX/ChaosAWS/internal/metrics"
	"github.com/XxvipoxX/ChaosAWS/internal/repository"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// PasswordResetService implements the forgot-password flow.
type PasswordResetService struct {
	accounts      repository.AccountRepository
	mailer        *mailer.Mailer
	producer      *event.Producer
	publicBaseURL string
	random        io.Reader
	logger        *slog.Logger
	now           Clock
}

// NewPasswordResetService creates a new password reset service. Reset links
// are built on publicBaseURL.
func NewPasswordResetService(
	accounts repository.AccountRepository,
	m *mailer.Mailer,
	producer *event.Producer,
	publicBaseURL string,
	logger *slog.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		accounts:      accounts,
		mailer:        m,
		producer:      producer,
		publicBaseURL: publicBaseURL,
		logger:        logger,
		now:           systemClock,
	}
}

// WithClock replaces the time source.
func (s *PasswordResetService) WithClock(now Clock) *PasswordResetService {
	s.now = now
	return s
}

// WithRandom replaces the token entropy source. Nil means crypto/rand.
func (s *PasswordResetService) WithRandom(r io.Reader) *PasswordResetService {
	s.random = r
	return s
}

// RequestReset issues a reset token for the account registered with email
// and mails the link. Unknown addresses succeed silently so the response
// does not reveal which emails exist. A new token replaces any earlier one.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			metrics.ResetRequests.WithLabelValues("unknown_email").Inc()
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get account by email: %w", err)
	}

	token, err := domain.GenerateResetToken(s.random)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	cred := account.IssueResetToken(token, s.now())
	if err := s.accounts.SetResetToken(ctx, cred); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	msg := mailer.PasswordResetMessage(account.Email, account.Username, mailer.ResetLink(s.publicBaseURL, token))
	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.ResetRequests.WithLabelValues("mail_failed").Inc()
		return err
	}

	metrics.ResetRequests.WithLabelValues("sent").Inc()
	if s.producer != nil {
		if err := s.producer.PublishPasswordResetRequested(ctx, account, cred.ExpiresAt); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish password_reset.requested event",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "password reset issued",
		slog.String("account_id", account.ID),
		slog.Time("expires_at", cred.ExpiresAt),
	)
	return nil
}

// ValidateToken returns the account a live token belongs to. Unknown,
// mismatched and expired tokens all fail with ErrInvalidOrExpiredToken.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidOrExpiredToken
	}
	account, err := s.accounts.GetByResetToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("get account by reset token: %w", err)
	}
	if err := account.CheckResetToken(token, s.now()); err != nil {
		return nil, err
	}
	return account, nil
}

// Consume sets a new password with a live token and invalidates the token.
// A rejected password keeps the token usable.
func (s *PasswordResetService) Consume(ctx context.Context, token, password, confirmation string) error {
	account, err := s.ValidateToken(ctx, token)
	if err != nil {
		s.countConsumption(err)
		return err
	}
	if err := domain.ValidateNewPassword(password, confirmation); err != nil {
		s.countConsumption(err)
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.ResetPassword(ctx, account.ID, token, string(hashedPassword), s.now()); err != nil {
		s.countConsumption(err)
		if errors.Is(err, apperrors.ErrInvalidOrExpiredToken) {
			return err
		}
		return fmt.Errorf("reset password: %w", err)
	}

	s.countConsumption(nil)
	s.logger.InfoContext(ctx, "password reset completed", slog.String("account_id", account.ID))
	return nil
}

func (s *PasswordResetService) countConsumption(err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidOrExpiredToken):
		result = "invalid_token"
	case errors.Is(err, apperrors.ErrPasswordMismatch):
		result = "mismatch"
	case errors.Is(err, apperrors.ErrWeakPassword):
		result = "weak_password"
	case errors.Is(err, apperrors.ErrPasswordTooLong):
		result = "password_too_long"
	default:
		result = "error"
	}
	metrics.ResetConsumptions.WithLabelValues(result).Inc()
}
