package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"time"

	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// Password reset parameters.
const (
	ResetTokenLength  = 32
	ResetTokenTTL     = time.Hour
	MinPasswordLength = 8
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72
)

const resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateResetToken draws ResetTokenLength symbols uniformly from the
// alphanumeric alphabet using src, which must be a CSPRNG. A nil src means
// crypto/rand.Reader.
func GenerateResetToken(src io.Reader) (string, error) {
	if src == nil {
		src = rand.Reader
	}
	n := big.NewInt(int64(len(resetTokenAlphabet)))
	buf := make([]byte, ResetTokenLength)
	for i := range buf {
		idx, err := rand.Int(src, n)
		if err != nil {
			return "", fmt.Errorf("generate reset token: %w", err)
		}
		buf[i] = resetTokenAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// PasswordResetCredential is the single live reset token of an account.
type PasswordResetCredential struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
}

// ValidAt reports whether the credential can still be used at now. A token
// expiring exactly at now is already invalid.
func (c PasswordResetCredential) ValidAt(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}

// Matches compares token in constant time.
func (c PasswordResetCredential) Matches(token string) bool {
	return len(token) == len(c.Token) &&
		subtle.ConstantTimeCompare([]byte(token), []byte(c.Token)) == 1
}

// IssueResetToken stores token on the account, replacing any earlier one,
// with an expiry of now plus ResetTokenTTL.
func (a *Account) IssueResetToken(token string, now time.Time) PasswordResetCredential {
	expiry := now.Add(ResetTokenTTL)
	a.ResetToken = &token
	a.ResetTokenExpiry = &expiry
	a.UpdatedAt = now
	return PasswordResetCredential{Token: token, AccountID: a.ID, ExpiresAt: expiry}
}

// ResetCredential returns the stored credential, if any.
func (a *Account) ResetCredential() (PasswordResetCredential, bool) {
	if a.ResetToken == nil || a.ResetTokenExpiry == nil {
		return PasswordResetCredential{}, false
	}
	return PasswordResetCredential{Token: *a.ResetToken, AccountID: a.ID, ExpiresAt: *a.ResetTokenExpiry}, true
}

// CheckResetToken verifies token against the stored credential at now. Wrong
// and expired tokens fail with the same error.
func (a *Account) CheckResetToken(token string, now time.Time) error {
	cred, ok := a.ResetCredential()
	if !ok || !cred.Matches(token) || !cred.ValidAt(now) {
		return apperrors.ErrInvalidOrExpiredToken
	}
	return nil
}

// ClearResetToken drops the token and its expiry together.
func (a *Account) ClearResetToken() {
	a.ResetToken = nil
	a.ResetTokenExpiry = nil
}

// ValidateNewPassword checks the confirmation first, then the length bounds.
func ValidateNewPassword(password, confirmation string) error {
	if password != confirmation {
		return apperrors.ErrPasswordMismatch
	}
	if len([]rune(password)) < MinPasswordLength {
		return apperrors.ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return apperrors.ErrPasswordTooLong
	}
	return nil
}
