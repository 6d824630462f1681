package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/pkg/database"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

const accountColumns = `id, username, email, password_hash, first_name, last_name,
		tier, is_active_member, activation_start, activation_expiry,
		reset_token, reset_token_expiry, profile_picture, selected_avatar,
		birth_date, default_payment_method, card_last_four, created_at, updated_at`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account into the database.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (err error) {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	ctx, end := database.TraceQuery(ctx, "CreateAccount", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.Username,
		a.Email,
		a.PasswordHash,
		a.FirstName,
		a.LastName,
		a.Tier,
		a.IsActiveMember,
		a.ActivationStart,
		a.ActivationExpiry,
		a.ResetToken,
		a.ResetTokenExpiry,
		a.ProfilePicture,
		a.SelectedAvatar,
		a.BirthDate,
		a.DefaultPaymentMethod,
		a.CardLastFour,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return accountWriteError(err, a, "insert account")
	}
	return nil
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, "GetAccountByID", query, id)
}

// GetByUsername retrieves an account by username, ignoring case.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(username) = LOWER($1)`
	return r.scanAccount(ctx, "GetAccountByUsername", query, username)
}

// GetByEmail retrieves an account by email, ignoring case.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return r.scanAccount(ctx, "GetAccountByEmail", query, email)
}

// GetByResetToken retrieves the account holding token. Expiry is checked by
// the caller against its own clock.
func (r *AccountRepository) GetByResetToken(ctx context.Context, token string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE reset_token = $1`
	return r.scanAccount(ctx, "GetAccountByResetToken", query, token)
}

// UpdateProfile persists the editable profile fields of an account.
func (r *AccountRepository) UpdateProfile(ctx context.Context, a *domain.Account) (err error) {
	query := `
		UPDATE accounts
		SET username = $1, email = $2, first_name = $3, last_name = $4,
		    profile_picture = $5, selected_avatar = $6, birth_date = $7,
		    default_payment_method = $8, card_last_four = $9, updated_at = $10
		WHERE id = $11`

	ctx, end := database.TraceQuery(ctx, "UpdateAccountProfile", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		a.Username,
		a.Email,
		a.FirstName,
		a.LastName,
		a.ProfilePicture,
		a.SelectedAvatar,
		a.BirthDate,
		a.DefaultPaymentMethod,
		a.CardLastFour,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return accountWriteError(err, a, "update account")
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", a.ID)
	}
	return nil
}

// UsernameTaken reports whether an account other than excludeID uses username.
func (r *AccountRepository) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(username) = LOWER($1) AND id::text <> $2)`
	return r.exists(ctx, "UsernameTaken", query, username, excludeID)
}

// EmailTaken reports whether an account other than excludeID uses email.
func (r *AccountRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(email) = LOWER($1) AND id::text <> $2)`
	return r.exists(ctx, "EmailTaken", query, email, excludeID)
}

// SetResetToken stores a reset credential, overwriting any earlier token.
func (r *AccountRepository) SetResetToken(ctx context.Context, cred domain.PasswordResetCredential) (err error) {
	query := `
		UPDATE accounts
		SET reset_token = $1, reset_token_expiry = $2, updated_at = NOW()
		WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "SetResetToken", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, cred.Token, cred.ExpiresAt, cred.AccountID)
	if err != nil {
		return apperrors.Persistence(fmt.Errorf("set reset token: %w", err))
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", cred.AccountID)
	}
	return nil
}

// ResetPassword replaces the password hash and clears the reset token in a
// single conditional update, so a token can be consumed only once.
func (r *AccountRepository) ResetPassword(ctx context.Context, accountID, token, passwordHash string, now time.Time) (err error) {
	query := `
		UPDATE accounts
		SET password_hash = $1, reset_token = NULL, reset_token_expiry = NULL, updated_at = $2
		WHERE id = $3 AND reset_token = $4 AND reset_token_expiry > $2`

	ctx, end := database.TraceQuery(ctx, "ResetPassword", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, passwordHash, now, accountID, token)
	if err != nil {
		return apperrors.Persistence(fmt.Errorf("reset password: %w", err))
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrInvalidOrExpiredToken
	}
	return nil
}

func (r *AccountRepository) exists(ctx context.Context, op, query string, args ...any) (taken bool, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, args...).Scan(&taken); err != nil {
		return false, apperrors.Persistence(fmt.Errorf("%s: %w", op, err))
	}
	return taken, nil
}

// scanAccount executes a query expected to return a single account row.
func (r *AccountRepository) scanAccount(ctx context.Context, op, query string, args ...any) (_ *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var a domain.Account
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&a.Tier,
		&a.IsActiveMember,
		&a.ActivationStart,
		&a.ActivationExpiry,
		&a.ResetToken,
		&a.ResetTokenExpiry,
		&a.ProfilePicture,
		&a.SelectedAvatar,
		&a.BirthDate,
		&a.DefaultPaymentMethod,
		&a.CardLastFour,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Persistence(fmt.Errorf("scan account: %w", err))
	}
	return &a, nil
}

// accountWriteError maps unique violations onto the field that clashed.
func accountWriteError(err error, a *domain.Account, op string) error {
	if database.IsUniqueViolation(err) {
		if database.ConstraintName(err) == "accounts_email_key" {
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
		return apperrors.AlreadyExists("account", "username", a.Username)
	}
	return apperrors.Persistence(fmt.Errorf("%s: %w", op, err))
}
