package repository

import (
	"context"
	"time"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
)

// AccountRepository defines the interface for account persistence operations.
type AccountRepository interface {
	// Create inserts a new account. A taken username or email yields
	// ErrAlreadyExists.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByUsername retrieves an account by username, ignoring case.
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)

	// GetByEmail retrieves an account by email address, ignoring case.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// GetByResetToken retrieves the account holding token, whatever its expiry.
	GetByResetToken(ctx context.Context, token string) (*domain.Account, error)

	// UpdateProfile persists the editable profile fields.
	UpdateProfile(ctx context.Context, account *domain.Account) error

	// UsernameTaken reports whether another account than excludeID uses username.
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)

	// EmailTaken reports whether another account than excludeID uses email.
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)

	// SetResetToken stores the account's reset credential, replacing any
	// previous one.
	SetResetToken(ctx context.Context, cred domain.PasswordResetCredential) error

	// ResetPassword stores passwordHash and clears the reset token in one
	// statement, provided token is still the account's live token at now.
	// Otherwise it returns ErrInvalidOrExpiredToken.
	ResetPassword(ctx context.Context, accountID, token, passwordHash string, now time.Time) error
}

// OrderRepository defines the interface for payment order persistence operations.
type OrderRepository interface {
	// Create inserts a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListByAccount returns one page of an account's orders, newest first,
	// together with the total count.
	ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]domain.Order, int, error)

	// UpdateStatus persists a transition made on order, provided the stored
	// status is still from.
	UpdateStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error

	// CompleteWithActivation stores the completed order and the activated
	// account in one transaction. It reports false, writing nothing, when the
	// order was already paid.
	CompleteWithActivation(ctx context.Context, order *domain.Order, account *domain.Account) (bool, error)
}

// CartStore keeps the single-slot cart of each account.
type CartStore interface {
	// Get returns the cart, empty when none is stored.
	Get(ctx context.Context, accountID string) (domain.Cart, error)

	// Save stores the cart, refreshing its expiry.
	Save(ctx context.Context, accountID string, cart domain.Cart) error

	// Delete drops the cart.
	Delete(ctx context.Context, accountID string) error
}
