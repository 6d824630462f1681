package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/XxvipoxX/ChaosAWS/internal/auth"
	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/event"
	"github.com/XxvipoxX/ChaosAWS/internal/metrics"
	"github.com/XxvipoxX/ChaosAWS/internal/repository"
	"github.com/XxvipoxX/ChaosAWS/internal/storage"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
	"github.com/XxvipoxX/ChaosAWS/pkg/validator"
)

// birthDateLayout is the accepted birth date format.
const birthDateLayout = "2006-01-02"

// AccountService implements registration, login and profile management.
type AccountService struct {
	accounts  repository.AccountRepository
	orders    repository.OrderRepository
	carts     *CartService
	storage   storage.Storage
	jwt       *auth.JWTManager
	producer  *event.Producer
	mediaURL  string
	staticURL string
	logger    *slog.Logger
	now       Clock
}

// NewAccountService creates a new account service. producer may be nil when
// event publishing is disabled.
func NewAccountService(
	accounts repository.AccountRepository,
	orders repository.OrderRepository,
	carts *CartService,
	store storage.Storage,
	jwtManager *auth.JWTManager,
	producer *event.Producer,
	mediaURL, staticURL string,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		orders:    orders,
		carts:     carts,
		storage:   store,
		jwt:       jwtManager,
		producer:  producer,
		mediaURL:  mediaURL,
		staticURL: staticURL,
		logger:    logger,
		now:       systemClock,
	}
}

// WithClock replaces the time source.
func (s *AccountService) WithClock(now Clock) *AccountService {
	s.now = now
	return s
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Username             string
	Email                string
	FirstName            string
	LastName             string
	TierChoice           domain.Tier
	Password             string
	PasswordConfirmation string
}

// LoginInput holds the parameters for logging in by username or email.
type LoginInput struct {
	Identifier string
	Password   string
	Remember   bool
}

// UpdateProfileInput holds the editable profile fields. Nil fields are left
// unchanged.
type UpdateProfileInput struct {
	Username             *string
	Email                *string
	FirstName            *string
	LastName             *string
	TierChoice           *domain.Tier
	BirthDate            *string
	DefaultPaymentMethod *domain.PaymentMethod
	CardNumber           *string
	Avatar               domain.AvatarChange
}

// Profile is the account page read model.
type Profile struct {
	Account      *domain.Account         `json:"account"`
	FullName     string                  `json:"full_name"`
	Membership   domain.MembershipStatus `json:"membership"`
	AvatarURL    string                  `json:"avatar_url"`
	RecentOrders []domain.Order          `json:"recent_orders"`
}

// Register creates a free account and signs it in. A paid tier choice is
// placed in the account's cart for checkout.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.Account, *auth.Session, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if input.Username == "" {
		return nil, nil, apperrors.InvalidInput("username is required")
	}
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.TierChoice == "" {
		input.TierChoice = domain.TierFree
	}
	if !domain.IsValidTier(input.TierChoice) {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("invalid tier %q", input.TierChoice))
	}
	if err := domain.ValidateNewPassword(input.Password, input.PasswordConfirmation); err != nil {
		return nil, nil, err
	}

	if err := s.checkUnique(ctx, input.Username, input.Email, ""); err != nil {
		return nil, nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	account := domain.NewAccount(uuid.NewString(), input.Username, input.Email, input.FirstName, input.LastName, s.now())
	account.PasswordHash = string(hashedPassword)

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("create account: %w", err)
	}

	if input.TierChoice.IsPaid() {
		if _, err := s.carts.Add(ctx, account.ID, input.TierChoice); err != nil {
			s.logger.WarnContext(ctx, "failed to place chosen plan in cart",
				slog.String("account_id", account.ID),
				slog.String("plan", string(input.TierChoice)),
				slog.String("error", err.Error()),
			)
		}
	}

	session, err := s.jwt.Issue(account.ID, account.Username, false)
	if err != nil {
		return nil, nil, fmt.Errorf("issue session: %w", err)
	}

	metrics.Registrations.WithLabelValues(string(input.TierChoice)).Inc()
	if s.producer != nil {
		if err := s.producer.PublishAccountRegistered(ctx, account, input.TierChoice); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish account.registered event",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username),
		slog.String("tier_choice", string(input.TierChoice)),
	)

	return account, session, nil
}

// Login authenticates by username, falling back to email, and issues a
// session. Remember selects the long session lifetime.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*domain.Account, *auth.Session, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return nil, nil, apperrors.InvalidInput("username or email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	account, err := s.lookupLogin(ctx, identifier)
	if err != nil {
		if isNotFound(err) {
			metrics.Logins.WithLabelValues("unknown_account").Inc()
			return nil, nil, apperrors.Unauthorized("invalid username or password")
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		metrics.Logins.WithLabelValues("bad_password").Inc()
		return nil, nil, apperrors.Unauthorized("invalid username or password")
	}

	session, err := s.jwt.Issue(account.ID, account.Username, input.Remember)
	if err != nil {
		return nil, nil, fmt.Errorf("issue session: %w", err)
	}

	metrics.Logins.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", account.ID),
		slog.Bool("remember", input.Remember),
	)

	return account, session, nil
}

func (s *AccountService) lookupLogin(ctx context.Context, identifier string) (*domain.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, identifier)
	if err == nil {
		return account, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	account, err = s.accounts.GetByEmail(ctx, identifier)
	if err != nil {
		if isNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return account, nil
}

// GetAccount retrieves an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetProfile builds the account page: membership state, avatar and the
// latest orders.
func (s *AccountService) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, account)
}

func (s *AccountService) profile(ctx context.Context, account *domain.Account) (*Profile, error) {
	orders, _, err := s.orders.ListByAccount(ctx, account.ID, 0, recentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return &Profile{
		Account:      account,
		FullName:     account.FullName(),
		Membership:   account.Membership(s.now()),
		AvatarURL:    account.AvatarURL(s.mediaURL, s.staticURL),
		RecentOrders: orders,
	}, nil
}

// UpdateProfile applies a profile edit. Uniqueness checks ignore the account
// itself. An uploaded avatar is stored before the account row is written and
// removed again if that write fails.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (*Profile, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := input.Avatar.Validate(); err != nil {
		return nil, err
	}

	var newUsername, newEmail string
	if input.Username != nil {
		v := strings.TrimSpace(*input.Username)
		if v == "" {
			return nil, apperrors.InvalidInput("username cannot be empty")
		}
		if !strings.EqualFold(v, account.Username) {
			newUsername = v
		}
		account.Username = v
	}
	if input.Email != nil {
		v := strings.TrimSpace(*input.Email)
		if v == "" {
			return nil, apperrors.InvalidInput("email cannot be empty")
		}
		if !strings.EqualFold(v, account.Email) {
			newEmail = v
		}
		account.Email = v
	}
	if err := s.checkUnique(ctx, newUsername, newEmail, account.ID); err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		account.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		account.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.BirthDate != nil {
		if err := applyBirthDate(account, *input.BirthDate); err != nil {
			return nil, err
		}
	}
	if input.DefaultPaymentMethod != nil {
		m := *input.DefaultPaymentMethod
		if m != "" && !domain.IsValidPaymentMethod(m) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported payment method %q", m))
		}
		account.DefaultPaymentMethod = m
	}
	if input.CardNumber != nil {
		last4, err := cardLastFour(*input.CardNumber)
		if err != nil {
			return nil, err
		}
		account.CardLastFour = last4
	}

	var planToCart domain.Tier
	if input.TierChoice != nil {
		tier := *input.TierChoice
		if !domain.IsValidTier(tier) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid tier %q", tier))
		}
		if tier.IsPaid() && !(tier == account.Tier && account.IsActive(s.now())) {
			planToCart = tier
		}
	}

	previousPicture := account.ProfilePicture
	storedKey := ""
	if input.Avatar.Kind() == domain.AvatarUploaded {
		storedKey, err = s.storeAvatar(ctx, account.ID, input.Avatar.Upload())
		if err != nil {
			return nil, err
		}
	}
	account.ApplyAvatar(input.Avatar, storedKey)
	account.UpdatedAt = s.now()

	if err := s.accounts.UpdateProfile(ctx, account); err != nil {
		if storedKey != "" {
			s.deleteAvatar(ctx, storedKey)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if previousPicture != "" && previousPicture != account.ProfilePicture {
		s.deleteAvatar(ctx, previousPicture)
	}

	if planToCart != "" {
		if _, err := s.carts.Add(ctx, account.ID, planToCart); err != nil {
			s.logger.WarnContext(ctx, "failed to place chosen plan in cart",
				slog.String("account_id", account.ID),
				slog.String("plan", string(planToCart)),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("account_id", account.ID))

	return s.profile(ctx, account)
}

func (s *AccountService) checkUnique(ctx context.Context, username, email, excludeID string) error {
	if username != "" {
		taken, err := s.accounts.UsernameTaken(ctx, username, excludeID)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return apperrors.AlreadyExists("account", "username", username)
		}
	}
	if email != "" {
		taken, err := s.accounts.EmailTaken(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return apperrors.AlreadyExists("account", "email", email)
		}
	}
	return nil
}

func (s *AccountService) storeAvatar(ctx context.Context, accountID string, img domain.UploadedImage) (string, error) {
	key := storage.AvatarKey(accountID, img.Filename)
	err := s.storage.Upload(ctx, &storage.UploadInput{
		Key:         key,
		ContentType: img.ContentType(),
		Size:        int64(len(img.Data)),
		Data:        bytes.NewReader(img.Data),
	})
	if err != nil {
		return "", apperrors.Persistence(fmt.Errorf("upload avatar: %w", err))
	}
	return key, nil
}

func (s *AccountService) deleteAvatar(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete avatar file",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func applyBirthDate(account *domain.Account, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		account.BirthDate = nil
		return nil
	}
	d, err := time.Parse(birthDateLayout, value)
	if err != nil {
		return apperrors.InvalidInput("birth date must use the format YYYY-MM-DD")
	}
	account.BirthDate = &d
	return nil
}

func cardLastFour(number string) (string, error) {
	if strings.TrimSpace(number) == "" {
		return "", nil
	}
	if !validator.IsCardNumber(number) {
		return "", apperrors.InvalidInput("card number must be 13 to 19 digits")
	}
	n := validator.NormalizeCardNumber(number)
	return n[len(n)-4:], nil
}
