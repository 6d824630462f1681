package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/XxvipoxX/ChaosAWS/internal/auth"
	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/event"
	"github.com/XxvipoxX/ChaosAWS/internal/storage"
	"github.com/XxvipoxX/ChaosAWS/internal/storage/memory"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

type accountFixture struct {
	svc      *AccountService
	accounts *mockAccountRepository
	orders   *mockOrderRepository
	carts    *CartService
	files    *memory.Storage
	events   *recordingWriter
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	accounts := new(mockAccountRepository)
	orders := new(mockOrderRepository)
	carts, _ := newTestCartService(t)
	files := memory.New()
	producer, events := newTestEventProducer()
	jwtManager := auth.NewJWTManager("test-secret-key-for-testing", 24*time.Hour, 14*24*time.Hour).
		WithClock(fixedClock(testNow))
	svc := NewAccountService(accounts, orders, carts, files, jwtManager, producer, "/media/", "/static/", newTestLogger()).
		WithClock(fixedClock(testNow))
	return &accountFixture{svc: svc, accounts: accounts, orders: orders, carts: carts, files: files, events: events}
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username:             "ana",
		Email:                "ana@example.com",
		FirstName:            "Ana",
		LastName:             "Pérez",
		TierChoice:           domain.TierUltimate,
		Password:             "SecurePass123",
		PasswordConfirmation: "SecurePass123",
	}
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("UsernameTaken", ctx, "ana", "").Return(false, nil)
	f.accounts.On("EmailTaken", ctx, "ana@example.com", "").Return(false, nil)
	f.accounts.On("Create", ctx, mock.AnythingOfType("*domain.Account")).Return(nil)

	account, session, err := f.svc.Register(ctx, validRegisterInput())

	require.NoError(t, err)
	require.NotNil(t, account)
	require.NotNil(t, session)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, domain.TierFree, account.Tier)
	assert.False(t, account.IsActive(testNow))
	assert.Nil(t, account.ActivationExpiry)
	assert.NotEqual(t, "SecurePass123", account.PasswordHash)
	assert.True(t, strings.HasPrefix(account.PasswordHash, "$2a$12$"))
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, testNow.Add(24*time.Hour), session.ExpiresAt)

	cart := requireCart(t, f.carts, account.ID)
	require.NotNil(t, cart.Item)
	assert.Equal(t, domain.TierUltimate, cart.Item.PlanType)
	assert.Equal(t, int64(1999), cart.Item.Price)

	assert.Equal(t, []string{event.TopicAccountRegistered}, f.events.topics())
	f.accounts.AssertExpectations(t)
}

func TestRegister_FreeTierLeavesCartEmpty(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("UsernameTaken", ctx, "ana", "").Return(false, nil)
	f.accounts.On("EmailTaken", ctx, "ana@example.com", "").Return(false, nil)
	f.accounts.On("Create", ctx, mock.AnythingOfType("*domain.Account")).Return(nil)

	input := validRegisterInput()
	input.TierChoice = ""
	account, _, err := f.svc.Register(ctx, input)

	require.NoError(t, err)
	assert.True(t, requireCart(t, f.carts, account.ID).IsEmpty())
}

func TestRegister_PasswordMismatch(t *testing.T) {
	f := newAccountFixture(t)

	input := validRegisterInput()
	input.PasswordConfirmation = "SecurePass124"
	account, session, err := f.svc.Register(context.Background(), input)

	assert.Nil(t, account)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, apperrors.ErrPasswordMismatch)
	f.accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newAccountFixture(t)

	input := validRegisterInput()
	input.Password = "Short1!"
	input.PasswordConfirmation = "Short1!"
	_, _, err := f.svc.Register(context.Background(), input)

	assert.ErrorIs(t, err, apperrors.ErrWeakPassword)
	f.accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	f := newAccountFixture(t)

	input := validRegisterInput()
	input.Password = strings.Repeat("a", 80)
	input.PasswordConfirmation = input.Password
	_, _, err := f.svc.Register(context.Background(), input)

	assert.ErrorIs(t, err, apperrors.ErrPasswordTooLong)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
	f.accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_UsernameTakenIgnoringCase(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("UsernameTaken", ctx, "ANA", "").Return(true, nil)

	input := validRegisterInput()
	input.Username = "ANA"
	_, _, err := f.svc.Register(ctx, input)

	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Equal(t, "ALREADY_EXISTS", apperrors.Code(err))
	f.accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("UsernameTaken", ctx, "ana", "").Return(false, nil)
	f.accounts.On("EmailTaken", ctx, "ana@example.com", "").Return(true, nil)

	_, _, err := f.svc.Register(ctx, validRegisterInput())

	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "email")
}

func TestRegister_InvalidTier(t *testing.T) {
	f := newAccountFixture(t)

	input := validRegisterInput()
	input.TierChoice = "platinum"
	_, _, err := f.svc.Register(context.Background(), input)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegister_StorageFailure(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("UsernameTaken", ctx, "ana", "").Return(false, nil)
	f.accounts.On("EmailTaken", ctx, "ana@example.com", "").Return(false, nil)
	f.accounts.On("Create", ctx, mock.AnythingOfType("*domain.Account")).
		Return(apperrors.Persistence(assert.AnError))

	_, _, err := f.svc.Register(ctx, validRegisterInput())

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.Empty(t, f.events.topics())
}

// --- Login Tests ---

func TestLogin_ByUsername(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()

	f.accounts.On("GetByUsername", ctx, "Ana").Return(account, nil)

	got, session, err := f.svc.Login(ctx, LoginInput{Identifier: "Ana", Password: "SecurePass123"})

	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, testNow.Add(24*time.Hour), session.ExpiresAt)
	f.accounts.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}

func TestLogin_FallsBackToEmail(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()

	f.accounts.On("GetByUsername", ctx, "ANA@example.com").Return(nil, apperrors.NotFound("account", "ANA@example.com"))
	f.accounts.On("GetByEmail", ctx, "ANA@example.com").Return(account, nil)

	got, _, err := f.svc.Login(ctx, LoginInput{Identifier: "ANA@example.com", Password: "SecurePass123"})

	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	f.accounts.AssertExpectations(t)
}

func TestLogin_RememberExtendsSession(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("GetByUsername", ctx, "ana").Return(newTestAccount(), nil)

	_, session, err := f.svc.Login(ctx, LoginInput{Identifier: "ana", Password: "SecurePass123", Remember: true})

	require.NoError(t, err)
	assert.Equal(t, testNow.Add(14*24*time.Hour), session.ExpiresAt)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("GetByUsername", ctx, "ana").Return(newTestAccount(), nil)

	_, session, err := f.svc.Login(ctx, LoginInput{Identifier: "ana", Password: "WrongPass123"})

	assert.Nil(t, session)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_UnknownAccount(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("GetByUsername", ctx, "ghost").Return(nil, apperrors.NotFound("account", "ghost"))
	f.accounts.On("GetByEmail", ctx, "ghost").Return(nil, apperrors.NotFound("account", "ghost"))

	_, _, err := f.svc.Login(ctx, LoginInput{Identifier: "ghost", Password: "SecurePass123"})

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_StorageFailure(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("GetByUsername", ctx, "ana").Return(nil, apperrors.Persistence(assert.AnError))

	_, _, err := f.svc.Login(ctx, LoginInput{Identifier: "ana", Password: "SecurePass123"})

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.NotErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAccountFixture(t)

	_, _, err := f.svc.Login(context.Background(), LoginInput{Identifier: " ", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = f.svc.Login(context.Background(), LoginInput{Identifier: "ana"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Profile Tests ---

func TestGetProfile(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()
	account.Activate(domain.TierStandard, domain.SubscriptionDays, testNow.Add(-10*24*time.Hour))
	recent := []domain.Order{{ID: "ord-1", AccountID: account.ID, PlanType: domain.TierStandard}}

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	f.orders.On("ListByAccount", ctx, account.ID, 0, 5).Return(recent, 1, nil)

	profile, err := f.svc.GetProfile(ctx, account.ID)

	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", profile.FullName)
	assert.Equal(t, "Standard", profile.Membership.TierName)
	assert.True(t, profile.Membership.Active)
	assert.Equal(t, 20, profile.Membership.RemainingDays)
	assert.Equal(t, "/static/assets/avatar_default.jpg", profile.AvatarURL)
	assert.Equal(t, recent, profile.RecentOrders)
	f.orders.AssertExpectations(t)
}

func TestGetProfile_NotFound(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.accounts.On("GetByID", ctx, "missing").Return(nil, apperrors.NotFound("account", "missing"))

	_, err := f.svc.GetProfile(ctx, "missing")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- UpdateProfile Tests ---

func pngUpload(size int) domain.UploadedImage {
	return domain.UploadedImage{Filename: "Me.PNG", Size: int64(size), Data: make([]byte, size)}
}

func TestUpdateProfile_FieldsAndUniquenessExcludeSelf(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()
	method := domain.PaymentMethodCreditCard

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	f.accounts.On("UsernameTaken", ctx, "ana.p", account.ID).Return(false, nil)
	f.accounts.On("UpdateProfile", ctx, account).Return(nil)
	f.orders.On("ListByAccount", ctx, account.ID, 0, 5).Return([]domain.Order{}, 0, nil)

	profile, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{
		Username:             strPtr("ana.p"),
		Email:                strPtr("ANA@example.com"),
		FirstName:            strPtr(" Ana María "),
		BirthDate:            strPtr("1990-05-17"),
		DefaultPaymentMethod: &method,
		CardNumber:           strPtr("4242 4242 4242 4242"),
	})

	require.NoError(t, err)
	assert.Equal(t, "ana.p", profile.Account.Username)
	assert.Equal(t, "ANA@example.com", profile.Account.Email)
	assert.Equal(t, "Ana María", profile.Account.FirstName)
	require.NotNil(t, profile.Account.BirthDate)
	assert.Equal(t, "1990-05-17", profile.Account.BirthDate.Format("2006-01-02"))
	assert.Equal(t, domain.PaymentMethodCreditCard, profile.Account.DefaultPaymentMethod)
	assert.Equal(t, "4242", profile.Account.CardLastFour)
	assert.Equal(t, testNow, profile.Account.UpdatedAt)

	// A case-only email change is the account's own address.
	f.accounts.AssertNotCalled(t, "EmailTaken", mock.Anything, mock.Anything, mock.Anything)
	f.accounts.AssertExpectations(t)
}

func TestUpdateProfile_UsernameTaken(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	f.accounts.On("UsernameTaken", ctx, "bob", account.ID).Return(true, nil)

	_, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{Username: strPtr("bob")})

	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	f.accounts.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestUpdateProfile_UploadAvatar(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()
	account.SelectedAvatar = "avatar3.jpg"

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	f.accounts.On("UpdateProfile", ctx, account).Return(nil)
	f.orders.On("ListByAccount", ctx, account.ID, 0, 5).Return([]domain.Order{}, 0, nil)

	profile, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{
		Avatar: domain.UploadAvatar(pngUpload(1024)),
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(profile.Account.ProfilePicture, "profile_pictures/acct-1/"))
	assert.True(t, strings.HasSuffix(profile.Account.ProfilePicture, ".png"))
	assert.Empty(t, profile.Account.SelectedAvatar)
	assert.Equal(t, "/media/"+profile.Account.ProfilePicture, profile.AvatarURL)

	file, ok := f.files.Get(profile.Account.ProfilePicture)
	require.True(t, ok)
	assert.Equal(t, "image/png", file.ContentType)
	assert.Len(t, file.Data, 1024)
}

func TestUpdateProfile_UploadReplacesPreviousFile(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()
	account.ProfilePicture = "profile_pictures/acct-1/old.png"
	require.NoError(t, f.files.Upload(ctx, &storage.UploadInput{
		Key:  account.ProfilePicture,
		Data: strings.NewReader("old"),
	}))

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	f.accounts.On("UpdateProfile", ctx, account).Return(nil)
	f.orders.On("ListByAccount", ctx, account.ID, 0, 5).Return([]domain.Order{}, 0, nil)

	_, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{
		Avatar: domain.UploadAvatar(pngUpload(16)),
	})

	require.NoError(t, err)
	_, ok := f.files.Get("profile_pictures/acct-1/old.png")
	assert.False(t, ok)
	assert.Equal(t, 1, f.files.Len())
}

func TestUpdateProfile_SaveFailureRemovesUpload(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	f.accounts.On("UpdateProfile", ctx, account).Return(apperrors.Persistence(assert.AnError))

	_, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{
		Avatar: domain.UploadAvatar(pngUpload(16)),
	})

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.Equal(t, 0, f.files.Len())
}

func TestUpdateProfile_OversizedImage(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	_, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{
		Avatar: domain.UploadAvatar(domain.UploadedImage{Filename: "big.jpg", Size: domain.MaxAvatarBytes + 1}),
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 0, f.files.Len())
	f.accounts.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestUpdateProfile_SystemAvatar(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()
	account.ProfilePicture = "profile_pictures/acct-1/old.png"

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	f.accounts.On("UpdateProfile", ctx, account).Return(nil)
	f.orders.On("ListByAccount", ctx, account.ID, 0, 5).Return([]domain.Order{}, 0, nil)

	profile, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{
		Avatar: domain.ChooseSystemAvatar("avatar2.jpg"),
	})

	require.NoError(t, err)
	assert.Empty(t, profile.Account.ProfilePicture)
	assert.Equal(t, "/static/assets/avatar2.jpg", profile.AvatarURL)
}

func TestUpdateProfile_UnknownSystemAvatar(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	_, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{
		Avatar: domain.ChooseSystemAvatar("../../etc/passwd"),
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateProfile_InvalidBirthDate(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	_, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{BirthDate: strPtr("17/05/1990")})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateProfile_InvalidCardNumber(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)

	_, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{CardNumber: strPtr("4242")})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateProfile_PaidTierChoiceGoesToCart(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	account := newTestAccount()
	tier := domain.TierStandard

	f.accounts.On("GetByID", ctx, account.ID).Return(account, nil)
	f.accounts.On("UpdateProfile", ctx, account).Return(nil)
	f.orders.On("ListByAccount", ctx, account.ID, 0, 5).Return([]domain.Order{}, 0, nil)

	profile, err := f.svc.UpdateProfile(ctx, account.ID, UpdateProfileInput{TierChoice: &tier})

	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, profile.Account.Tier, "tier changes only through payment")
	cart := requireCart(t, f.carts, account.ID)
	require.NotNil(t, cart.Item)
	assert.Equal(t, domain.TierStandard, cart.Item.PlanType)
}
