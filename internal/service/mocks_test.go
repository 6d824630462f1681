package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/event"
	"github.com/XxvipoxX/ChaosAWS/internal/gateway"
	"github.com/XxvipoxX/ChaosAWS/internal/mailer"
	redisrepo "github.com/XxvipoxX/ChaosAWS/internal/repository/redis"
	pkgkafka "github.com/XxvipoxX/ChaosAWS/pkg/kafka"
)

// --- Mock AccountRepository ---

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByResetToken(ctx context.Context, token string) (*domain.Account, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) UpdateProfile(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	args := m.Called(ctx, username, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	args := m.Called(ctx, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepository) SetResetToken(ctx context.Context, cred domain.PasswordResetCredential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *mockAccountRepository) ResetPassword(ctx context.Context, accountID, token, passwordHash string, now time.Time) error {
	args := m.Called(ctx, accountID, token, passwordHash, now)
	return args.Error(0)
}

// --- Mock OrderRepository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]domain.Order, int, error) {
	args := m.Called(ctx, accountID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	args := m.Called(ctx, order, from)
	return args.Error(0)
}

func (m *mockOrderRepository) CompleteWithActivation(ctx context.Context, order *domain.Order, account *domain.Account) (bool, error) {
	args := m.Called(ctx, order, account)
	return args.Bool(0), args.Error(1)
}

// --- Mock Provider ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) Charge(ctx context.Context, input *gateway.ChargeInput) (*gateway.ChargeResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeResult), args.Error(1)
}

func (m *mockProvider) Refund(ctx context.Context, input *gateway.RefundInput) (*gateway.RefundResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

// --- Mock mail Sender ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// --- Recording Kafka writer ---

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func (w *recordingWriter) topics() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	topics := make([]string, 0, len(w.messages))
	for _, m := range w.messages {
		topics = append(topics, m.Topic)
	}
	return topics
}

// --- Test Helpers ---

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

var testPrices = map[domain.Tier]int64{
	domain.TierStandard: 999,
	domain.TierUltimate: 1999,
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEventProducer() (*event.Producer, *recordingWriter) {
	logger := newTestLogger()
	w := &recordingWriter{}
	return event.NewProducer(pkgkafka.NewProducerWithWriter(w, []string{"localhost:9092"}, logger), logger), w
}

func newTestCartService(t *testing.T) (*CartService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisrepo.NewCartStore(client, 7*24*time.Hour)
	return NewCartService(store, testPrices, domain.DefaultTaxBasisPoints, newTestLogger()), mr
}

func newTestAccount() *domain.Account {
	a := domain.NewAccount("acct-1", "ana", "ana@example.com", "Ana", "Pérez", testNow.Add(-48*time.Hour))
	a.PasswordHash = hashForTest("SecurePass123")
	return a
}

// hashForTest creates a bcrypt hash with cost 4 for fast tests.
func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func strPtr(s string) *string {
	return &s
}

func requireCart(t *testing.T, carts *CartService, accountID string) domain.Cart {
	t.Helper()
	cart, err := carts.Cart(context.Background(), accountID)
	require.NoError(t, err)
	return cart
}
