package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/XxvipoxX/ChaosAWS/internal/auth"
	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/gateway/simulated"
	"github.com/XxvipoxX/ChaosAWS/internal/mailer"
	redisrepo "github.com/XxvipoxX/ChaosAWS/internal/repository/redis"
	"github.com/XxvipoxX/ChaosAWS/internal/service"
	"github.com/XxvipoxX/ChaosAWS/internal/storage/memory"
	"github.com/XxvipoxX/ChaosAWS/pkg/health"
	"github.com/XxvipoxX/ChaosAWS/pkg/httputil"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepo) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepo) GetByResetToken(ctx context.Context, token string) (*domain.Account, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepo) UpdateProfile(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepo) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	args := m.Called(ctx, username, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepo) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	args := m.Called(ctx, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepo) SetResetToken(ctx context.Context, cred domain.PasswordResetCredential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *mockAccountRepo) ResetPassword(ctx context.Context, accountID, token, passwordHash string, now time.Time) error {
	args := m.Called(ctx, accountID, token, passwordHash, now)
	return args.Error(0)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]domain.Order, int, error) {
	args := m.Called(ctx, accountID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	args := m.Called(ctx, order, from)
	return args.Error(0)
}

func (m *mockOrderRepo) CompleteWithActivation(ctx context.Context, order *domain.Order, account *domain.Account) (bool, error) {
	args := m.Called(ctx, order, account)
	return args.Bool(0), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// ============================================================================
// Test Helpers
// ============================================================================

const (
	testAccountID = "550e8400-e29b-41d4-a716-446655440001"
	testOrderID   = "550e8400-e29b-41d4-a716-446655440002"
	testPassword  = "SecurePass123"
)

var testPrices = map[domain.Tier]int64{
	domain.TierStandard: 999,
	domain.TierUltimate: 1999,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testServer wires the real services and router over mocked repositories.
type testServer struct {
	handler  http.Handler
	accounts *mockAccountRepo
	orders   *mockOrderRepo
	sender   *mockSender
	carts    *service.CartService
	files    *memory.Storage
	jwt      *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ts := &testServer{
		accounts: new(mockAccountRepo),
		orders:   new(mockOrderRepo),
		sender:   new(mockSender),
		files:    memory.New(),
		jwt:      auth.NewJWTManager("test-secret-with-enough-length", 24*time.Hour, 14*24*time.Hour),
	}
	ts.carts = service.NewCartService(redisrepo.NewCartStore(client, 7*24*time.Hour), testPrices, domain.DefaultTaxBasisPoints, logger)

	svcs := Services{
		Accounts: service.NewAccountService(ts.accounts, ts.orders, ts.carts, ts.files, ts.jwt, nil, "/media/", "/static/", logger),
		Carts:    ts.carts,
		Orders:   service.NewOrderService(ts.orders, ts.accounts, ts.carts, simulated.NewProvider(), nil, logger),
		Resets:   service.NewPasswordResetService(ts.accounts, mailer.New(ts.sender, false, logger), nil, "https://chaos.example.com/", logger),
	}

	ts.handler = NewRouter(svcs, ts.jwt, health.NewHandler(), logger, RouterConfig{
		CORS:               CORSConfig{AllowedOrigins: []string{"https://chaos.example.com"}, Environment: "production"},
		RateLimitPerMinute: 1000,
		RateLimitBurst:     1000,
		AuthRatePerMinute:  1000,
	})
	return ts
}

// do sends a JSON request, signed in as testAccountID when authed is set.
func (ts *testServer) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token(t))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// doRaw sends body with an explicit Content-Type, signed in as testAccountID.
func (ts *testServer) doRaw(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+ts.token(t))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doWithToken(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) token(t *testing.T) string {
	t.Helper()
	session, err := ts.jwt.Issue(testAccountID, "ana", false)
	require.NoError(t, err)
	return session.Token
}

func sampleAccount() *domain.Account {
	a := domain.NewAccount(testAccountID, "ana", "ana@example.com", "Ana", "Pérez", time.Now().UTC().Add(-time.Hour))
	h, err := bcrypt.GenerateFromPassword([]byte(testPassword), 4)
	if err != nil {
		panic(err)
	}
	a.PasswordHash = string(h)
	return a
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// decodeData decodes the data half of the envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}
