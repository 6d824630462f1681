package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

func newOrderTestFixture(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewOrderRepository(mock), mock
}

func sampleOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(domain.NewOrderParams{
		AccountID:     "acct-1",
		PlanType:      domain.TierStandard,
		Amount:        1159,
		Currency:      domain.DefaultCurrency,
		PaymentMethod: domain.PaymentMethodCreditCard,
		CardLastFour:  "4242",
		CustomerEmail: "ana@example.com",
	}, testNow)
	require.NoError(t, err)
	return o
}

func orderRows(orders ...*domain.Order) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "account_id", "plan_type", "amount", "currency", "status", "payment_method",
		"transaction_id", "card_last_four", "customer_email", "gateway_reference", "failure_reason",
		"paid_at", "subscription_start", "subscription_end", "created_at", "updated_at",
	})
	for _, o := range orders {
		rows.AddRow(
			o.ID, o.AccountID, o.PlanType, o.Amount, o.Currency, o.Status, o.PaymentMethod,
			o.TransactionID, o.CardLastFour, o.CustomerEmail, o.GatewayReference, o.FailureReason,
			o.PaidAt, o.SubscriptionStart, o.SubscriptionEnd, o.CreatedAt, o.UpdatedAt,
		)
	}
	return rows
}

// ---------------------------------------------------------------------------
// Create / Get
// ---------------------------------------------------------------------------

func TestOrderRepository_Create_Success(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o := sampleOrder(t)
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.AccountID, o.PlanType, o.Amount, o.Currency, o.Status, o.PaymentMethod,
			o.TransactionID, o.CardLastFour, o.CustomerEmail, o.GatewayReference, o.FailureReason,
			o.PaidAt, o.SubscriptionStart, o.SubscriptionEnd, o.CreatedAt, o.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o := sampleOrder(t)
	mock.ExpectQuery("SELECT .+ FROM orders WHERE id =").
		WithArgs(o.ID).
		WillReturnRows(orderRows(o))

	got, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.TransactionID, got.TransactionID)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Nil(t, got.PaidAt)
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM orders WHERE id =").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderRepository_ListByAccount(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	first, second := sampleOrder(t), sampleOrder(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs("acct-1", 5, 0).
		WillReturnRows(orderRows(first, second))

	orders, total, err := repo.ListByAccount(context.Background(), "acct-1", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Status updates
// ---------------------------------------------------------------------------

func TestOrderRepository_UpdateStatus_Conditional(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o := sampleOrder(t)
	require.NoError(t, o.Fail("card declined", testNow))

	mock.ExpectExec("UPDATE orders").
		WithArgs(o.Status, o.FailureReason, o.GatewayReference, o.UpdatedAt, o.ID, domain.OrderStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), o, domain.OrderStatusPending))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_LostRace(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o := sampleOrder(t)
	require.NoError(t, o.Cancel(testNow))

	mock.ExpectExec("UPDATE orders").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), o, domain.OrderStatusPending)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

// ---------------------------------------------------------------------------
// CompleteWithActivation
// ---------------------------------------------------------------------------

func completedPair(t *testing.T) (*domain.Order, *domain.Account) {
	t.Helper()
	o := sampleOrder(t)
	_, err := o.Complete(testNow)
	require.NoError(t, err)
	a := sampleAccount()
	a.Activate(o.PlanType, domain.SubscriptionDays, testNow)
	return o, a
}

func TestOrderRepository_CompleteWithActivation_Commits(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o, a := completedPair(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusCompleted, o.PaidAt, o.SubscriptionStart, o.SubscriptionEnd,
			o.GatewayReference, o.UpdatedAt, o.ID, domain.OrderStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(a.Tier, true, a.ActivationStart, a.ActivationExpiry, a.UpdatedAt, a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	completed, err := repo.CompleteWithActivation(context.Background(), o, a)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CompleteWithActivation_AlreadyPaid(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o, a := completedPair(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	completed, err := repo.CompleteWithActivation(context.Background(), o, a)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.NoError(t, mock.ExpectationsWereMet(), "account must not be touched")
}

func TestOrderRepository_CompleteWithActivation_RollsBackOnAccountFailure(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o, a := completedPair(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE accounts").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	completed, err := repo.CompleteWithActivation(context.Background(), o, a)
	assert.False(t, completed)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CompleteWithActivation_BeginFails(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o, a := completedPair(t)
	mock.ExpectBegin().WillReturnError(errors.New("dial tcp: connection refused"))

	_, err := repo.CompleteWithActivation(context.Background(), o, a)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}
