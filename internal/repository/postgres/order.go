package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/pkg/database"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

const orderColumns = `id, account_id, plan_type, amount, currency, status, payment_method,
		transaction_id, card_last_four, customer_email, gateway_reference, failure_reason,
		paid_at, subscription_start, subscription_end, created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		o.ID,
		o.AccountID,
		o.PlanType,
		o.Amount,
		o.Currency,
		o.Status,
		o.PaymentMethod,
		o.TransactionID,
		o.CardLastFour,
		o.CustomerEmail,
		o.GatewayReference,
		o.FailureReason,
		o.PaidAt,
		o.SubscriptionStart,
		o.SubscriptionEnd,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "transaction id", o.TransactionID)
		}
		return apperrors.Persistence(fmt.Errorf("insert order: %w", err))
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetOrderByID", query)
	defer func() { end(err) }()

	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, apperrors.Persistence(fmt.Errorf("scan order: %w", err))
	}
	return o, nil
}

// ListByAccount returns a page of the account's orders, newest first, and
// the total number of orders the account has.
func (r *OrderRepository) ListByAccount(ctx context.Context, accountID string, offset, limit int) (_ []domain.Order, _ int, err error) {
	countQuery := `SELECT COUNT(*) FROM orders WHERE account_id = $1`
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListOrdersByAccount", query)
	defer func() { end(err) }()

	var total int
	if err = r.db.QueryRow(ctx, countQuery, accountID).Scan(&total); err != nil {
		return nil, 0, apperrors.Persistence(fmt.Errorf("count orders: %w", err))
	}

	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Persistence(fmt.Errorf("list orders: %w", err))
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, apperrors.Persistence(fmt.Errorf("scan order row: %w", err))
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, apperrors.Persistence(fmt.Errorf("iterate order rows: %w", err))
	}
	return orders, total, nil
}

// UpdateStatus writes a transition already applied to o. The update only
// lands if the stored status is still from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order, from domain.OrderStatus) (err error) {
	query := `
		UPDATE orders
		SET status = $1, failure_reason = $2, gateway_reference = $3, updated_at = $4
		WHERE id = $5 AND status = $6`

	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, o.Status, o.FailureReason, o.GatewayReference, o.UpdatedAt, o.ID, from)
	if err != nil {
		return apperrors.Persistence(fmt.Errorf("update order status: %w", err))
	}
	if ct.RowsAffected() == 0 {
		return apperrors.InvalidTransition(string(from), string(o.Status))
	}
	return nil
}

// CompleteWithActivation marks the order paid and activates the account in
// one transaction. The order update is conditional on paid_at being unset;
// when another writer got there first nothing is written and false is
// returned.
func (r *OrderRepository) CompleteWithActivation(ctx context.Context, o *domain.Order, a *domain.Account) (completed bool, err error) {
	orderQuery := `
		UPDATE orders
		SET status = $1, paid_at = $2, subscription_start = $3, subscription_end = $4,
		    gateway_reference = $5, updated_at = $6
		WHERE id = $7 AND status = $8 AND paid_at IS NULL`
	accountQuery := `
		UPDATE accounts
		SET tier = $1, is_active_member = $2, activation_start = $3, activation_expiry = $4, updated_at = $5
		WHERE id = $6`

	ctx, end := database.TraceQuery(ctx, "CompleteOrderWithActivation", orderQuery)
	defer func() { end(err) }()

	err = database.WithTx(ctx, r.db, func(tx database.DBTX) error {
		ct, err := tx.Exec(ctx, orderQuery,
			domain.OrderStatusCompleted,
			o.PaidAt,
			o.SubscriptionStart,
			o.SubscriptionEnd,
			o.GatewayReference,
			o.UpdatedAt,
			o.ID,
			domain.OrderStatusPending,
		)
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return nil
		}

		ct, err = tx.Exec(ctx, accountQuery,
			a.Tier,
			a.IsActiveMember,
			a.ActivationStart,
			a.ActivationExpiry,
			a.UpdatedAt,
			a.ID,
		)
		if err != nil {
			return fmt.Errorf("activate account: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("account", a.ID)
		}
		completed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, err
		}
		return false, apperrors.Persistence(err)
	}
	return completed, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.AccountID,
		&o.PlanType,
		&o.Amount,
		&o.Currency,
		&o.Status,
		&o.PaymentMethod,
		&o.TransactionID,
		&o.CardLastFour,
		&o.CustomerEmail,
		&o.GatewayReference,
		&o.FailureReason,
		&o.PaidAt,
		&o.SubscriptionStart,
		&o.SubscriptionEnd,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
