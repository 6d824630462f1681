package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/event"
	"github.com/XxvipoxX/ChaosAWS/internal/gateway"
	"github.com/XxvipoxX/ChaosAWS/internal/metrics"
	"github.com/XxvipoxX/ChaosAWS/internal/repository"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
	"github.com/XxvipoxX/ChaosAWS/pkg/pagination"
	"github.com/XxvipoxX/ChaosAWS/pkg/validator"
)

// OrderService implements checkout, payment and the order history.
type OrderService struct {
	orders   repository.OrderRepository
	accounts repository.AccountRepository
	carts    *CartService
	provider gateway.Provider
	producer *event.Producer
	logger   *slog.Logger
	now      Clock
}

// NewOrderService creates a new order service. producer may be nil when
// event publishing is disabled.
func NewOrderService(
	orders repository.OrderRepository,
	accounts repository.AccountRepository,
	carts *CartService,
	prov gateway.Provider,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		accounts: accounts,
		carts:    carts,
		provider: prov,
		producer: producer,
		logger:   logger,
		now:      systemClock,
	}
}

// WithClock replaces the time source.
func (s *OrderService) WithClock(now Clock) *OrderService {
	s.now = now
	return s
}

// CheckoutInput holds the parameters for paying for a plan. When PlanType is
// empty the plan in the account's cart is bought. A non-zero ExpectedAmount
// must equal the server-side total.
type CheckoutInput struct {
	AccountID      string
	PlanType       domain.Tier
	ExpectedAmount int64
	PaymentMethod  domain.PaymentMethod
	CardNumber     string
	CustomerEmail  string
}

// PayInput holds the parameters for retrying payment of a pending order.
type PayInput struct {
	AccountID  string
	OrderID    string
	CardNumber string
}

// Checkout creates a pending order for the plan, priced from the catalog
// with tax, and charges it. A declined charge returns the failed order with
// a PAYMENT_DECLINED error. An unreachable gateway returns the still
// pending order with an error wrapping ErrGatewayUnavailable.
func (s *OrderService) Checkout(ctx context.Context, input CheckoutInput) (*domain.Order, error) {
	account, err := s.accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	cart, err := s.checkoutCart(ctx, input)
	if err != nil {
		return nil, err
	}
	summary := cart.Summary(s.carts.TaxBasisPoints())
	if input.ExpectedAmount != 0 && input.ExpectedAmount != summary.Total {
		return nil, apperrors.InvalidInput(fmt.Sprintf("amount %s does not match the current price %s",
			domain.FormatAmount(input.ExpectedAmount), domain.FormatAmount(summary.Total)))
	}

	cardLast4 := ""
	if input.PaymentMethod.IsCard() {
		if !validator.IsCardNumber(input.CardNumber) {
			return nil, apperrors.InvalidInput("card number must be 13 to 19 digits")
		}
		cardLast4, _ = cardLastFour(input.CardNumber)
	}

	email := strings.TrimSpace(input.CustomerEmail)
	if email == "" {
		email = account.Email
	}

	order, err := domain.NewOrder(domain.NewOrderParams{
		AccountID:     account.ID,
		PlanType:      cart.Item.PlanType,
		Amount:        summary.Total,
		Currency:      domain.DefaultCurrency,
		PaymentMethod: input.PaymentMethod,
		CardLastFour:  cardLast4,
		CustomerEmail: email,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("account_id", account.ID),
		slog.String("plan", string(order.PlanType)),
		slog.Int64("amount", order.Amount),
		slog.String("transaction_id", order.TransactionID),
	)

	return s.process(ctx, order, account, input.CardNumber)
}

func (s *OrderService) checkoutCart(ctx context.Context, input CheckoutInput) (domain.Cart, error) {
	if input.PlanType != "" {
		item, err := s.carts.Price(input.PlanType)
		if err != nil {
			return domain.Cart{}, err
		}
		var cart domain.Cart
		cart.Put(item)
		return cart, nil
	}

	cart, err := s.carts.Cart(ctx, input.AccountID)
	if err != nil {
		return domain.Cart{}, err
	}
	if cart.IsEmpty() {
		return domain.Cart{}, apperrors.InvalidInput("your cart is empty")
	}
	return cart, nil
}

// Pay charges a pending order again, typically after the gateway was
// unavailable. Paying an already completed order returns it unchanged.
func (s *OrderService) Pay(ctx context.Context, input PayInput) (*domain.Order, error) {
	order, err := s.Get(ctx, input.AccountID, input.OrderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case domain.OrderStatusCompleted:
		return order, nil
	case domain.OrderStatusPending:
	default:
		return nil, apperrors.InvalidTransition(string(order.Status), string(domain.OrderStatusCompleted))
	}
	if order.PaymentMethod.IsCard() && !validator.IsCardNumber(input.CardNumber) {
		return nil, apperrors.InvalidInput("card number must be 13 to 19 digits")
	}

	account, err := s.accounts.GetByID(ctx, order.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return s.process(ctx, order, account, input.CardNumber)
}

// process charges a pending order and records the outcome.
func (s *OrderService) process(ctx context.Context, order *domain.Order, account *domain.Account, cardNumber string) (*domain.Order, error) {
	result, err := s.provider.Charge(ctx, &gateway.ChargeInput{
		OrderID:       order.ID,
		TransactionID: order.TransactionID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		Method:        order.PaymentMethod,
		CardNumber:    validator.NormalizeCardNumber(cardNumber),
		Email:         order.CustomerEmail,
		Description:   order.PlanName(),
	})
	if err != nil {
		metrics.Orders.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		s.logger.ErrorContext(ctx, "payment gateway unavailable",
			slog.String("order_id", order.ID),
			slog.String("provider", s.provider.Name()),
			slog.String("error", err.Error()),
		)
		return order, fmt.Errorf("charge order %s: %w", order.ID, err)
	}

	if !result.Approved {
		return s.decline(ctx, order, result)
	}
	return s.complete(ctx, order, account, result.Reference)
}

func (s *OrderService) decline(ctx context.Context, order *domain.Order, result *gateway.ChargeResult) (*domain.Order, error) {
	order.GatewayReference = result.Reference
	if err := order.Fail(result.DeclineReason, s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, order, domain.OrderStatusPending); err != nil {
		return nil, fmt.Errorf("mark order failed: %w", err)
	}

	metrics.Orders.WithLabelValues(metrics.OutcomeFailed).Inc()
	if s.producer != nil {
		if err := s.producer.PublishOrderFailed(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.failed event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "payment declined",
		slog.String("order_id", order.ID),
		slog.String("reason", result.DeclineReason),
	)
	return order, apperrors.Declined(result.DeclineReason)
}

// complete records an approved charge: the order is completed and the
// account activated in one transaction, then the cart is emptied.
func (s *OrderService) complete(ctx context.Context, order *domain.Order, account *domain.Account, reference string) (*domain.Order, error) {
	now := s.now()
	order.GatewayReference = reference
	changed, err := order.Complete(now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}
	account.Activate(order.PlanType, domain.SubscriptionDays, now)

	applied, err := s.orders.CompleteWithActivation(ctx, order, account)
	if err != nil {
		s.logger.ErrorContext(ctx, "charged order could not be recorded",
			slog.String("order_id", order.ID),
			slog.String("transaction_id", order.TransactionID),
			slog.String("gateway_reference", reference),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("complete order: %w", err)
	}
	if !applied {
		stored, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("reload order: %w", err)
		}
		return stored, nil
	}

	if err := s.carts.Clear(ctx, account.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear cart after payment",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	metrics.Orders.WithLabelValues(metrics.OutcomeCompleted).Inc()
	metrics.Activations.WithLabelValues(string(account.Tier)).Inc()
	if s.producer != nil {
		if err := s.producer.PublishOrderCompleted(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.completed event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.producer.PublishMembershipActivated(ctx, account, order.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish membership.activated event",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order completed",
		slog.String("order_id", order.ID),
		slog.String("account_id", account.ID),
		slog.String("tier", string(account.Tier)),
	)
	return order, nil
}

// Cancel abandons a pending order.
func (s *OrderService) Cancel(ctx context.Context, accountID, orderID string) (*domain.Order, error) {
	order, err := s.Get(ctx, accountID, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if err := order.Cancel(s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, order, from); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	metrics.Orders.WithLabelValues(metrics.OutcomeCancelled).Inc()
	s.logger.InfoContext(ctx, "order cancelled", slog.String("order_id", order.ID))
	return order, nil
}

// Refund returns the money of a completed order through the gateway. The
// account's membership is left as it is.
func (s *OrderService) Refund(ctx context.Context, accountID, orderID string) (*domain.Order, error) {
	order, err := s.Get(ctx, accountID, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if !domain.CanTransition(from, domain.OrderStatusRefunded) {
		return nil, apperrors.InvalidTransition(string(from), string(domain.OrderStatusRefunded))
	}

	if _, err := s.provider.Refund(ctx, &gateway.RefundInput{
		Reference:     order.GatewayReference,
		TransactionID: order.TransactionID,
		Amount:        order.Amount,
		Currency:      order.Currency,
	}); err != nil {
		metrics.Orders.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		return nil, fmt.Errorf("refund order %s: %w", order.ID, err)
	}

	if err := order.Refund(s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, order, from); err != nil {
		s.logger.ErrorContext(ctx, "refunded order could not be recorded",
			slog.String("order_id", order.ID),
			slog.String("transaction_id", order.TransactionID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("refund order: %w", err)
	}

	metrics.Orders.WithLabelValues(metrics.OutcomeRefunded).Inc()
	if s.producer != nil {
		if err := s.producer.PublishOrderRefunded(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.refunded event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order refunded", slog.String("order_id", order.ID))
	return order, nil
}

// Get returns an order owned by accountID. Orders of other accounts read as
// not found.
func (s *OrderService) Get(ctx context.Context, accountID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.AccountID != accountID {
		return nil, apperrors.NotFound("order", orderID)
	}
	return order, nil
}

// List returns one page of the account's orders, newest first.
func (s *OrderService) List(ctx context.Context, accountID string, page pagination.Params) (pagination.Result[domain.Order], error) {
	orders, total, err := s.orders.ListByAccount(ctx, accountID, page.Offset(), page.PerPage)
	if err != nil {
		return pagination.Result[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return pagination.NewResult(orders, total, page), nil
}
