package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// OrderStatus is the lifecycle state of a payment order.
type OrderStatus string

// Order statuses.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// ValidOrderStatuses returns every order status.
func ValidOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusCompleted,
		OrderStatusFailed,
		OrderStatusCancelled,
		OrderStatusRefunded,
	}
}

// orderTransitions lists the allowed moves. Failed, cancelled and refunded
// are terminal.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {
		OrderStatusCompleted: true,
		OrderStatusFailed:    true,
		OrderStatusCancelled: true,
	},
	OrderStatusCompleted: {
		OrderStatusRefunded: true,
	},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	return orderTransitions[from][to]
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

// Payment methods.
const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodPayPal     PaymentMethod = "paypal"
	PaymentMethodApplePay   PaymentMethod = "apple_pay"
	PaymentMethodGooglePay  PaymentMethod = "google_pay"
)

// ValidPaymentMethods returns every accepted payment method.
func ValidPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCreditCard,
		PaymentMethodDebitCard,
		PaymentMethodPayPal,
		PaymentMethodApplePay,
		PaymentMethodGooglePay,
	}
}

// IsValidPaymentMethod reports whether m is accepted.
func IsValidPaymentMethod(m PaymentMethod) bool {
	for _, v := range ValidPaymentMethods() {
		if v == m {
			return true
		}
	}
	return false
}

// IsCard reports whether m requires a card number.
func (m PaymentMethod) IsCard() bool {
	return m == PaymentMethodCreditCard || m == PaymentMethodDebitCard
}

// transactionIDLength is the number of characters in a transaction id.
const transactionIDLength = 16

// NewTransactionID returns an upper-case random reference for a payment
// attempt.
func NewTransactionID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:transactionIDLength]
}

// Order is one attempt to buy a membership plan.
type Order struct {
	ID               string        `json:"id"`
	AccountID        string        `json:"account_id"`
	PlanType         Tier          `json:"plan_type"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Status           OrderStatus   `json:"status"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	TransactionID    string        `json:"transaction_id"`
	CardLastFour     string        `json:"card_last_four,omitempty"`
	CustomerEmail    string        `json:"customer_email"`
	GatewayReference string        `json:"gateway_reference,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty"`

	PaidAt            *time.Time `json:"paid_at,omitempty"`
	SubscriptionStart *time.Time `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time `json:"subscription_end,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrderParams carries the inputs of order creation.
type NewOrderParams struct {
	AccountID     string
	PlanType      Tier
	Amount        int64
	Currency      string
	PaymentMethod PaymentMethod
	CardLastFour  string
	CustomerEmail string
}

// NewOrder creates a pending order with its transaction id already assigned.
func NewOrder(p NewOrderParams, now time.Time) (*Order, error) {
	if !p.PlanType.IsPaid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("plan %q cannot be purchased", p.PlanType))
	}
	if p.Amount <= 0 {
		return nil, apperrors.InvalidInput("amount must be positive")
	}
	if !IsValidPaymentMethod(p.PaymentMethod) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported payment method %q", p.PaymentMethod))
	}
	if p.CustomerEmail == "" {
		return nil, apperrors.InvalidInput("customer email is required")
	}
	return &Order{
		ID:            uuid.NewString(),
		AccountID:     p.AccountID,
		PlanType:      p.PlanType,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        OrderStatusPending,
		PaymentMethod: p.PaymentMethod,
		TransactionID: NewTransactionID(),
		CardLastFour:  p.CardLastFour,
		CustomerEmail: p.CustomerEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (o *Order) transition(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return apperrors.InvalidTransition(string(o.Status), string(to))
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// Complete marks the order paid. The payment timestamps and the subscription
// window are set only the first time; completing an already completed order
// changes nothing and reports false. Completing a failed, cancelled or
// refunded order is an invalid transition.
func (o *Order) Complete(now time.Time) (bool, error) {
	if o.Status == OrderStatusCompleted {
		return false, nil
	}
	if err := o.transition(OrderStatusCompleted, now); err != nil {
		return false, err
	}
	if o.PaidAt == nil {
		paid, start, end := now, now, now.Add(SubscriptionPeriod())
		o.PaidAt = &paid
		o.SubscriptionStart = &start
		o.SubscriptionEnd = &end
	}
	return true, nil
}

// Fail records a declined payment.
func (o *Order) Fail(reason string, now time.Time) error {
	if err := o.transition(OrderStatusFailed, now); err != nil {
		return err
	}
	o.FailureReason = reason
	return nil
}

// Cancel abandons a pending order.
func (o *Order) Cancel(now time.Time) error {
	return o.transition(OrderStatusCancelled, now)
}

// Refund reverses a completed order. The subscription window is kept as a
// record of what was paid for.
func (o *Order) Refund(now time.Time) error {
	return o.transition(OrderStatusRefunded, now)
}

// IsActive reports whether the subscription bought by this order is running.
func (o *Order) IsActive(now time.Time) bool {
	if o.SubscriptionEnd != nil {
		return now.Before(*o.SubscriptionEnd)
	}
	return o.Status == OrderStatusCompleted
}

// PlanName is the display name of the purchased plan.
func (o *Order) PlanName() string {
	return PlanName(o.PlanType)
}
