// Package gateway defines the contract with the external payment processor.
package gateway

import (
	"context"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
)

// ChargeInput holds the parameters for charging a membership order.
type ChargeInput struct {
	OrderID       string
	TransactionID string
	Amount        int64
	Currency      string
	Method        domain.PaymentMethod
	CardNumber    string
	Email         string
	Description   string
}

// ChargeResult holds the processor's answer. A declined charge is a result,
// not an error.
type ChargeResult struct {
	Reference     string
	Approved      bool
	DeclineReason string
}

// RefundInput holds the parameters for refunding a completed charge.
type RefundInput struct {
	Reference     string
	TransactionID string
	Amount        int64
	Currency      string
}

// RefundResult holds the processor's refund reference.
type RefundResult struct {
	Reference string
}

// Provider charges and refunds through a payment processor. Errors mean the
// processor could not be reached or gave no usable answer; they wrap
// errors.ErrGatewayUnavailable.
type Provider interface {
	// Name returns the provider name (e.g. "simulated", "http").
	Name() string

	// Charge asks the processor to take the payment.
	Charge(ctx context.Context, input *ChargeInput) (*ChargeResult, error)

	// Refund returns the money of a completed charge.
	Refund(ctx context.Context, input *RefundInput) (*RefundResult, error)
}
