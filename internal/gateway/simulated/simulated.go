package simulated

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/XxvipoxX/ChaosAWS/internal/gateway"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// DeclineCardNumber is a test card the simulator always declines.
const DeclineCardNumber = "4000000000000002"

// Provider is a payment processor stand-in that approves every charge except
// those made with DeclineCardNumber. It is intended for development and
// testing purposes.
type Provider struct{}

// NewProvider creates a new simulated payment provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "simulated"
}

// Charge approves the payment.
func (p *Provider) Charge(ctx context.Context, input *gateway.ChargeInput) (*gateway.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrGatewayUnavailable, err)
	}
	if input.CardNumber == DeclineCardNumber {
		return &gateway.ChargeResult{
			Reference:     "sim_pay_" + uuid.NewString(),
			DeclineReason: "card declined",
		}, nil
	}
	return &gateway.ChargeResult{
		Reference: "sim_pay_" + uuid.NewString(),
		Approved:  true,
	}, nil
}

// Refund always succeeds.
func (p *Provider) Refund(ctx context.Context, _ *gateway.RefundInput) (*gateway.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrGatewayUnavailable, err)
	}
	return &gateway.RefundResult{Reference: "sim_ref_" + uuid.NewString()}, nil
}
