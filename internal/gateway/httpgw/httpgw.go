// Package httpgw talks to a remote payment processor over JSON/HTTP.
package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/XxvipoxX/ChaosAWS/internal/gateway"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
	"github.com/XxvipoxX/ChaosAWS/pkg/httpclient"
)

const maxResponseBytes = 64 << 10

// Requester sends a request and returns the response; satisfied by
// *httpclient.CircuitBreakerClient.
type Requester interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Provider implements gateway.Provider against a processor exposing
// POST /v1/charges and POST /v1/refunds.
type Provider struct {
	baseURL string
	apiKey  string
	client  Requester
	logger  *slog.Logger
}

// NewProvider creates an HTTP provider. Calls go through a retrying client
// guarded by a circuit breaker.
func NewProvider(baseURL, apiKey string, cfg httpclient.Config, logger *slog.Logger) *Provider {
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(cfg),
		httpclient.DefaultCircuitBreakerConfig("payment-gateway"),
		logger,
	)
	return NewProviderWithRequester(baseURL, apiKey, breaker, logger)
}

// NewProviderWithRequester creates an HTTP provider on top of r.
func NewProviderWithRequester(baseURL, apiKey string, r Requester, logger *slog.Logger) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  r,
		logger:  logger,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "http"
}

type chargeRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Method        string `json:"method"`
	CardNumber    string `json:"card_number,omitempty"`
	Email         string `json:"email"`
	Description   string `json:"description"`
	TransactionID string `json:"transaction_id"`
}

type chargeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	DeclineReason string `json:"decline_reason"`
}

type refundRequest struct {
	ChargeID string `json:"charge_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Charge posts the charge. A 402 or a "declined" status is a decline; any
// other failure means the processor is unavailable.
func (p *Provider) Charge(ctx context.Context, input *gateway.ChargeInput) (*gateway.ChargeResult, error) {
	body := chargeRequest{
		Amount:        input.Amount,
		Currency:      input.Currency,
		Method:        string(input.Method),
		CardNumber:    input.CardNumber,
		Email:         input.Email,
		Description:   input.Description,
		TransactionID: input.TransactionID,
	}

	var out chargeResponse
	status, err := p.post(ctx, "/v1/charges", input.TransactionID, body, &out)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusPaymentRequired || out.Status == "declined":
		reason := out.DeclineReason
		if reason == "" {
			reason = "card declined"
		}
		return &gateway.ChargeResult{Reference: out.ID, DeclineReason: reason}, nil
	case status >= 200 && status < 300 && out.Status == "succeeded":
		return &gateway.ChargeResult{Reference: out.ID, Approved: true}, nil
	default:
		return nil, fmt.Errorf("%w: charge returned status %d (%q)", apperrors.ErrGatewayUnavailable, status, out.Status)
	}
}

// Refund posts a refund for a completed charge.
func (p *Provider) Refund(ctx context.Context, input *gateway.RefundInput) (*gateway.RefundResult, error) {
	body := refundRequest{
		ChargeID: input.Reference,
		Amount:   input.Amount,
		Currency: input.Currency,
	}

	var out refundResponse
	status, err := p.post(ctx, "/v1/refunds", "refund-"+input.TransactionID, body, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 || out.Status != "succeeded" {
		return nil, fmt.Errorf("%w: refund returned status %d (%q)", apperrors.ErrGatewayUnavailable, status, out.Status)
	}
	return &gateway.RefundResult{Reference: out.ID}, nil
}

// post sends body as JSON and decodes the reply into out. Transport errors
// and an open breaker come back as ErrGatewayUnavailable.
func (p *Provider) post(ctx context.Context, path, idempotencyKey string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			p.logger.WarnContext(ctx, "payment gateway circuit open", slog.String("path", path))
		}
		return 0, fmt.Errorf("%w: %w", apperrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %w", apperrors.ErrGatewayUnavailable, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return 0, fmt.Errorf("%w: decode response (status %d): %w", apperrors.ErrGatewayUnavailable, resp.StatusCode, err)
		}
	}
	return resp.StatusCode, nil
}
