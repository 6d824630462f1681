package httpgw

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/gateway"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
	"github.com/XxvipoxX/ChaosAWS/pkg/httpclient"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastConfig() httpclient.Config {
	return httpclient.Config{
		Timeout:      2 * time.Second,
		MaxRetries:   1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}
}

func sampleCharge() *gateway.ChargeInput {
	return &gateway.ChargeInput{
		OrderID:       "order-1",
		TransactionID: "0123456789ABCDEF",
		Amount:        2319,
		Currency:      "USD",
		Method:        domain.PaymentMethodCreditCard,
		CardNumber:    "4242424242424242",
		Email:         "ana@example.com",
	}
}

// ---------------------------------------------------------------------------
// Charge
// ---------------------------------------------------------------------------

func TestProvider_Charge_Approved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "0123456789ABCDEF", r.Header.Get("Idempotency-Key"))

		var body chargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(2319), body.Amount)
		assert.Equal(t, "credit_card", body.Method)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ch_1","status":"succeeded"}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "sk_test", fastConfig(), newTestLogger())
	res, err := p.Charge(context.Background(), sampleCharge())

	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, "ch_1", res.Reference)
}

func TestProvider_Charge_Declined402(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"id":"ch_2","status":"declined","decline_reason":"insufficient funds"}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "", fastConfig(), newTestLogger())
	res, err := p.Charge(context.Background(), sampleCharge())

	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, "insufficient funds", res.DeclineReason)
}

func TestProvider_Charge_ServerErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "", fastConfig(), newTestLogger())
	_, err := p.Charge(context.Background(), sampleCharge())

	assert.ErrorIs(t, err, apperrors.ErrGatewayUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "one retry expected")
}

func TestProvider_Charge_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProvider(url, "", fastConfig(), newTestLogger())
	_, err := p.Charge(context.Background(), sampleCharge())

	assert.ErrorIs(t, err, apperrors.ErrGatewayUnavailable)
}

func TestProvider_Charge_GarbledBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "", fastConfig(), newTestLogger())
	_, err := p.Charge(context.Background(), sampleCharge())

	assert.ErrorIs(t, err, apperrors.ErrGatewayUnavailable)
}

// ---------------------------------------------------------------------------
// Refund
// ---------------------------------------------------------------------------

func TestProvider_Refund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		assert.Equal(t, "refund-0123456789ABCDEF", r.Header.Get("Idempotency-Key"))

		var body refundRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ch_1", body.ChargeID)

		_, _ = w.Write([]byte(`{"id":"re_1","status":"succeeded"}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL+"/", "", fastConfig(), newTestLogger())
	res, err := p.Refund(context.Background(), &gateway.RefundInput{
		Reference: "ch_1", TransactionID: "0123456789ABCDEF", Amount: 2319, Currency: "USD",
	})

	require.NoError(t, err)
	assert.Equal(t, "re_1", res.Reference)
}

func TestProvider_Refund_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "", fastConfig(), newTestLogger())
	_, err := p.Refund(context.Background(), &gateway.RefundInput{Reference: "ch_1"})

	assert.ErrorIs(t, err, apperrors.ErrGatewayUnavailable)
}
