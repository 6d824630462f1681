package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/service"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
	"github.com/XxvipoxX/ChaosAWS/pkg/httputil"
	"github.com/XxvipoxX/ChaosAWS/pkg/middleware"
	"github.com/XxvipoxX/ChaosAWS/pkg/pagination"
	"github.com/XxvipoxX/ChaosAWS/pkg/validator"
)

// OrderHandler handles checkout and the order history.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// CheckoutRequest is the JSON request body for paying for a plan. Without
// plan_type the plan in the cart is bought. amount, when sent, must match
// the current price including tax.
type CheckoutRequest struct {
	PlanType      string `json:"plan_type" validate:"omitempty,oneof=standard ultimate"`
	Amount        string `json:"amount" validate:"omitempty,max=16"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=credit_card debit_card paypal apple_pay google_pay"`
	CardNumber    string `json:"card_number" validate:"required_if=PaymentMethod credit_card,required_if=PaymentMethod debit_card,omitempty,cardnumber"`
	Email         string `json:"email" validate:"omitempty,email"`
}

// PayRequest is the JSON request body for retrying a pending order.
type PayRequest struct {
	CardNumber string `json:"card_number" validate:"omitempty,cardnumber"`
}

// Checkout handles POST /api/v1/checkout
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	var expected int64
	if req.Amount != "" {
		amount, err := domain.ParseAmount(req.Amount)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("amount must be a decimal with at most two places"), h.logger)
			return
		}
		expected = amount
	}

	order, err := h.service.Checkout(r.Context(), service.CheckoutInput{
		AccountID:      middleware.AccountIDFromContext(r.Context()),
		PlanType:       domain.Tier(req.PlanType),
		ExpectedAmount: expected,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		CardNumber:     req.CardNumber,
		CustomerEmail:  req.Email,
	})
	if err != nil {
		h.writePaymentError(w, r, order, err)
		return
	}

	httputil.WriteData(w, http.StatusCreated, order)
}

// List handles GET /api/v1/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), middleware.AccountIDFromContext(r.Context()), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), middleware.AccountIDFromContext(r.Context()), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// Pay handles POST /api/v1/orders/{id}/pay
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req PayRequest
	if r.ContentLength != 0 {
		if err := validator.DecodeAndValidate(r, &req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
	}

	order, err := h.service.Pay(r.Context(), service.PayInput{
		AccountID:  middleware.AccountIDFromContext(r.Context()),
		OrderID:    id.String(),
		CardNumber: req.CardNumber,
	})
	if err != nil {
		h.writePaymentError(w, r, order, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// Cancel handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Cancel(r.Context(), middleware.AccountIDFromContext(r.Context()), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// Refund handles POST /api/v1/orders/{id}/refund
func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Refund(r.Context(), middleware.AccountIDFromContext(r.Context()), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// writePaymentError reports a failed payment. The order id travels in the
// Location header so the client can return to the payment step.
func (h *OrderHandler) writePaymentError(w http.ResponseWriter, r *http.Request, order *domain.Order, err error) {
	if order != nil {
		w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	}
	httputil.WriteError(w, r, err, h.logger)
}
