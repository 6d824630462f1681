package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/service"
	"github.com/XxvipoxX/ChaosAWS/pkg/httputil"
	"github.com/XxvipoxX/ChaosAWS/pkg/middleware"
	"github.com/XxvipoxX/ChaosAWS/pkg/validator"
)

// CartHandler handles the plan cart.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

// AddToCartRequest is the JSON request body for putting a plan in the cart.
type AddToCartRequest struct {
	PlanType string `json:"plan_type" validate:"required,oneof=standard ultimate"`
}

// Get handles GET /api/v1/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Get(r.Context(), middleware.AccountIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary)
}

// Add handles POST /api/v1/cart/items
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	summary, err := h.service.Add(r.Context(), middleware.AccountIDFromContext(r.Context()), domain.Tier(req.PlanType))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary)
}

// Remove handles DELETE /api/v1/cart/items/{plan}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	plan := domain.Tier(chi.URLParam(r, "plan"))
	summary, err := h.service.Remove(r.Context(), middleware.AccountIDFromContext(r.Context()), plan)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, summary)
}

// Clear handles DELETE /api/v1/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), middleware.AccountIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
