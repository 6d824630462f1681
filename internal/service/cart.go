package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/repository"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

// CartService implements the single-slot plan cart.
type CartService struct {
	store          repository.CartStore
	prices         map[domain.Tier]int64
	taxBasisPoints int64
	logger         *slog.Logger
}

// NewCartService creates a new cart service. prices is the server-side plan
// catalog in cents.
func NewCartService(
	store repository.CartStore,
	prices map[domain.Tier]int64,
	taxBasisPoints int64,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		store:          store,
		prices:         prices,
		taxBasisPoints: taxBasisPoints,
		logger:         logger,
	}
}

// Price returns the catalog item for plan. Free and unknown plans cannot be
// bought.
func (s *CartService) Price(plan domain.Tier) (domain.CartItem, error) {
	if !plan.IsPaid() {
		return domain.CartItem{}, apperrors.InvalidInput(fmt.Sprintf("plan %q cannot be purchased", plan))
	}
	price, ok := s.prices[plan]
	if !ok || price <= 0 {
		return domain.CartItem{}, apperrors.InvalidInput(fmt.Sprintf("plan %q has no price", plan))
	}
	return domain.NewCartItem(plan, price), nil
}

// TaxBasisPoints returns the tax rate applied to cart totals.
func (s *CartService) TaxBasisPoints() int64 {
	return s.taxBasisPoints
}

// Cart returns the raw cart of an account.
func (s *CartService) Cart(ctx context.Context, accountID string) (domain.Cart, error) {
	cart, err := s.store.Get(ctx, accountID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// Get returns the priced cart of an account.
func (s *CartService) Get(ctx context.Context, accountID string) (domain.CartSummary, error) {
	cart, err := s.Cart(ctx, accountID)
	if err != nil {
		return domain.CartSummary{}, err
	}
	return cart.Summary(s.taxBasisPoints), nil
}

// Add puts plan in the cart, replacing whatever was there.
func (s *CartService) Add(ctx context.Context, accountID string, plan domain.Tier) (domain.CartSummary, error) {
	item, err := s.Price(plan)
	if err != nil {
		return domain.CartSummary{}, err
	}

	var cart domain.Cart
	cart.Put(item)
	if err := s.store.Save(ctx, accountID, cart); err != nil {
		return domain.CartSummary{}, fmt.Errorf("save cart: %w", err)
	}

	s.logger.InfoContext(ctx, "plan added to cart",
		slog.String("account_id", accountID),
		slog.String("plan", string(plan)),
	)
	return cart.Summary(s.taxBasisPoints), nil
}

// Remove takes plan out of the cart. Removing a plan the cart does not hold
// changes nothing.
func (s *CartService) Remove(ctx context.Context, accountID string, plan domain.Tier) (domain.CartSummary, error) {
	cart, err := s.Cart(ctx, accountID)
	if err != nil {
		return domain.CartSummary{}, err
	}
	if !cart.Remove(plan) {
		return cart.Summary(s.taxBasisPoints), nil
	}
	if err := s.store.Save(ctx, accountID, cart); err != nil {
		return domain.CartSummary{}, fmt.Errorf("save cart: %w", err)
	}
	return cart.Summary(s.taxBasisPoints), nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, accountID string) error {
	if err := s.store.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
