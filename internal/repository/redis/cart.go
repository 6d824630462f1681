package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	apperrors "github.com/XxvipoxX/ChaosAWS/pkg/errors"
)

const keyPrefix = "chaos:cart:"

// CartStore implements repository.CartStore using Redis.
type CartStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCartStore creates a new Redis-backed cart store.
func NewCartStore(client redis.Cmdable, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

// Get returns the account's cart. A missing key is an empty cart.
func (s *CartStore) Get(ctx context.Context, accountID string) (domain.Cart, error) {
	data, err := s.client.Get(ctx, keyPrefix+accountID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Cart{}, nil
		}
		return domain.Cart{}, apperrors.Persistence(fmt.Errorf("redis get cart: %w", err))
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("unmarshal cart: %w", err)
	}
	return cart, nil
}

// Save stores the cart with the configured TTL. An empty cart deletes the key.
func (s *CartStore) Save(ctx context.Context, accountID string, cart domain.Cart) error {
	if cart.IsEmpty() {
		return s.Delete(ctx, accountID)
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+accountID, data, s.ttl).Err(); err != nil {
		return apperrors.Persistence(fmt.Errorf("redis set cart: %w", err))
	}
	return nil
}

// Delete removes the account's cart.
func (s *CartStore) Delete(ctx context.Context, accountID string) error {
	if err := s.client.Del(ctx, keyPrefix+accountID).Err(); err != nil {
		return apperrors.Persistence(fmt.Errorf("redis del cart: %w", err))
	}
	return nil
}
