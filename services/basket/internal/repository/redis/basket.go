package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/andrewbyteforge/pricecomparison/pkg/errors"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/domain"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/repository"
)

const (
	keyPrefix  = "basket:"
	maxRetries = 5
)

// BasketRepository implements repository.BasketRepository using one Redis
// hash per user, keyed by item ID.
type BasketRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBasketRepository creates a new Redis-backed basket repository.
func NewBasketRepository(client *redis.Client, ttl time.Duration) *BasketRepository {
	return &BasketRepository{
		client: client,
		ttl:    ttl,
	}
}

var _ repository.BasketRepository = (*BasketRepository)(nil)

// List returns the user's items, oldest first.
func (r *BasketRepository) List(ctx context.Context, userID string) ([]domain.Item, error) {
	fields, err := r.client.HGetAll(ctx, keyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall basket: %w", err)
	}

	items := make([]domain.Item, 0, len(fields))
	for id, raw := range fields {
		var item domain.Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("unmarshal basket item %s: %w", id, err)
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return items, nil
}

// Add stores an item. The size check and the write run in one optimistic
// transaction, retried when another writer touches the basket first.
func (r *BasketRepository) Add(ctx context.Context, userID string, item domain.Item, maxItems int) error {
	key := keyPrefix + userID

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal basket item: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		n, err := tx.HLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis hlen basket: %w", err)
		}
		exists, err := tx.HExists(ctx, key, item.ID).Result()
		if err != nil {
			return fmt.Errorf("redis hexists basket: %w", err)
		}
		if !exists && int(n) >= maxItems {
			return repository.ErrBasketFull
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, item.ID, data)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, repository.ErrBasketFull) {
			return fmt.Errorf("redis add basket item: %w", err)
		}
		return err
	}

	return apperrors.Conflict("basket modified concurrently, please retry")
}

// Remove deletes one item from the user's basket.
func (r *BasketRepository) Remove(ctx context.Context, userID, itemID string) error {
	n, err := r.client.HDel(ctx, keyPrefix+userID, itemID).Result()
	if err != nil {
		return fmt.Errorf("redis hdel basket item: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("basket item", itemID)
	}
	return nil
}

// Clear deletes the user's basket and reports how many items it held.
func (r *BasketRepository) Clear(ctx context.Context, userID string) (int, error) {
	key := keyPrefix + userID

	var lenCmd *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lenCmd = pipe.HLen(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis clear basket: %w", err)
	}
	return int(lenCmd.Val()), nil
}

// Ping checks connectivity for readiness probes.
func (r *BasketRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
