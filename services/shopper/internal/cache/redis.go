package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/domain"
)

const redisKeyPrefix = "shopper:"

// RedisStore keeps the basket at shopper:<profile>:basket.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed cache for one profile.
func NewRedisStore(client *redis.Client, profile string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    redisKeyPrefix + profile + ":" + Key,
	}
}

func (s *RedisStore) Load(ctx context.Context) ([]domain.BasketItem, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.BasketItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get basket cache: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, items []domain.BasketItem) error {
	data, err := encode(items)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set basket cache: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del basket cache: %w", err)
	}
	return nil
}
