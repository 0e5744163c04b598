package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"garmentpos/backend/internal/domain"
)

type RedisQuoteCache struct {
	client *redis.Client
}

func NewRedisQuoteCache(addr string, password string, db int) *RedisQuoteCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisQuoteCache{client: client}
}

func (c *RedisQuoteCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisQuoteCache) Close() error {
	return c.client.Close()
}

func (c *RedisQuoteCache) Get(ctx context.Context, key string) (*domain.VariantQuote, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var quote domain.VariantQuote
	if err := json.Unmarshal([]byte(val), &quote); err != nil {
		return nil, false, err
	}
	return &quote, true, nil
}

func (c *RedisQuoteCache) Set(ctx context.Context, key string, quote *domain.VariantQuote, ttl time.Duration) error {
	if quote == nil {
		return nil
	}
	payload, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
