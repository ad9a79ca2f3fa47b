package pricecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/cheaphours/core/model"
)

// Redis stores prices as JSON strings with a TTL.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedis connects to the configured Redis server lazily.
func NewRedis(cfg Config) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.RedisDB,
	})
	return NewRedisWithClient(client, cfg.KeyPrefix, cfg.TTL())
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(date time.Time) string {
	return r.prefix + model.DateKey(date)
}

func (r *Redis) Get(ctx context.Context, date time.Time) (model.DailyPrices, bool, error) {
	raw, err := r.client.Get(ctx, r.key(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.DailyPrices{}, false, nil
	}
	if err != nil {
		return model.DailyPrices{}, false, fmt.Errorf("redis get: %w", err)
	}
	var prices model.DailyPrices
	if err := json.Unmarshal(raw, &prices); err != nil {
		return model.DailyPrices{}, false, fmt.Errorf("decode cached prices: %w", err)
	}
	return prices, true, nil
}

func (r *Redis) Set(ctx context.Context, prices model.DailyPrices) error {
	raw, err := json.Marshal(prices)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(prices.Date), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
