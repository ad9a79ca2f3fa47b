// Package pricecache stores complete days of hourly prices so repeated
// regenerations do not hit the price feed.
package pricecache

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/cheaphours/core/model"
)

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache keeps DailyPrices by calendar date.
type Cache interface {
	Get(ctx context.Context, date time.Time) (model.DailyPrices, bool, error)
	Set(ctx context.Context, prices model.DailyPrices) error
}

// Config selects and tunes the cache backend.
type Config struct {
	Backend    string `json:"backend"`
	TTLMinutes int    `json:"ttl_minutes"`
	RedisAddr  string `json:"redis_addr"`
	RedisDB    int    `json:"redis_db"`
	Password   string `json:"password"`
	KeyPrefix  string `json:"key_prefix"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.TTLMinutes <= 0 {
		c.TTLMinutes = 36 * 60
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "cheaphours:prices:"
	}
	if c.Backend == BackendRedis && c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone, BackendMemory, BackendRedis:
		return nil
	}
	return fmt.Errorf("unknown price cache backend %s", c.Backend)
}

func (c Config) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// New builds the configured cache. BackendNone returns nil.
func New(cfg Config) (Cache, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(cfg.TTL()), nil
	case BackendRedis:
		return NewRedis(cfg), nil
	}
	return nil, nil
}
