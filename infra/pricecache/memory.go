package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/cheaphours/core/model"
)

type memoryEntry struct {
	prices  model.DailyPrices
	expires time.Time
}

// Memory is an in-process Cache with per-entry expiry.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty Memory cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, date time.Time) (model.DailyPrices, bool, error) {
	key := model.DateKey(date)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return model.DailyPrices{}, false, nil
	}
	if m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return model.DailyPrices{}, false, nil
	}
	return e.prices, true, nil
}

func (m *Memory) Set(_ context.Context, prices model.DailyPrices) error {
	m.mu.Lock()
	m.entries[model.DateKey(prices.Date)] = memoryEntry{prices: prices, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}
