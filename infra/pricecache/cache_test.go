package pricecache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cheaphours/core/model"
)

var day = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

func samplePrices() model.DailyPrices {
	return model.DailyPrices{Date: day, Prices: []model.HourlyPrice{{Hour: 0, Price: 0.11}, {Hour: 1, Price: 0.09}}}
}

func TestMemoryCacheExpires(t *testing.T) {
	m := NewMemory(time.Hour)
	now := day
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := m.Get(ctx, day)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, samplePrices()))
	got, ok, err := m.Get(ctx, day)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, got.Prices, 2)

	now = now.Add(2 * time.Hour)
	_, ok, _ = m.Get(ctx, day)
	assert.False(t, ok)
}

func TestRedisCacheGetSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisWithClient(db, "test:", time.Hour)
	ctx := context.Background()

	raw, err := json.Marshal(samplePrices())
	require.NoError(t, err)
	mock.ExpectSet("test:2024-05-02", raw, time.Hour).SetVal("OK")
	require.NoError(t, c.Set(ctx, samplePrices()))

	mock.ExpectGet("test:2024-05-02").SetVal(string(raw))
	got, ok, err := c.Get(ctx, day)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.09, got.Prices[1].Price, 1e-9)

	mock.ExpectGet("test:2024-05-03").RedisNil()
	_, ok, err = c.Get(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectGet("test:2024-05-04").SetErr(errors.New("connection refused"))
	_, _, err = c.Get(ctx, day.AddDate(0, 0, 2))
	assert.Error(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations not met: %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	c, err := New(Config{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, c)
	c, err = New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
	c, err = New(Config{Backend: BackendRedis})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, c)
	_, err = New(Config{Backend: "memcached"})
	assert.Error(t, err)
}
