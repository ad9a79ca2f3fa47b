package pvpc

import (
	"context"
	"time"

	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/schedule"
	"github.com/kilianp07/cheaphours/infra/logger"
	"github.com/kilianp07/cheaphours/infra/pricecache"
	"github.com/kilianp07/cheaphours/internal/eventbus"
)

// CachedSource serves complete days from a cache and falls back to the
// wrapped source. Every lookup is published as a PriceFetchEvent.
type CachedSource struct {
	src   schedule.PriceSource
	cache pricecache.Cache
	pub   eventbus.Publisher[events.Event]
	log   logger.Logger
	loc   *time.Location
	now   func() time.Time
}

// NewCachedSource wraps src. cache and pub may be nil.
func NewCachedSource(src schedule.PriceSource, cache pricecache.Cache, pub eventbus.Publisher[events.Event], loc *time.Location) *CachedSource {
	if loc == nil {
		loc = time.Local
	}
	return &CachedSource{src: src, cache: cache, pub: pub, log: logger.New("pvpc-cache"), loc: loc, now: time.Now}
}

func (s *CachedSource) today() time.Time { return model.Day(s.now().In(s.loc)) }

func (s *CachedSource) Today(ctx context.Context) (model.DailyPrices, error) {
	return s.lookup(ctx, s.today(), s.src.Today)
}

func (s *CachedSource) Tomorrow(ctx context.Context) (model.DailyPrices, error) {
	return s.lookup(ctx, s.today().AddDate(0, 0, 1), s.src.Tomorrow)
}

func (s *CachedSource) ForDate(ctx context.Context, date time.Time) (model.DailyPrices, error) {
	date = model.DateIn(date, s.loc)
	return s.lookup(ctx, date, func(ctx context.Context) (model.DailyPrices, error) {
		return s.src.ForDate(ctx, date)
	})
}

func (s *CachedSource) lookup(ctx context.Context, date time.Time, fetch func(context.Context) (model.DailyPrices, error)) (model.DailyPrices, error) {
	start := time.Now()
	if s.cache != nil {
		prices, ok, err := s.cache.Get(ctx, date)
		if err != nil {
			s.log.Warnf("price cache read for %s: %v", model.DateKey(date), err)
		} else if ok {
			s.publish(events.PriceFetchEvent{Date: date, Hours: len(prices.Prices), Cached: true, Latency: time.Since(start)})
			return prices, nil
		}
	}

	prices, err := fetch(ctx)
	s.publish(events.PriceFetchEvent{Date: date, Hours: len(prices.Prices), Err: err, Latency: time.Since(start)})
	if err != nil {
		return prices, err
	}
	// partial days may still be completed by the publisher
	if s.cache != nil && prices.Complete() {
		if err := s.cache.Set(ctx, prices); err != nil {
			s.log.Warnf("price cache write for %s: %v", model.DateKey(date), err)
		}
	}
	return prices, nil
}

func (s *CachedSource) publish(e events.PriceFetchEvent) {
	if s.pub != nil {
		s.pub.Publish(e)
	}
}
