package outcome

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/redis"
)

// CachedFetcher wraps a PriceFetcher with the Redis JSON cache.
// A disabled cache is a pass-through.
type CachedFetcher struct {
	next  contracts.PriceFetcher
	cache *redis.Cache
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// NewCachedFetcher creates a cached fetcher; ttl applies to settled windows
func NewCachedFetcher(next contracts.PriceFetcher, cache *redis.Cache, ttl time.Duration, log zerolog.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedFetcher{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "outcome.cache").Logger(),
		now:   time.Now,
	}
}

// FetchSeries serves from cache or fetches and stores the series.
// Cache errors are logged and never fail the lookup.
func (f *CachedFetcher) FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]contracts.Bar, error) {
	key := redis.PriceSeriesKey(symbol, contracts.DateKey(start), contracts.DateKey(end))

	var cached []contracts.Bar
	found, err := f.cache.Get(ctx, key, &cached)
	if err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	if found {
		return cached, nil
	}

	bars, err := f.next.FetchSeries(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return bars, nil
	}

	// A window that has not closed yet may still gain bars
	ttl := f.ttl
	if end.After(f.now()) {
		ttl = redis.TTLShort
	}
	if err := f.cache.Set(ctx, key, bars, ttl); err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return bars, nil
}
