package outcome

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/config"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/redis"
)

func TestCachedFetcherPassThroughWhenDisabled(t *testing.T) {
	client, err := redis.New(context.Background(), &config.Config{})
	require.NoError(t, err)

	inner := &fakeFetcher{bars: []contracts.Bar{bar("2025-01-07", 100), bar("2025-01-08", 101)}}
	f := NewCachedFetcher(inner, redis.NewCache(client, "predictor"), 0, zerolog.Nop())

	for i := 0; i < 2; i++ {
		bars, err := f.FetchSeries(context.Background(), "7203.T", day("2025-01-03"), day("2025-01-10"))
		require.NoError(t, err)
		assert.Len(t, bars, 2)
	}
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, redis.TTLDaily, f.ttl)
}

func TestCachedFetcherPropagatesError(t *testing.T) {
	client, err := redis.New(context.Background(), &config.Config{})
	require.NoError(t, err)

	inner := &fakeFetcher{err: context.DeadlineExceeded}
	f := NewCachedFetcher(inner, redis.NewCache(client, "predictor"), time.Hour, zerolog.Nop())

	_, err = f.FetchSeries(context.Background(), "7203.T", day("2025-01-03"), day("2025-01-10"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
