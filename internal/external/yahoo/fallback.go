package yahoo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
)

// FallbackFetcher tries fetchers in order; the first non-empty series wins
type FallbackFetcher struct {
	fetchers []contracts.PriceFetcher
	logger   *logger.Logger
}

// NewFallbackFetcher creates a fallback chain
func NewFallbackFetcher(log *logger.Logger, fetchers ...contracts.PriceFetcher) *FallbackFetcher {
	return &FallbackFetcher{
		fetchers: fetchers,
		logger:   log,
	}
}

// FetchSeries returns the first non-empty series, or the joined errors when all failed
func (f *FallbackFetcher) FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]contracts.Bar, error) {
	var errs []error
	for i, fetcher := range f.fetchers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars, err := fetcher.FetchSeries(ctx, symbol, start, end)
		if err != nil {
			f.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol": symbol,
				"source": i,
			}).Warn("market data source failed, trying next")
			errs = append(errs, err)
			continue
		}
		if len(bars) > 0 {
			return bars, nil
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("all market data sources failed: %w", errors.Join(errs...))
	}
	return []contracts.Bar{}, nil
}
