package outcome

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

const (
	// lookback covers a long weekend plus a holiday before the target
	lookback = 5 * 24 * time.Hour
	// lookahead end of the fetch window, exclusive
	lookahead = 2 * 24 * time.Hour

	defaultTimeout = 15 * time.Second
)

// Resolver maps (symbol, date) to the realized percent change of the first
// trading session on or after that date
type Resolver struct {
	fetcher  contracts.PriceFetcher
	timeout  time.Duration
	log      zerolog.Logger
	onLookup func(resolved bool)
}

// NewResolver creates a resolver; timeout <= 0 falls back to 15s
func NewResolver(fetcher contracts.PriceFetcher, timeout time.Duration, log zerolog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		fetcher: fetcher,
		timeout: timeout,
		log:     log.With().Str("component", "outcome.resolver").Logger(),
	}
}

// OnLookup registers a hook called after every lookup (metrics)
func (r *Resolver) OnLookup(fn func(resolved bool)) *Resolver {
	r.onLookup = fn
	return r
}

// Resolve returns the realized change in percent, rounded to 2 decimals.
// Failures of any kind degrade to (0, false).
func (r *Resolver) Resolve(ctx context.Context, symbol string, target time.Time) (float64, bool) {
	change, ok := r.resolve(ctx, symbol, target)
	if r.onLookup != nil {
		r.onLookup(ok)
	}
	return change, ok
}

func (r *Resolver) resolve(ctx context.Context, symbol string, target time.Time) (float64, bool) {
	day := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	start := day.Add(-lookback)
	end := day.Add(lookahead)

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	bars, err := r.fetcher.FetchSeries(fetchCtx, symbol, start, end)
	if err != nil {
		r.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Str("date", contracts.DateKey(day)).
			Msg("price series unavailable")
		return 0, false
	}

	change, ok := ChangeOnOrAfter(bars, day)
	if !ok {
		r.log.Debug().
			Str("symbol", symbol).
			Str("date", contracts.DateKey(day)).
			Int("bars", len(bars)).
			Msg("no session pair on or after target")
	}
	return change, ok
}

// ChangeOnOrAfter picks the first bar dated on or after day that has a
// preceding bar with a positive close, and returns the rounded change.
func ChangeOnOrAfter(bars []contracts.Bar, day time.Time) (float64, bool) {
	if len(bars) < 2 {
		return 0, false
	}

	sorted := make([]contracts.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	targetKey := contracts.DateKey(day)
	for i := 1; i < len(sorted); i++ {
		if contracts.DateKey(sorted[i].Date) < targetKey {
			continue
		}
		prev := sorted[i-1].Close
		if prev <= 0 {
			continue
		}
		change := (sorted[i].Close - prev) / prev * 100
		return contracts.Round2(change), true
	}
	return 0, false
}
