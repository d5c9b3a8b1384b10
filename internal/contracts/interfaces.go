package contracts

import (
	"context"
	"time"
)

// PriceFetcher market data collaborator
// ⭐ SSOT: returns daily bars with start <= date < end, in any order
type PriceFetcher interface {
	FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// OutcomeResolver maps (symbol, date) to a realized percent change
// ⭐ SSOT: never errors; unresolvable lookups report ok=false
type OutcomeResolver interface {
	Resolve(ctx context.Context, symbol string, target time.Time) (change float64, ok bool)
}

// RecordStore persistence of dated prediction records
type RecordStore interface {
	Write(ctx context.Context, record *PredictionRecord) error
	ReadLatest(ctx context.Context, dateKey string) (*PredictionRecord, error)
	List(ctx context.Context) ([]string, error)
}

// StatsStore persistence of the cumulative stats singleton
// Load returns the zero singleton when nothing was saved yet
type StatsStore interface {
	Load(ctx context.Context) (*CumulativeStats, error)
	Save(ctx context.Context, stats *CumulativeStats) error
}
