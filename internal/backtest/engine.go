package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

// ResolveOn which record date an outcome is resolved on
type ResolveOn string

const (
	ResolveOnDate       ResolveOn = "date"
	ResolveOnTargetDate ResolveOn = "target_date"
)

// ParseResolveOn validates a configured resolution mode
func ParseResolveOn(s string) (ResolveOn, error) {
	switch ResolveOn(s) {
	case ResolveOnDate, ResolveOnTargetDate:
		return ResolveOn(s), nil
	default:
		return "", fmt.Errorf("unknown resolve mode %q", s)
	}
}

// RecordReader read side of the prediction record store
type RecordReader interface {
	List(ctx context.Context) ([]string, error)
	ReadLatest(ctx context.Context, dateKey string) (*contracts.PredictionRecord, error)
}

// Locker serializes runs
type Locker interface {
	Acquire() (func(), error)
}

// Config holds aggregator configuration
type Config struct {
	ResolveOn       ResolveOn
	HistoryCapacity int
	Location        *time.Location // market time zone, decides "today"
}

// Result outcome of one incremental run
type Result struct {
	StartedAt time.Time
	Duration  time.Duration

	ProcessedKeys []string // newly folded into the stats
	SkippedKeys   []string // unreadable, invalid or not latest; retried next run
	DeferredKeys  []string // resolution date still in the future

	Evaluated   int
	Unresolved  int
	Unevaluable int

	Details      []contracts.EvaluationResult
	Stats        *contracts.CumulativeStats
	SnapshotPath string
}

// NothingToDo reports whether the run left every artifact untouched
func (r *Result) NothingToDo() bool {
	return len(r.ProcessedKeys) == 0
}

// Engine incremental backtest aggregator
// ⭐ SSOT: the only writer of CumulativeStats
type Engine struct {
	records   RecordReader
	resolver  contracts.OutcomeResolver
	stats     contracts.StatsStore
	snapshots *SnapshotWriter
	lock      Locker
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewEngine creates the aggregator
func NewEngine(
	records RecordReader,
	resolver contracts.OutcomeResolver,
	stats contracts.StatsStore,
	snapshots *SnapshotWriter,
	lock Locker,
	cfg Config,
	log zerolog.Logger,
) *Engine {
	if cfg.ResolveOn == "" {
		cfg.ResolveOn = ResolveOnDate
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = contracts.DefaultHistoryCapacity
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		records:   records,
		resolver:  resolver,
		stats:     stats,
		snapshots: snapshots,
		lock:      lock,
		cfg:       cfg,
		log:       log.With().Str("component", "backtest.engine").Logger(),
		now:       time.Now,
	}
}

// WithClock overrides the wall clock (tests)
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Stats loads the current cumulative stats without running
func (e *Engine) Stats(ctx context.Context) (*contracts.CumulativeStats, error) {
	return e.stats.Load(ctx)
}

// RunIncremental folds every unprocessed record into the cumulative stats.
// Each date key is processed at most once; a run with nothing new writes nothing.
func (e *Engine) RunIncremental(ctx context.Context) (*Result, error) {
	started := e.now().In(e.cfg.Location)
	result := &Result{StartedAt: started}

	release, err := e.lock.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	stats, err := e.stats.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	result.Stats = stats

	keys, err := e.records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	pending := make([]string, 0, len(keys))
	for _, key := range keys {
		if !stats.ProcessedDateKeys.Has(key) {
			pending = append(pending, key)
		}
	}

	e.log.Info().
		Int("records", len(keys)).
		Int("pending", len(pending)).
		Int("total_predictions", stats.TotalPredictions).
		Msg("incremental backtest started")

	today := contracts.DateKey(started)
	for _, key := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.processRecord(ctx, key, today, stats, result)
	}

	result.Duration = e.now().Sub(started)

	if result.NothingToDo() {
		e.log.Info().
			Int("skipped", len(result.SkippedKeys)).
			Int("deferred", len(result.DeferredKeys)).
			Msg("no new predictions to backtest")
		return result, nil
	}

	updated := started.UTC()
	stats.LastUpdated = &updated
	if err := e.stats.Save(ctx, stats); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}

	if e.snapshots != nil {
		path, err := e.snapshots.Write(contracts.NewSnapshot(stats, result.Details), started)
		if err != nil {
			// stats are already durable; the snapshot is a convenience artifact
			e.log.Error().Err(err).Msg("failed to write backtest snapshot")
		} else {
			result.SnapshotPath = path
		}
	}

	e.log.Info().
		Strs("processed", result.ProcessedKeys).
		Int("evaluated", result.Evaluated).
		Int("unresolved", result.Unresolved).
		Float64("accuracy", contracts.Round2(stats.Accuracy())).
		Float64("total_return", stats.TotalReturnPct).
		Msg("incremental backtest finished")
	return result, nil
}

// processRecord scores one record and marks it processed
func (e *Engine) processRecord(ctx context.Context, key, today string, stats *contracts.CumulativeStats, result *Result) {
	log := e.log.With().Str("date", key).Logger()

	record, err := e.records.ReadLatest(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("record unreadable, skipped")
		result.SkippedKeys = append(result.SkippedKeys, key)
		return
	}
	if !record.IsLatest() {
		log.Warn().Str("version_tag", record.VersionTag).Msg("record is not tagged latest, skipped")
		result.SkippedKeys = append(result.SkippedKeys, key)
		return
	}
	if err := record.Validate(); err != nil {
		log.Warn().Err(err).Msg("record failed validation, skipped")
		result.SkippedKeys = append(result.SkippedKeys, key)
		return
	}

	resolveKey := e.resolutionDate(record)
	resolveDay, err := contracts.ParseDateKey(resolveKey)
	if err != nil {
		log.Warn().Err(err).Msg("bad resolution date, skipped")
		result.SkippedKeys = append(result.SkippedKeys, key)
		return
	}
	if resolveKey > today {
		log.Info().Str("resolve_on", resolveKey).Msg("resolution date not reached yet, deferred")
		result.DeferredKeys = append(result.DeferredKeys, key)
		return
	}

	if len(record.Predictions) == 0 {
		log.Info().Msg("record has no predictions, consumed")
	}

	for _, p := range record.Predictions {
		if !p.Direction.Valid() {
			log.Warn().Str("symbol", p.Symbol).Str("direction", string(p.Direction)).Msg("unknown direction, entry skipped")
			result.Unevaluable++
			continue
		}

		change, ok := e.resolver.Resolve(ctx, p.Symbol, resolveDay)
		if !ok {
			log.Warn().Str("symbol", p.Symbol).Msg("outcome unresolved, entry skipped")
			result.Unresolved++
			continue
		}

		correct, ret, ok := Evaluate(p.Direction, &change)
		if !ok {
			result.Unevaluable++
			continue
		}

		r := contracts.EvaluationResult{
			Date:              key,
			Symbol:            p.Symbol,
			Direction:         p.Direction,
			RealizedChangePct: change,
			IsCorrect:         correct,
			ReturnPct:         ret,
		}
		stats.Apply(r, e.cfg.HistoryCapacity)
		result.Details = append(result.Details, r)
		result.Evaluated++

		log.Debug().
			Str("symbol", p.Symbol).
			Str("direction", string(p.Direction)).
			Float64("change", change).
			Bool("correct", correct).
			Msg("prediction evaluated")
	}

	stats.ProcessedDateKeys.Add(key)
	result.ProcessedKeys = append(result.ProcessedKeys, key)
}

// resolutionDate picks the configured record date
func (e *Engine) resolutionDate(record *contracts.PredictionRecord) string {
	if e.cfg.ResolveOn == ResolveOnTargetDate {
		if record.TargetDate != "" {
			return record.TargetDate
		}
		e.log.Warn().Str("date", record.Date).Msg("record has no target_date, resolving on date")
	}
	return record.Date
}

// IsLocked reports whether err means another run holds the lock
func IsLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}
