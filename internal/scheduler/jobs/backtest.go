package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/backtest"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/metrics"
)

// BacktestJob runs the incremental aggregator
// Schedule: weekdays 16:30, after the Tokyo close
type BacktestJob struct {
	engine  *backtest.Engine
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewBacktestJob creates a new backtest job
func NewBacktestJob(engine *backtest.Engine, m *metrics.Recorder, log *logger.Logger) *BacktestJob {
	return &BacktestJob{
		engine:  engine,
		metrics: m,
		logger:  log,
	}
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return "backtest_incremental"
}

// Schedule returns the cron schedule (weekdays 16:30)
func (j *BacktestJob) Schedule() string {
	return "0 30 16 * * 1-5"
}

// Run executes the aggregator. A run held off by another process's lock is
// not a failure for the cron daemon; the next activation picks the work up.
func (j *BacktestJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx)
	if backtest.IsLocked(err) {
		j.logger.Warn("Backtest already running elsewhere, skipping")
		return nil
	}
	return err
}

// Execute runs the aggregator once and publishes metrics
func (j *BacktestJob) Execute(ctx context.Context) (*backtest.Result, error) {
	start := time.Now()
	result, err := j.engine.RunIncremental(ctx)
	j.metrics.RecordDuration("backtest", time.Since(start).Seconds())

	switch {
	case errors.Is(err, backtest.ErrLocked):
		j.metrics.RecordBacktestRun("locked")
		return nil, err
	case err != nil:
		j.metrics.RecordBacktestRun("failed")
		return nil, err
	case result.NothingToDo():
		j.metrics.RecordBacktestRun("noop")
	default:
		j.metrics.RecordBacktestRun("processed")
	}

	if s := result.Stats; s != nil {
		j.metrics.SetCumulative(s.TotalPredictions, s.CorrectPredictions, s.Accuracy(), s.TotalReturnPct)
	}
	if err := j.metrics.Flush(); err != nil {
		j.logger.WithError(err).Warn("Failed to flush metrics")
	}

	j.logger.WithFields(map[string]interface{}{
		"processed":   len(result.ProcessedKeys),
		"deferred":    len(result.DeferredKeys),
		"skipped":     len(result.SkippedKeys),
		"evaluated":   result.Evaluated,
		"unresolved":  result.Unresolved,
		"unevaluable": result.Unevaluable,
	}).Info("Backtest completed")

	return result, nil
}
