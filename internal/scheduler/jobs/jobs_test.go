package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/admission"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/backtest"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/records"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/retention"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/metrics"
)

type staticResolver struct{}

func (staticResolver) Resolve(ctx context.Context, symbol string, target time.Time) (float64, bool) {
	return 1.25, true
}

func newAdmissionJob(t *testing.T, now *time.Time) (*AdmissionJob, *records.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := records.NewStore(filepath.Join(dir, "predictions"), zerolog.Nop())
	sched := admission.NewScheduler(
		admission.NewBufferStore(filepath.Join(dir, "weekend_cache"), zerolog.Nop()),
		store, time.UTC, admission.DefaultReleaseHour, zerolog.Nop(),
	).WithClock(func() time.Time { return *now })

	inbox := filepath.Join(dir, "signals_today.json")
	return NewAdmissionJob(sched, inbox, metrics.New(""), logger.Nop()), store, inbox
}

func TestAdmissionJobEmitsAndConsumesInbox(t *testing.T) {
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC) // Wednesday
	job, store, inbox := newAdmissionJob(t, &now)
	require.NoError(t, os.WriteFile(inbox, []byte(`[{"symbol":"7203.T","direction":"看涨"},{"symbol":"6758.T","direction":"flat"}]`), 0o644))

	decision, err := job.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, contracts.DecisionEmit, decision.Kind)

	rec, err := store.ReadLatest(context.Background(), "2025-01-08")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.SignalCount)

	_, err = os.Stat(inbox)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(inbox + ConsumedSuffix)
	assert.NoError(t, err)

	// hourly rerun finds no inbox and leaves the record alone
	decision, err = job.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, decision)

	backups, err := store.Backups(context.Background(), "2025-01-08")
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestAdmissionJobReleaseWithoutInbox(t *testing.T) {
	now := time.Date(2025, 1, 13, 1, 0, 0, 0, time.UTC) // Monday 01:00
	job, _, _ := newAdmissionJob(t, &now)

	decision, err := job.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, contracts.DecisionBuffered, decision.Kind)
	assert.True(t, decision.Waiting)
}

func TestAdmissionJobKeepsInboxDuringEmptyRelease(t *testing.T) {
	now := time.Date(2025, 1, 13, 1, 0, 0, 0, time.UTC) // Monday 01:00, nothing buffered
	job, store, inbox := newAdmissionJob(t, &now)
	require.NoError(t, os.WriteFile(inbox, []byte(`[{"symbol":"7203.T","direction":"Bullish"}]`), 0o644))

	decision, err := job.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, contracts.DecisionBuffered, decision.Kind)
	assert.True(t, decision.Waiting)

	_, err = os.Stat(inbox)
	require.NoError(t, err)
	keys, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)

	// first run after the window emits the held signals
	now = time.Date(2025, 1, 13, 3, 5, 0, 0, time.UTC)
	decision, err = job.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, contracts.DecisionEmit, decision.Kind)

	rec, err := store.ReadLatest(context.Background(), "2025-01-13")
	require.NoError(t, err)
	require.Len(t, rec.Predictions, 1)
	assert.Equal(t, "7203.T", rec.Predictions[0].Symbol)

	_, err = os.Stat(inbox)
	assert.True(t, os.IsNotExist(err))
}

func newEngine(t *testing.T, dir string) *backtest.Engine {
	t.Helper()
	return backtest.NewEngine(
		records.NewStore(filepath.Join(dir, "predictions"), zerolog.Nop()),
		staticResolver{},
		backtest.NewFileStatsStore(filepath.Join(dir, "stats.json"), zerolog.Nop()),
		backtest.NewSnapshotWriter(dir),
		backtest.NewFileLock(filepath.Join(dir, "backtest.lock"), zerolog.Nop()),
		backtest.Config{ResolveOn: backtest.ResolveOnDate},
		zerolog.Nop(),
	).WithClock(func() time.Time { return time.Date(2025, 1, 10, 17, 0, 0, 0, time.UTC) })
}

func TestBacktestJobPublishesMetrics(t *testing.T) {
	dir := t.TempDir()
	store := records.NewStore(filepath.Join(dir, "predictions"), zerolog.Nop())
	require.NoError(t, store.Write(context.Background(), &contracts.PredictionRecord{
		Date:        "2025-01-06",
		SignalCount: 1,
		Predictions: []contracts.Prediction{{Symbol: "7203.T", Direction: contracts.DirectionBullish}},
	}))

	m := metrics.New("")
	job := NewBacktestJob(newEngine(t, dir), m, logger.Nop())

	result, err := job.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-06"}, result.ProcessedKeys)

	require.NoError(t, job.Run(context.Background()))

	count, err := testutil.GatherAndCount(m.Registry(), "predictor_backtest_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "processed and noop series")
}

func TestBacktestJobLockedIsNotAFailure(t *testing.T) {
	dir := t.TempDir()
	release, err := backtest.NewFileLock(filepath.Join(dir, "backtest.lock"), zerolog.Nop()).Acquire()
	require.NoError(t, err)
	defer release()

	job := NewBacktestJob(newEngine(t, dir), metrics.New(""), logger.Nop())

	_, err = job.Execute(context.Background())
	assert.ErrorIs(t, err, backtest.ErrLocked)
	assert.NoError(t, job.Run(context.Background()))
}

func TestRetentionJob(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "predictions", "prediction_2024-01-01.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0o755))
	require.NoError(t, os.WriteFile(old, []byte("{}"), 0o644))

	manager := retention.NewManager(retention.Policy{
		PredictionsDir: filepath.Join(dir, "predictions"),
		PredictionDays: 90,
		BackupDays:     7,
	}, zerolog.Nop())
	job := NewRetentionJob(manager, metrics.New(""), logger.Nop())
	job.now = func() time.Time { return time.Date(2025, 1, 10, 4, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}
