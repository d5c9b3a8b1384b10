package backtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

func sampleStats() *contracts.CumulativeStats {
	stats := contracts.NewCumulativeStats()
	stats.Apply(contracts.EvaluationResult{
		Date: "2025-01-06", Symbol: "7203.T", Direction: contracts.DirectionBullish,
		RealizedChangePct: 1.25, IsCorrect: true, ReturnPct: 1.25,
	}, 100)
	stats.ProcessedDateKeys.Add("2025-01-06")
	updated := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	stats.LastUpdated = &updated
	return stats
}

func TestFileStatsStoreRoundTrip(t *testing.T) {
	store := NewFileStatsStore(filepath.Join(t.TempDir(), "stats.json"), zerolog.Nop())
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalPredictions)
	assert.NotNil(t, empty.ProcessedDateKeys)

	want := sampleStats()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStatsStoreNormalizesMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"total_predictions":2,"correct_predictions":1}`), 0o644))

	got, err := NewFileStatsStore(path, zerolog.Nop()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalPredictions)
	assert.NotNil(t, got.ProcessedDateKeys)
	assert.NotNil(t, got.History)
}

func TestSnapshotName(t *testing.T) {
	at := time.Date(2025, 1, 6, 16, 30, 5, 0, time.UTC)
	name := SnapshotName(at)
	assert.Equal(t, "backtest_result_20250106_163005.json", name)

	got, ok := ParseSnapshotName(name)
	require.True(t, ok)
	assert.Equal(t, "2025-01-06", contracts.DateKey(got))

	_, ok = ParseSnapshotName("backtest_result_latest.json")
	assert.False(t, ok)
	_, ok = ParseSnapshotName("backtest_result_20251345_000000.json")
	assert.False(t, ok)
}

func TestPostgresStatsStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	store := NewPostgresStatsStore(pool, zerolog.Nop())
	require.NoError(t, store.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM backtest.cumulative_stats WHERE id = $1`, statsSingletonID)
	require.NoError(t, err)

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalPredictions)

	want := sampleStats()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.TotalPredictions, got.TotalPredictions)
	assert.Equal(t, want.ProcessedDateKeys.Sorted(), got.ProcessedDateKeys.Sorted())
	assert.True(t, want.LastUpdated.Equal(*got.LastUpdated))
}
