package contracts

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateKeySetJSON(t *testing.T) {
	set := DateKeySet{}
	set.Add("2025-01-08")
	set.Add("2025-01-06")
	set.Add("2025-01-06")

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, `["2025-01-06","2025-01-08"]`, string(data))

	var back DateKeySet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Has("2025-01-08"))
	assert.False(t, back.Has("2025-01-07"))
}

func TestCumulativeStatsApply(t *testing.T) {
	stats := NewCumulativeStats()

	stats.Apply(EvaluationResult{Symbol: "A", IsCorrect: true, ReturnPct: 1.5}, 3)
	stats.Apply(EvaluationResult{Symbol: "B", IsCorrect: false, ReturnPct: -0.7}, 3)

	assert.Equal(t, 2, stats.TotalPredictions)
	assert.Equal(t, 1, stats.CorrectPredictions)
	assert.InDelta(t, 0.8, stats.TotalReturnPct, 1e-9)
	assert.InDelta(t, 50.0, stats.Accuracy(), 1e-9)
	assert.InDelta(t, 0.4, stats.AverageReturn(), 1e-9)
}

func TestCumulativeStatsHistoryBounded(t *testing.T) {
	stats := NewCumulativeStats()
	for i := 0; i < 5; i++ {
		stats.Apply(EvaluationResult{Symbol: fmt.Sprintf("S%d", i)}, 3)
	}

	require.Len(t, stats.History, 3)
	assert.Equal(t, "S2", stats.History[0].Symbol)
	assert.Equal(t, "S4", stats.History[2].Symbol)
	assert.Equal(t, 5, stats.TotalPredictions)
}

func TestZeroStats(t *testing.T) {
	stats := NewCumulativeStats()
	assert.Zero(t, stats.Accuracy())
	assert.Zero(t, stats.AverageReturn())

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_predictions":0,"correct_predictions":0,"total_return_pct":0,`+
		`"processed_date_keys":[],"history":[],"last_updated":null}`, string(data))
}

func TestNewSnapshot(t *testing.T) {
	stats := NewCumulativeStats()
	stats.Apply(EvaluationResult{IsCorrect: true, ReturnPct: 1.0}, 0)
	stats.Apply(EvaluationResult{IsCorrect: true, ReturnPct: 1.0}, 0)
	stats.Apply(EvaluationResult{IsCorrect: false, ReturnPct: -1.0}, 0)

	snap := NewSnapshot(stats, nil)
	assert.Equal(t, 3, snap.Summary.TotalPredictions)
	assert.Equal(t, 66.67, snap.Summary.Accuracy)
	assert.Equal(t, 0.33, snap.Summary.AverageReturn)
	assert.Equal(t, 1.0, snap.Summary.TotalReturn)
	assert.NotNil(t, snap.Details)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, -1.01, Round2(-1.005))
	assert.Equal(t, 2.35, Round2(2.345))
	assert.Equal(t, 0.0, Round2(0.004))
}
