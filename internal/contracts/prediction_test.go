package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
		err  bool
	}{
		{"看涨", DirectionBullish, false},
		{"看漲", DirectionBullish, false},
		{"看跌", DirectionBearish, false},
		{"Bullish", DirectionBullish, false},
		{" bearish ", DirectionBearish, false},
		{"UP", DirectionBullish, false},
		{"short", DirectionBearish, false},
		{"neutral", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownDirection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredictionRecordRoundTrip(t *testing.T) {
	raw := `{"date":"2025-01-06","target_date":"2025-01-07","is_weekend_batch":true,"signal_count":2,` +
		`"predictions":[{"symbol":"7203.T","direction":"Bullish"},{"symbol":"6758.T","direction":"Bearish"}],` +
		`"narrative":{"text":"円安"},"created_at":"2025-01-06T01:00:00Z","version_tag":"latest"}`

	var rec PredictionRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	require.NoError(t, rec.Validate())
	assert.True(t, rec.IsLatest())
	assert.Len(t, rec.Predictions, 2)

	out, err := json.Marshal(&rec)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestPredictionRecordLegacyField(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Prediction
	}{
		{
			name: "single object",
			raw:  `{"date":"2025-01-06","prediction":{"stock_code":"7203.T","direction":"看涨"}}`,
			want: []Prediction{{Symbol: "7203.T", Direction: DirectionBullish}},
		},
		{
			name: "list with incomplete entry",
			raw:  `{"date":"2025-01-06","prediction":[{"stock_code":"7203.T","direction":"看跌"},{"stock_code":""}]}`,
			want: []Prediction{{Symbol: "7203.T", Direction: DirectionBearish}},
		},
		{
			name: "current field wins",
			raw:  `{"date":"2025-01-06","predictions":[{"symbol":"9984.T","direction":"Bullish"}],"prediction":{"stock_code":"7203.T","direction":"看跌"}}`,
			want: []Prediction{{Symbol: "9984.T", Direction: DirectionBullish}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec PredictionRecord
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &rec))
			assert.Equal(t, tt.want, rec.Predictions)
		})
	}
}

func TestPredictionRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     PredictionRecord
		wantErr bool
	}{
		{"empty predictions are valid", PredictionRecord{Date: "2025-01-06"}, false},
		{"missing date", PredictionRecord{}, true},
		{"bad date", PredictionRecord{Date: "2025/01/06"}, true},
		{"bad target date", PredictionRecord{Date: "2025-01-06", TargetDate: "tomorrow"}, true},
		{"negative signal count", PredictionRecord{Date: "2025-01-06", SignalCount: -1}, true},
		{"missing symbol", PredictionRecord{Date: "2025-01-06", Predictions: []Prediction{{Direction: DirectionBullish}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextTradingDay(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"2025-01-06", "2025-01-07"}, // Mon
		{"2025-01-10", "2025-01-13"}, // Fri
		{"2025-01-11", "2025-01-13"}, // Sat
		{"2025-01-12", "2025-01-13"}, // Sun
	}

	for _, tt := range tests {
		from, err := ParseDateKey(tt.from)
		require.NoError(t, err)
		assert.Equal(t, tt.want, DateKey(NextTradingDay(from)), tt.from)
	}
}

func TestParseDateKeyInvalid(t *testing.T) {
	_, err := ParseDateKey("20250106")
	assert.Error(t, err)
	assert.Equal(t, "2025-01-06", DateKey(time.Date(2025, 1, 6, 23, 59, 0, 0, time.UTC)))
}
