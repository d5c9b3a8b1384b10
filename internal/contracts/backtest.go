package contracts

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHistoryCapacity number of evaluation results kept in CumulativeStats
const DefaultHistoryCapacity = 100

// EvaluationResult one scored prediction
type EvaluationResult struct {
	Date              string    `json:"date"`
	Symbol            string    `json:"symbol"`
	Direction         Direction `json:"direction"`
	RealizedChangePct float64   `json:"realized_change_pct"`
	IsCorrect         bool      `json:"is_correct"`
	ReturnPct         float64   `json:"return_pct"` // signed simulated return
}

// DateKeySet set of date keys, serialized as a sorted JSON array
type DateKeySet map[string]struct{}

// Has reports membership
func (s DateKeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add inserts a key
func (s DateKeySet) Add(key string) {
	s[key] = struct{}{}
}

// Sorted returns the keys ascending
func (s DateKeySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON writes the set as a sorted array
func (s DateKeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON reads a JSON array into the set
func (s *DateKeySet) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	set := make(DateKeySet, len(keys))
	for _, k := range keys {
		set.Add(k)
	}
	*s = set
	return nil
}

// CumulativeStats the singleton running totals of the backtest
type CumulativeStats struct {
	TotalPredictions   int                `json:"total_predictions"`
	CorrectPredictions int                `json:"correct_predictions"`
	TotalReturnPct     float64            `json:"total_return_pct"`
	ProcessedDateKeys  DateKeySet         `json:"processed_date_keys"`
	History            []EvaluationResult `json:"history"`
	LastUpdated        *time.Time         `json:"last_updated"`
}

// NewCumulativeStats returns the zero singleton
func NewCumulativeStats() *CumulativeStats {
	return &CumulativeStats{
		ProcessedDateKeys: DateKeySet{},
		History:           []EvaluationResult{},
	}
}

// Normalize fills nil collections after decoding
func (s *CumulativeStats) Normalize() {
	if s.ProcessedDateKeys == nil {
		s.ProcessedDateKeys = DateKeySet{}
	}
	if s.History == nil {
		s.History = []EvaluationResult{}
	}
}

// Apply folds one evaluation result into the totals and the bounded history
func (s *CumulativeStats) Apply(r EvaluationResult, capacity int) {
	s.TotalPredictions++
	if r.IsCorrect {
		s.CorrectPredictions++
	}
	s.TotalReturnPct = Round2(s.TotalReturnPct + r.ReturnPct)

	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	s.History = append(s.History, r)
	if over := len(s.History) - capacity; over > 0 {
		s.History = append([]EvaluationResult(nil), s.History[over:]...)
	}
}

// Accuracy correct / total x 100, 0 when nothing was scored
func (s *CumulativeStats) Accuracy() float64 {
	if s.TotalPredictions == 0 {
		return 0
	}
	return float64(s.CorrectPredictions) / float64(s.TotalPredictions) * 100
}

// AverageReturn total return / total, 0 when nothing was scored
func (s *CumulativeStats) AverageReturn() float64 {
	if s.TotalPredictions == 0 {
		return 0
	}
	return s.TotalReturnPct / float64(s.TotalPredictions)
}

// SnapshotSummary headline numbers of a run snapshot
type SnapshotSummary struct {
	TotalPredictions   int     `json:"total_predictions"`
	CorrectPredictions int     `json:"correct_predictions"`
	Accuracy           float64 `json:"accuracy"`
	AverageReturn      float64 `json:"average_return"`
	TotalReturn        float64 `json:"total_return"`
}

// BacktestSnapshot the per-run result artifact
type BacktestSnapshot struct {
	Summary SnapshotSummary    `json:"summary"`
	Details []EvaluationResult `json:"details"`
}

// NewSnapshot summarizes the cumulative state and the results of one run
func NewSnapshot(stats *CumulativeStats, details []EvaluationResult) *BacktestSnapshot {
	if details == nil {
		details = []EvaluationResult{}
	}
	return &BacktestSnapshot{
		Summary: SnapshotSummary{
			TotalPredictions:   stats.TotalPredictions,
			CorrectPredictions: stats.CorrectPredictions,
			Accuracy:           Round2(stats.Accuracy()),
			AverageReturn:      Round2(stats.AverageReturn()),
			TotalReturn:        Round2(stats.TotalReturnPct),
		},
		Details: details,
	}
}

// Round2 rounds half away from zero to two decimals
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
