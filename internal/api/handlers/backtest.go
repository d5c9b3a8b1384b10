package handlers

import (
	"net/http"
	"time"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
)

// BacktestHandler serves cumulative backtest state
// ⭐ SSOT: read-only; the aggregator is the only writer
type BacktestHandler struct {
	stats  contracts.StatsStore
	logger *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(stats contracts.StatsStore, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		stats:  stats,
		logger: log,
	}
}

// StatsResponse cumulative stats with derived figures
type StatsResponse struct {
	TotalPredictions   int        `json:"total_predictions"`
	CorrectPredictions int        `json:"correct_predictions"`
	AccuracyPct        float64    `json:"accuracy_pct"`
	TotalReturnPct     float64    `json:"total_return_pct"`
	AverageReturnPct   float64    `json:"average_return_pct"`
	ProcessedDates     int        `json:"processed_dates"`
	LastProcessedDate  string     `json:"last_processed_date,omitempty"`
	LastUpdated        *time.Time `json:"last_updated,omitempty"`
}

// GetStats returns the cumulative stats summary
// GET /api/backtest/stats
func (h *BacktestHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Load(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load cumulative stats")
		respondError(w, http.StatusInternalServerError, "Failed to load cumulative stats")
		return
	}

	resp := StatsResponse{
		TotalPredictions:   stats.TotalPredictions,
		CorrectPredictions: stats.CorrectPredictions,
		AccuracyPct:        contracts.Round2(stats.Accuracy()),
		TotalReturnPct:     contracts.Round2(stats.TotalReturnPct),
		AverageReturnPct:   contracts.Round2(stats.AverageReturn()),
		ProcessedDates:     len(stats.ProcessedDateKeys),
		LastUpdated:        stats.LastUpdated,
	}
	if keys := stats.ProcessedDateKeys.Sorted(); len(keys) > 0 {
		resp.LastProcessedDate = keys[len(keys)-1]
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetHistory returns the most recent evaluation results, newest last
// GET /api/backtest/history?limit=20
func (h *BacktestHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Load(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load cumulative stats")
		respondError(w, http.StatusInternalServerError, "Failed to load cumulative stats")
		return
	}

	limit := queryInt(r, "limit", contracts.DefaultHistoryCapacity)
	history := stats.History
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	if history == nil {
		history = []contracts.EvaluationResult{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(history),
		"history": history,
	})
}
