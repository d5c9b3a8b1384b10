package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/records"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
)

// RecordBrowser read side of the prediction record store
type RecordBrowser interface {
	List(ctx context.Context) ([]string, error)
	ReadLatest(ctx context.Context, dateKey string) (*contracts.PredictionRecord, error)
	Backups(ctx context.Context, dateKey string) ([]records.Backup, error)
}

// RecordHandler serves prediction records
type RecordHandler struct {
	store  RecordBrowser
	logger *logger.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(store RecordBrowser, log *logger.Logger) *RecordHandler {
	return &RecordHandler{
		store:  store,
		logger: log,
	}
}

// List returns every date key with a primary record
// GET /api/records
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list records")
		respondError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}
	if keys == nil {
		keys = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(keys),
		"dates": keys,
	})
}

// Get returns the latest record of a date
// GET /api/records/{date}
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	rec, err := h.store.ReadLatest(r.Context(), date)
	if errors.Is(err, records.ErrNotFound) {
		respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("date", date).Error("Failed to read record")
		respondError(w, http.StatusInternalServerError, "Failed to read record")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// Backups lists superseded versions of a date
// GET /api/records/{date}/backups
func (h *RecordHandler) Backups(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	backups, err := h.store.Backups(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).WithField("date", date).Error("Failed to list backups")
		respondError(w, http.StatusInternalServerError, "Failed to list backups")
		return
	}

	if backups == nil {
		backups = []records.Backup{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date,
		"count":   len(backups),
		"backups": backups,
	})
}

func (h *RecordHandler) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := mux.Vars(r)["date"]
	if _, err := contracts.ParseDateKey(date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}
