package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of every date key
const DateLayout = "2006-01-02"

// VersionLatest tags the primary record of a date key
const VersionLatest = "latest"

// ErrUnknownDirection is returned when a direction word cannot be normalized
var ErrUnknownDirection = errors.New("unknown direction")

// Direction predicted sign of the next-session move
type Direction string

const (
	DirectionBullish Direction = "Bullish"
	DirectionBearish Direction = "Bearish"
)

// directionWords maps the collaborator vocabulary onto Direction
var directionWords = map[string]Direction{
	"bullish": DirectionBullish,
	"up":      DirectionBullish,
	"long":    DirectionBullish,
	"看涨":      DirectionBullish,
	"看漲":      DirectionBullish,
	"bearish": DirectionBearish,
	"down":    DirectionBearish,
	"short":   DirectionBearish,
	"看跌":      DirectionBearish,
}

// ParseDirection normalizes a direction word; it never guesses
func ParseDirection(s string) (Direction, error) {
	if d, ok := directionWords[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Valid reports whether d is Bullish or Bearish
func (d Direction) Valid() bool {
	return d == DirectionBullish || d == DirectionBearish
}

// Prediction one scored candidate inside a record
type Prediction struct {
	Symbol    string    `json:"symbol" validate:"required"`
	Direction Direction `json:"direction" validate:"required"`
}

// PredictionRecord the persisted prediction batch of one date key
type PredictionRecord struct {
	Date           string          `json:"date" validate:"required,datetime=2006-01-02"`
	TargetDate     string          `json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	IsWeekendBatch bool            `json:"is_weekend_batch"`
	SignalCount    int             `json:"signal_count" validate:"gte=0"`
	Predictions    []Prediction    `json:"predictions" validate:"dive"`
	Narrative      json.RawMessage `json:"narrative,omitempty"` // opaque, passed through untouched
	CreatedAt      time.Time       `json:"created_at"`
	VersionTag     string          `json:"version_tag"`
}

// legacyPrediction shape written by the first generation of the forecaster
type legacyPrediction struct {
	StockCode string `json:"stock_code"`
	Direction string `json:"direction"`
}

// UnmarshalJSON accepts the current layout and the legacy single-key
// "prediction" field (object or list of {stock_code, direction})
func (r *PredictionRecord) UnmarshalJSON(data []byte) error {
	type plain PredictionRecord
	aux := struct {
		*plain
		Legacy json.RawMessage `json:"prediction"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(r.Predictions) > 0 || len(aux.Legacy) == 0 || string(aux.Legacy) == "null" {
		return nil
	}

	var legacy []legacyPrediction
	if err := json.Unmarshal(aux.Legacy, &legacy); err != nil {
		var single legacyPrediction
		if err := json.Unmarshal(aux.Legacy, &single); err != nil {
			return fmt.Errorf("legacy prediction field: %w", err)
		}
		legacy = []legacyPrediction{single}
	}

	for _, lp := range legacy {
		if lp.StockCode == "" || lp.Direction == "" {
			continue
		}
		dir, err := ParseDirection(lp.Direction)
		if err != nil {
			// keep the raw word; the evaluator treats it as unevaluable
			dir = Direction(lp.Direction)
		}
		r.Predictions = append(r.Predictions, Prediction{Symbol: lp.StockCode, Direction: dir})
	}
	return nil
}

// IsLatest reports whether the record is the primary version of its date key
func (r *PredictionRecord) IsLatest() bool {
	return r.VersionTag == VersionLatest
}

// Validate checks struct tags
func (r *PredictionRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid prediction record: %w", err)
	}
	return nil
}

// ParseDateKey parses a YYYY-MM-DD date key
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}

// DateKey formats t as a date key in its own location
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// NextTradingDay returns the next weekday after t (Saturday and Sunday skipped)
func NextTradingDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
