package contracts

import "fmt"

// Signal one {symbol, direction} candidate handed over by the forecaster
type Signal struct {
	Symbol    string    `json:"symbol" validate:"required"`
	Direction Direction `json:"direction" validate:"required,oneof=Bullish Bearish"`
	Source    string    `json:"source,omitempty"` // e.g. headline URL
}

// Identity dedup key: source when present, else symbol|direction
func (s Signal) Identity() string {
	if s.Source != "" {
		return s.Source
	}
	return s.Symbol + "|" + string(s.Direction)
}

// Prediction projects the signal onto a record entry
func (s Signal) Prediction() Prediction {
	return Prediction{Symbol: s.Symbol, Direction: s.Direction}
}

// Validate checks struct tags
func (s Signal) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid signal %q: %w", s.Symbol, err)
	}
	return nil
}

// WeekendBuffer signals gathered over one Friday-Sunday window
type WeekendBuffer struct {
	AnchorDate         string   `json:"anchor_date"` // Friday of the window
	AccumulatedSignals []Signal `json:"accumulated_signals"`
	CoveredDates       []string `json:"covered_dates"`
}

// Covers reports whether a calendar date was already folded in
func (b *WeekendBuffer) Covers(dateKey string) bool {
	for _, d := range b.CoveredDates {
		if d == dateKey {
			return true
		}
	}
	return false
}

// Append adds signals not seen before (by identity) and marks dateKey covered.
// Returns the number of signals actually added.
func (b *WeekendBuffer) Append(dateKey string, signals []Signal) int {
	seen := make(map[string]struct{}, len(b.AccumulatedSignals))
	for _, s := range b.AccumulatedSignals {
		seen[s.Identity()] = struct{}{}
	}

	added := 0
	for _, s := range signals {
		id := s.Identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		b.AccumulatedSignals = append(b.AccumulatedSignals, s)
		added++
	}

	if !b.Covers(dateKey) {
		b.CoveredDates = append(b.CoveredDates, dateKey)
	}
	return added
}

// AdmissionState state of the admission scheduler
type AdmissionState string

const (
	StateFlowing      AdmissionState = "Flowing"
	StateAccumulating AdmissionState = "Accumulating"
)

// DecisionKind exactly one per admission run
type DecisionKind string

const (
	DecisionEmit           DecisionKind = "emit"
	DecisionBuffered       DecisionKind = "buffered"
	DecisionBufferReleased DecisionKind = "buffer_released"
)

// AdmissionDecision result of one admission run
type AdmissionDecision struct {
	Kind           DecisionKind   `json:"kind"`
	State          AdmissionState `json:"state"`
	Signals        []Signal       `json:"signals,omitempty"`    // Emit, BufferReleased
	TargetDate     string         `json:"target_date,omitempty"` // Emit, BufferReleased
	IsWeekendBatch bool           `json:"is_weekend_batch"`
	AnchorDate     string         `json:"anchor_date,omitempty"` // BufferReleased
	BufferedCount  int            `json:"buffered_count"`        // Buffered
	Waiting        bool           `json:"waiting,omitempty"`     // Monday release window with nothing buffered
}

// ConsumedSignals reports whether the run took the signals it was handed,
// either into a record (Emit) or into the weekend buffer. A release emits
// the buffer only, and the release window never folds new signals.
func (d *AdmissionDecision) ConsumedSignals() bool {
	switch d.Kind {
	case DecisionEmit:
		return true
	case DecisionBuffered:
		return !d.Waiting
	default:
		return false
	}
}
