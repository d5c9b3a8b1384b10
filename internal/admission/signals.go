package admission

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

// rawSignal inbox entry before direction normalization
type rawSignal struct {
	Symbol    string `json:"symbol"`
	StockCode string `json:"stock_code"`
	Direction string `json:"direction"`
	Source    string `json:"source"`
	URL       string `json:"url"`
}

// Inbox forecaster hand-off: a bare array, or an object with signals and narrative
type Inbox struct {
	Signals   []contracts.Signal
	Narrative json.RawMessage
	Rejected  []error
}

// ParseInbox decodes and normalizes signals. Entries with an unknown direction
// or missing symbol are rejected individually and never guessed.
func ParseInbox(data []byte) (*Inbox, error) {
	var raws []rawSignal
	inbox := &Inbox{Signals: []contracts.Signal{}}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Signals   []rawSignal     `json:"signals"`
			Narrative json.RawMessage `json:"narrative"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode signals inbox: %w", err)
		}
		raws = wrapped.Signals
		inbox.Narrative = wrapped.Narrative
	} else if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode signals inbox: %w", err)
	}

	for i, raw := range raws {
		symbol := strings.TrimSpace(raw.Symbol)
		if symbol == "" {
			symbol = strings.TrimSpace(raw.StockCode)
		}
		source := raw.Source
		if source == "" {
			source = raw.URL
		}

		dir, err := contracts.ParseDirection(raw.Direction)
		if err != nil {
			inbox.Rejected = append(inbox.Rejected, fmt.Errorf("entry %d (%s): %w", i, symbol, err))
			continue
		}

		sig := contracts.Signal{Symbol: symbol, Direction: dir, Source: source}
		if err := sig.Validate(); err != nil {
			inbox.Rejected = append(inbox.Rejected, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		inbox.Signals = append(inbox.Signals, sig)
	}
	return inbox, nil
}
