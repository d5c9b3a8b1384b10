package backtest

import "github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"

// Evaluate scores a direction against a realized change.
// Bullish is correct iff change > 0 and earns change; Bearish is correct iff
// change < 0 and earns -change. A zero change is incorrect for both.
// Unknown directions and a nil change are not evaluable (ok=false).
func Evaluate(direction contracts.Direction, change *float64) (correct bool, ret float64, ok bool) {
	if change == nil {
		return false, 0, false
	}

	switch direction {
	case contracts.DirectionBullish:
		return *change > 0, *change, true
	case contracts.DirectionBearish:
		ret := -*change
		if ret == 0 {
			ret = 0 // no negative zero in persisted history
		}
		return *change < 0, ret, true
	default:
		return false, 0, false
	}
}
