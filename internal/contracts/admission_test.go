package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalIdentity(t *testing.T) {
	assert.Equal(t, "https://news/1", Signal{Symbol: "7203.T", Direction: DirectionBullish, Source: "https://news/1"}.Identity())
	assert.Equal(t, "7203.T|Bullish", Signal{Symbol: "7203.T", Direction: DirectionBullish}.Identity())
}

func TestSignalValidate(t *testing.T) {
	assert.NoError(t, Signal{Symbol: "7203.T", Direction: DirectionBearish}.Validate())
	assert.Error(t, Signal{Symbol: "7203.T", Direction: "Sideways"}.Validate())
	assert.Error(t, Signal{Direction: DirectionBullish}.Validate())
}

func TestWeekendBufferAppend(t *testing.T) {
	buf := &WeekendBuffer{AnchorDate: "2025-01-10"}
	a := Signal{Symbol: "A", Direction: DirectionBullish, Source: "u1"}
	b := Signal{Symbol: "B", Direction: DirectionBearish}

	assert.Equal(t, 2, buf.Append("2025-01-10", []Signal{a, b}))
	assert.Equal(t, 0, buf.Append("2025-01-11", []Signal{a, b}))
	assert.Equal(t, 1, buf.Append("2025-01-11", []Signal{{Symbol: "C", Direction: DirectionBullish}}))

	assert.Len(t, buf.AccumulatedSignals, 3)
	assert.Equal(t, []string{"2025-01-10", "2025-01-11"}, buf.CoveredDates)
	assert.True(t, buf.Covers("2025-01-11"))
	assert.False(t, buf.Covers("2025-01-12"))
}

func TestAdmissionDecisionConsumedSignals(t *testing.T) {
	assert.True(t, (&AdmissionDecision{Kind: DecisionEmit}).ConsumedSignals())
	assert.True(t, (&AdmissionDecision{Kind: DecisionBuffered, BufferedCount: 2}).ConsumedSignals())
	assert.False(t, (&AdmissionDecision{Kind: DecisionBuffered, Waiting: true}).ConsumedSignals())
	assert.False(t, (&AdmissionDecision{Kind: DecisionBufferReleased}).ConsumedSignals())
}
