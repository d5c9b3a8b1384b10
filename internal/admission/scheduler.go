package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

// DefaultReleaseHour Monday hour before which the weekend window is still closing
const DefaultReleaseHour = 3

// RecordWriter write side of the prediction record store
type RecordWriter interface {
	Write(ctx context.Context, record *contracts.PredictionRecord) error
}

// Scheduler weekend-window admission control
// ⭐ SSOT: the only owner of WeekendBuffer files
type Scheduler struct {
	buffers     *BufferStore
	records     RecordWriter
	loc         *time.Location
	releaseHour int
	log         zerolog.Logger
	now         func() time.Time
}

// NewScheduler creates the admission scheduler for a market time zone
func NewScheduler(buffers *BufferStore, records RecordWriter, loc *time.Location, releaseHour int, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		buffers:     buffers,
		records:     records,
		loc:         loc,
		releaseHour: releaseHour,
		log:         log.With().Str("component", "admission.scheduler").Logger(),
		now:         time.Now,
	}
}

// WithClock overrides the wall clock (tests)
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// AnchorFor the Friday of the window containing t (t itself on a Friday)
func AnchorFor(t time.Time) time.Time {
	// days since the most recent Friday: Fri 0, Sat 1, Sun 2, Mon 3 ... Thu 6
	since := (int(t.Weekday()) - int(time.Friday) + 7) % 7
	d := t.AddDate(0, 0, -since)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// StateAt admission state for a local time
func (s *Scheduler) StateAt(t time.Time) contracts.AdmissionState {
	switch t.Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return contracts.StateAccumulating
	default:
		return contracts.StateFlowing
	}
}

// InReleaseWindow reports whether now falls in the Monday release window
func (s *Scheduler) InReleaseWindow() bool {
	return s.inReleaseWindow(s.now().In(s.loc))
}

// inReleaseWindow Monday before the release hour
func (s *Scheduler) inReleaseWindow(t time.Time) bool {
	return t.Weekday() == time.Monday && t.Hour() < s.releaseHour
}

// Decide runs the state machine for today's signals.
// Accumulating runs persist the buffer; a release leaves the buffer in place
// until the emission succeeds (see Admit).
func (s *Scheduler) Decide(ctx context.Context, signals []contracts.Signal) (*contracts.AdmissionDecision, error) {
	now := s.now().In(s.loc)
	today := contracts.DateKey(now)
	target := contracts.DateKey(contracts.NextTradingDay(now))

	if s.inReleaseWindow(now) {
		return s.releaseCheck(ctx, now, target)
	}

	if s.StateAt(now) == contracts.StateFlowing {
		return &contracts.AdmissionDecision{
			Kind:       contracts.DecisionEmit,
			State:      contracts.StateFlowing,
			Signals:    signals,
			TargetDate: target,
		}, nil
	}

	anchor := AnchorFor(now)
	s.warnStale(anchor)

	buf, err := s.buffers.Load(ctx, anchor)
	if err != nil {
		return nil, err
	}
	if buf == nil {
		buf = &contracts.WeekendBuffer{
			AnchorDate:         contracts.DateKey(anchor),
			AccumulatedSignals: []contracts.Signal{},
			CoveredDates:       []string{},
		}
	}

	if buf.Covers(today) {
		s.log.Info().
			Str("date", today).
			Int("buffered", len(buf.AccumulatedSignals)).
			Msg("today already folded into the weekend buffer")
		return buffered(len(buf.AccumulatedSignals)), nil
	}

	added := buf.Append(today, signals)
	if err := s.buffers.Save(ctx, buf); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("anchor", buf.AnchorDate).
		Str("date", today).
		Int("added", added).
		Int("buffered", len(buf.AccumulatedSignals)).
		Msg("signals accumulated into weekend buffer")
	return buffered(len(buf.AccumulatedSignals)), nil
}

func (s *Scheduler) releaseCheck(ctx context.Context, now time.Time, target string) (*contracts.AdmissionDecision, error) {
	anchor := AnchorFor(now)
	s.warnStale(anchor)

	buf, err := s.buffers.Load(ctx, anchor)
	if err != nil {
		return nil, err
	}
	if buf == nil || len(buf.AccumulatedSignals) == 0 {
		s.log.Info().Str("anchor", contracts.DateKey(anchor)).Msg("release window open but nothing buffered, waiting")
		d := buffered(0)
		d.Waiting = true
		return d, nil
	}

	return &contracts.AdmissionDecision{
		Kind:           contracts.DecisionBufferReleased,
		State:          contracts.StateAccumulating,
		Signals:        buf.AccumulatedSignals,
		TargetDate:     target,
		IsWeekendBatch: true,
		AnchorDate:     buf.AnchorDate,
	}, nil
}

// Admit runs Decide and, for Emit and BufferReleased, writes the prediction
// record. The released buffer is deleted only after the write succeeded.
func (s *Scheduler) Admit(ctx context.Context, signals []contracts.Signal, narrative json.RawMessage) (*contracts.AdmissionDecision, error) {
	decision, err := s.Decide(ctx, signals)
	if err != nil {
		return nil, err
	}

	switch decision.Kind {
	case contracts.DecisionEmit:
		rec := newRecord(contracts.DateKey(s.now().In(s.loc)), decision, narrative)
		if err := s.records.Write(ctx, rec); err != nil {
			return nil, fmt.Errorf("emit record: %w", err)
		}

	case contracts.DecisionBufferReleased:
		rec := newRecord(decision.AnchorDate, decision, narrative)
		if err := s.records.Write(ctx, rec); err != nil {
			return nil, fmt.Errorf("emit weekend batch: %w", err)
		}
		anchor, err := contracts.ParseDateKey(decision.AnchorDate)
		if err != nil {
			return nil, err
		}
		if err := s.buffers.Delete(ctx, anchor); err != nil {
			// the record is durable; a leftover buffer is swept by retention
			s.log.Error().Err(err).Str("anchor", decision.AnchorDate).Msg("failed to delete released weekend buffer")
		}
		s.log.Info().
			Str("anchor", decision.AnchorDate).
			Int("signals", len(decision.Signals)).
			Msg("weekend buffer released")
	}

	return decision, nil
}

// warnStale logs buffers left over from earlier windows
func (s *Scheduler) warnStale(current time.Time) {
	anchors, err := s.buffers.Anchors()
	if err != nil {
		s.log.Warn().Err(err).Msg("cannot list weekend buffers")
		return
	}
	for _, a := range anchors {
		if a.Before(current) {
			s.log.Warn().Str("anchor", contracts.DateKey(a)).Msg("stale weekend buffer left for retention")
		}
	}
}

func buffered(count int) *contracts.AdmissionDecision {
	return &contracts.AdmissionDecision{
		Kind:          contracts.DecisionBuffered,
		State:         contracts.StateAccumulating,
		BufferedCount: count,
	}
}

func newRecord(dateKey string, d *contracts.AdmissionDecision, narrative json.RawMessage) *contracts.PredictionRecord {
	preds := make([]contracts.Prediction, 0, len(d.Signals))
	for _, sig := range d.Signals {
		preds = append(preds, sig.Prediction())
	}
	return &contracts.PredictionRecord{
		Date:           dateKey,
		TargetDate:     d.TargetDate,
		IsWeekendBatch: d.IsWeekendBatch,
		SignalCount:    len(d.Signals),
		Predictions:    preds,
		Narrative:      narrative,
	}
}
