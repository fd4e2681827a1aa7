package signalengine

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/wonny/aegis-signal/internal/classifier"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/holdings"
	"github.com/wonny/aegis-signal/internal/topk"
)

// Decision is a source's verdict for one (date, code)
type Decision struct {
	Type     contracts.SignalType
	Strength contracts.SignalStrength
	Reason   string
	Score    *float64
}

// Source decides what to do for a code on a rebalance date.
// ok=false is a lookup miss: the evaluation is skipped and the run continues.
type Source interface {
	Mode() string
	Decide(date civil.Date, code string, tracker *holdings.Tracker) (d Decision, ok bool)
}

// ScoreLookup is the read side of a score table
type ScoreLookup interface {
	Lookup(date civil.Date, code string) (contracts.Forecast, bool)
}

// PoolMembershipSource emits BUY on pool entry and SELL on pool exit
type PoolMembershipSource struct {
	index *topk.Index
}

// NewPoolMembershipSource wraps a Top-K index
func NewPoolMembershipSource(index *topk.Index) *PoolMembershipSource {
	return &PoolMembershipSource{index: index}
}

// Mode implements Source
func (s *PoolMembershipSource) Mode() string { return "POOL" }

// Decide implements Source
func (s *PoolMembershipSource) Decide(date civil.Date, code string, tracker *holdings.Tracker) (Decision, bool) {
	if !s.index.HasDate(date) {
		return Decision{}, false
	}

	inPool := s.index.IsInPool(date, code)
	d := Decision{Type: contracts.SignalHold, Strength: contracts.StrengthMedium}
	switch tracker.Step(code, inPool) {
	case holdings.Enter:
		d.Type = contracts.SignalBuy
		d.Reason = fmt.Sprintf("entered top-%s pool", s.index.K())
	case holdings.Exit:
		d.Type = contracts.SignalSell
		d.Reason = fmt.Sprintf("left top-%s pool", s.index.K())
	}
	if score, ok := s.index.ScoreOf(code, date); ok {
		d.Score = &score
	}
	return d, true
}

// Reasons for a threshold verdict that did not change the holding
const (
	ReasonAlreadyHeld = "already held"
	ReasonNotHeld     = "not held"
)

// ThresholdSource classifies each forecast by magnitude and confidence.
// BUY needs the code not held and SELL needs it held, so only entries and
// exits are signalled. With a pool attached, BUY also requires Top-K membership.
type ThresholdSource struct {
	classifier *classifier.Classifier
	scores     ScoreLookup
	pool       *topk.Index
}

// NewThresholdSource builds an ungated threshold source
func NewThresholdSource(c *classifier.Classifier, scores ScoreLookup) *ThresholdSource {
	return &ThresholdSource{classifier: c, scores: scores}
}

// WithPool returns a copy gated on the index's pools
func (s *ThresholdSource) WithPool(index *topk.Index) *ThresholdSource {
	cp := *s
	cp.pool = index
	return &cp
}

// Mode implements Source
func (s *ThresholdSource) Mode() string {
	if s.pool != nil {
		return "POOL_THRESHOLD"
	}
	return "THRESHOLD"
}

// Decide implements Source
func (s *ThresholdSource) Decide(date civil.Date, code string, tracker *holdings.Tracker) (Decision, bool) {
	f, ok := s.scores.Lookup(date, code)
	if !ok {
		return Decision{}, false
	}

	var cd classifier.Decision
	if s.pool != nil {
		cd = s.classifier.ClassifyInPool(f.Score, f.Confidence, s.pool.IsInPool(date, code))
	} else {
		cd = s.classifier.ClassifyForecast(f)
	}
	score := f.Score
	d := Decision{Type: cd.Type, Strength: cd.Strength, Reason: cd.Reason, Score: &score}

	// 보유 상태 전이일 때만 BUY/SELL
	held := tracker.IsHeld(code)
	switch {
	case cd.Type == contracts.SignalBuy && held,
		cd.Reason == classifier.ReasonBuySuppressed && held:
		d.Type, d.Strength, d.Reason = contracts.SignalHold, contracts.StrengthMedium, ReasonAlreadyHeld
	case cd.Type == contracts.SignalSell && !held:
		d.Type, d.Strength, d.Reason = contracts.SignalHold, contracts.StrengthMedium, ReasonNotHeld
	}
	tracker.Apply(code, d.Type)
	return d, true
}
