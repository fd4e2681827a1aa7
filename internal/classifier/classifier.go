// Package classifier maps a single forecast to a signal type and strength.
package classifier

import (
	"fmt"
	"math"

	"github.com/wonny/aegis-signal/internal/contracts"
)

const (
	// strongConfidence is the confidence required for a STRONG signal
	strongConfidence = 0.8
	// mediumConfidence alone is enough for MEDIUM
	mediumConfidence = 0.7
	// mediumMagnitudeRatio scales Strong into the MEDIUM magnitude bar
	mediumMagnitudeRatio = 0.6
)

// ReasonBuySuppressed marks a BUY withheld because the code is outside the pool
const ReasonBuySuppressed = "buy suppressed: not in top-k pool"

// Thresholds configures the classifier
type Thresholds struct {
	Buy           float64 `json:"buy_threshold" yaml:"buy_threshold" toml:"buy_threshold" default:"0.02"`
	Sell          float64 `json:"sell_threshold" yaml:"sell_threshold" toml:"sell_threshold" default:"-0.02"`
	Strong        float64 `json:"strong_threshold" yaml:"strong_threshold" toml:"strong_threshold" default:"0.05" validate:"gte=0"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" toml:"min_confidence" default:"0.6" validate:"gte=0,lte=1"`
}

// Validate checks cross-field constraints
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"buy_threshold":    t.Buy,
		"sell_threshold":   t.Sell,
		"strong_threshold": t.Strong,
		"min_confidence":   t.MinConfidence,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return contracts.NewConfigError(name, fmt.Sprint(v), "must be finite")
		}
	}
	if t.Buy <= t.Sell {
		return contracts.NewConfigError("buy_threshold", fmt.Sprint(t.Buy),
			fmt.Sprintf("must be greater than sell_threshold=%v", t.Sell))
	}
	if t.Strong < 0 {
		return contracts.NewConfigError("strong_threshold", fmt.Sprint(t.Strong), "must be >= 0")
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return contracts.NewConfigError("min_confidence", fmt.Sprint(t.MinConfidence), "must be in [0,1]")
	}
	return nil
}

func (t Thresholds) String() string {
	return fmt.Sprintf("buy=%v sell=%v strong=%v min_conf=%v", t.Buy, t.Sell, t.Strong, t.MinConfidence)
}

// Decision is a classification result
type Decision struct {
	Type     contracts.SignalType
	Strength contracts.SignalStrength
	Reason   string
}

// Classifier is stateless once built
type Classifier struct {
	th Thresholds
}

// New validates the thresholds; invalid combinations fail here, never per call
func New(th Thresholds) (*Classifier, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{th: th}, nil
}

// Thresholds returns the configured thresholds
func (c *Classifier) Thresholds() Thresholds { return c.th }

// Classify maps (score, confidence) to a decision. A nil confidence passes
// the gate and counts as full confidence for strength.
func (c *Classifier) Classify(score float64, confidence *float64) Decision {
	conf := 1.0
	if confidence != nil {
		conf = *confidence
		if conf < c.th.MinConfidence {
			return Decision{
				Type:     contracts.SignalHold,
				Strength: contracts.StrengthMedium,
				Reason:   fmt.Sprintf("confidence %.2f < min %.2f", conf, c.th.MinConfidence),
			}
		}
	}

	switch {
	case score > c.th.Buy:
		return Decision{
			Type:     contracts.SignalBuy,
			Strength: c.strength(score, conf),
			Reason:   fmt.Sprintf("score %.4f > buy %.4f", score, c.th.Buy),
		}
	case score < c.th.Sell:
		return Decision{
			Type:     contracts.SignalSell,
			Strength: c.strength(score, conf),
			Reason:   fmt.Sprintf("score %.4f < sell %.4f", score, c.th.Sell),
		}
	default:
		return Decision{Type: contracts.SignalHold, Strength: contracts.StrengthMedium}
	}
}

// ClassifyInPool applies the pool gate: BUY needs membership, SELL does not
func (c *Classifier) ClassifyInPool(score float64, confidence *float64, inPool bool) Decision {
	d := c.Classify(score, confidence)
	if d.Type == contracts.SignalBuy && !inPool {
		return Decision{
			Type:     contracts.SignalHold,
			Strength: contracts.StrengthMedium,
			Reason:   ReasonBuySuppressed,
		}
	}
	return d
}

// ClassifyForecast is Classify over a Forecast
func (c *Classifier) ClassifyForecast(f contracts.Forecast) Decision {
	return c.Classify(f.Score, f.Confidence)
}

func (c *Classifier) strength(score, conf float64) contracts.SignalStrength {
	mag := math.Abs(score)
	switch {
	case mag >= c.th.Strong && conf >= strongConfidence:
		return contracts.StrengthStrong
	case mag >= mediumMagnitudeRatio*c.th.Strong || conf >= mediumConfidence:
		return contracts.StrengthMedium
	default:
		return contracts.StrengthWeak
	}
}
