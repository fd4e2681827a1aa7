package contracts

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// SignalType 매매 시그널 종류
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// IsActionable reports whether the signal should reach the execution engine
func (t SignalType) IsActionable() bool {
	return t == SignalBuy || t == SignalSell
}

// SignalStrength 시그널 강도
type SignalStrength string

const (
	StrengthWeak   SignalStrength = "WEAK"
	StrengthMedium SignalStrength = "MEDIUM"
	StrengthStrong SignalStrength = "STRONG"
)

// TradingSignal is the engine's output record
// ⭐ SSOT: 시그널 엔진 → 백테스트 엔진 전달 포맷
type TradingSignal struct {
	Code         string              `json:"code"`
	Date         civil.Date          `json:"signal_date"`
	Type         SignalType          `json:"signal_type"`
	Strength     SignalStrength      `json:"signal_strength"`
	Price        decimal.NullDecimal `json:"price"`
	Reason       string              `json:"reason,omitempty"`
	Score        *float64            `json:"score,omitempty"`
	BarTimestamp int64               `json:"bar_ts,omitempty"` // YYYYMMDDHHMM
}

// Key returns the signal identity
func (s TradingSignal) Key() ForecastKey {
	return ForecastKey{Date: s.Date, Code: s.Code}
}

func (s TradingSignal) String() string {
	return fmt.Sprintf("%s %s %s/%s", s.Date, s.Code, s.Type, s.Strength)
}
