// Package strategyconfig loads the immutable signal engine configuration.
package strategyconfig

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wonny/aegis-signal/internal/classifier"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/rebalance"
	"github.com/wonny/aegis-signal/internal/topk"
)

// DefaultTopK is used when the file does not set top_k
const DefaultTopK = 50

// Mode selects the signal source
type Mode string

const (
	// ModePool: Top-K 풀 진입/이탈 상태머신
	ModePool Mode = "POOL"
	// ModeThreshold: 점수/신뢰도 임계값 분류
	ModeThreshold Mode = "THRESHOLD"
	// ModePoolThreshold: 임계값 분류 + BUY 는 풀 멤버만
	ModePoolThreshold Mode = "POOL_THRESHOLD"
)

// ParseMode accepts a mode name in any case
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModePool, ModeThreshold, ModePoolThreshold:
		return m, nil
	}
	return "", contracts.NewConfigError("mode", s, "must be one of POOL, THRESHOLD, POOL_THRESHOLD")
}

// UsesPool reports whether the mode needs a Top-K index
func (m Mode) UsesPool() bool { return m == ModePool || m == ModePoolThreshold }

// UsesThresholds reports whether the mode runs the classifier
func (m Mode) UsesThresholds() bool { return m == ModeThreshold || m == ModePoolThreshold }

// MarshalText implements encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) { return []byte(m), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// EngineConfig is the full signal engine configuration.
// ⭐ SSOT: 로드/검증 이후 변경 없이 명시적으로 전달
type EngineConfig struct {
	Meta            Meta                  `yaml:"meta" toml:"meta" json:"meta"`
	Mode            Mode                  `yaml:"mode" toml:"mode" json:"mode" default:"POOL"`
	TopK            topk.Size             `yaml:"top_k" toml:"top_k" json:"top_k"`
	RebalancePeriod rebalance.Period      `yaml:"rebalance_period" toml:"rebalance_period" json:"rebalance_period" default:"WEEK"`
	Thresholds      classifier.Thresholds `yaml:"thresholds" toml:"thresholds" json:"thresholds"`
	DateRange       Window                `yaml:"date_range" toml:"date_range" json:"date_range"`
	Source          Source                `yaml:"source" toml:"source" json:"source"`
	Workers         int                   `yaml:"workers" toml:"workers" json:"workers" validate:"gte=0"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" toml:"strategy_id" json:"strategy_id" default:"default" validate:"required"`
	Version    string `yaml:"version" toml:"version" json:"version"`
}

// Window is an inclusive date window; empty bounds are open
type Window struct {
	Start string `yaml:"start" toml:"start" json:"start" validate:"omitempty,datetime=2006-01-02"` // YYYY-MM-DD
	End   string `yaml:"end" toml:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`
}

// Range converts the window to a rebalance.DateRange
func (w Window) Range() (rebalance.DateRange, error) {
	var r rebalance.DateRange
	if w.Start != "" {
		d, err := civil.ParseDate(w.Start)
		if err != nil {
			return r, contracts.NewConfigError("date_range.start", w.Start, err.Error())
		}
		r.Start = d
	}
	if w.End != "" {
		d, err := civil.ParseDate(w.End)
		if err != nil {
			return r, contracts.NewConfigError("date_range.end", w.End, err.Error())
		}
		r.End = d
	}
	return r, r.Validate()
}

// Source describes where forecasts come from
type Source struct {
	Kind        string `yaml:"kind" toml:"kind" json:"kind" default:"csv" validate:"oneof=csv postgres http"`
	Path        string `yaml:"path" toml:"path" json:"path"`
	ScoreColumn string `yaml:"score_column" toml:"score_column" json:"score_column" validate:"omitempty,oneof=score score_0 pred prediction"`
}

// Default returns a config with every default applied
func Default() *EngineConfig {
	cfg := &EngineConfig{TopK: topk.Of(DefaultTopK)}
	_ = applyDefaults(cfg)
	return cfg
}

// RunSnapshot 재현성을 위한 실행 스냅샷
type RunSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigRaw  string    `json:"config_raw"`
	StrategyID string    `json:"strategy_id"`
	Mode       Mode      `json:"mode"`
	CreatedAt  time.Time `json:"created_at"`
}
