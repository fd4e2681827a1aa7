package contracts

import (
	"strings"

	"cloud.google.com/go/civil"
)

// Forecast is one model score for an instrument on a day
// ⭐ SSOT: (Code, Date) 쌍이 식별자
type Forecast struct {
	Code       string     `json:"code"`
	Date       civil.Date `json:"date"`
	Score      float64    `json:"score"`
	Confidence *float64   `json:"confidence,omitempty"`
}

// HasConfidence reports whether a confidence value was supplied
func (f Forecast) HasConfidence() bool {
	return f.Confidence != nil
}

// ForecastKey identifies a forecast row
type ForecastKey struct {
	Date civil.Date
	Code string
}

// NormalizeCode returns the canonical (uppercase, trimmed) instrument code.
// 대소문자 구분 없이 조회 가능하도록 내부는 대문자로 통일
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
