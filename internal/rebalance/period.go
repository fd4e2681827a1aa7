// Package rebalance derives rebalance dates from a score table's observed dates.
package rebalance

import (
	"strings"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// Period is the rebalance frequency policy
type Period string

const (
	PeriodDay   Period = "DAY"
	PeriodWeek  Period = "WEEK"
	PeriodMonth Period = "MONTH"
)

// ParsePeriod accepts DAY/WEEK/MONTH in any case
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	}
	return "", contracts.NewConfigError("rebalance_period", s, "must be one of DAY, WEEK, MONTH")
}

func (p Period) String() string { return string(p) }

// MarshalText implements encoding.TextMarshaler
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
