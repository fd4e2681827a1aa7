package scoretable

import (
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wonny/aegis-signal/internal/timealign"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006/01/02",
}

// ParseDate reads a date key, discarding any time of day.
// 숫자만 있는 경우 YYYYMMDD 또는 YYYYMMDDHHMM으로 해석
func ParseDate(s string) (civil.Date, error) {
	if isDigits(s) && (len(s) == 8 || len(s) == 12) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			d := timealign.ToDateKey(n)
			if d.IsValid() {
				return d, nil
			}
		}
		return civil.Date{}, fmt.Errorf("invalid compact date %q", s)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognised date %q", s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
