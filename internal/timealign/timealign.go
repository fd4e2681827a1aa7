// Package timealign converts between compact bar timestamps and the
// day-granularity date keys used by the score table.
//
// Compact encoding: year*1e8 + month*1e6 + day*1e4 + hour*100 + minute
// (e.g. 202401150930 = 2024-01-15 09:30).
package timealign

import (
	"time"

	"cloud.google.com/go/civil"
)

const (
	yearFactor  = 100_000_000
	monthFactor = 1_000_000
	dayFactor   = 10_000
	hourFactor  = 100
	dateOnlyMax = 99_999_999 // 8자리 이하 = 날짜만 있는 타임스탬프
)

// ToDateKey truncates a compact timestamp to its calendar date.
// Encodings with eight digits or fewer are treated as date-only (YYYYMMDD),
// zero-filled on the left. Nothing here returns an error: an out-of-range
// field simply yields a date that is not present in any table.
func ToDateKey(ts int64) civil.Date {
	if ts < 0 {
		ts = -ts
	}
	if ts <= dateOnlyMax {
		ts *= dayFactor
	}

	return civil.Date{
		Year:  int(ts / yearFactor),
		Month: time.Month((ts / monthFactor) % 100),
		Day:   int((ts / dayFactor) % 100),
	}
}

// FromDateKey rebuilds the compact encoding for a date and time of day.
// ToDateKey(FromDateKey(d, h, m)) == d holds for years 1 through 9999.
// Year 0 encodes to eight digits or fewer and reads back as date-only.
func FromDateKey(d civil.Date, hour, minute int) int64 {
	return int64(d.Year)*yearFactor +
		int64(d.Month)*monthFactor +
		int64(d.Day)*dayFactor +
		int64(hour)*hourFactor +
		int64(minute)
}

// FromTime encodes a wall-clock time (in its own location) to the compact form.
func FromTime(t time.Time) int64 {
	return FromDateKey(civil.DateOf(t), t.Hour(), t.Minute())
}

// Clock returns the hour and minute carried by a compact timestamp.
// Date-only encodings report 00:00.
func Clock(ts int64) (hour, minute int) {
	if ts < 0 {
		ts = -ts
	}
	if ts <= dateOnlyMax {
		return 0, 0
	}
	return int((ts / hourFactor) % 100), int(ts % hourFactor)
}

// DateOf converts a time to the date key, dropping time of day.
func DateOf(t time.Time) civil.Date {
	return civil.DateOf(t)
}
