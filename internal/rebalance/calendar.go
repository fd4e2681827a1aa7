package rebalance

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// DateRange is an inclusive date window. A zero bound is open.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// All returns an unbounded range
func All() DateRange { return DateRange{} }

// Contains reports whether d falls inside the range
func (r DateRange) Contains(d civil.Date) bool {
	if !r.Start.IsZero() && d.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && d.After(r.End) {
		return false
	}
	return true
}

// Validate rejects an inverted range
func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return contracts.NewConfigError("date_range", fmt.Sprintf("%s..%s", r.Start, r.End), "end is before start")
	}
	return nil
}

func (r DateRange) String() string {
	start, end := "-", "-"
	if !r.Start.IsZero() {
		start = r.Start.String()
	}
	if !r.End.IsZero() {
		end = r.End.String()
	}
	return start + ".." + end
}

// DateSource is anything exposing its observed dates (ascending)
type DateSource interface {
	Dates() []civil.Date
}

// Dates returns the rebalance dates of src within r for the given period.
// The result is ascending, duplicate-free, and empty (not nil) when nothing
// falls in range.
func Dates(src DateSource, r DateRange, period Period) []civil.Date {
	out := make([]civil.Date, 0)

	var lastKey [2]int
	first := true
	for _, d := range src.Dates() {
		if !r.Contains(d) {
			continue
		}

		var key [2]int
		switch period {
		case PeriodWeek:
			year, week := d.In(time.UTC).ISOWeek()
			key = [2]int{year, week}
		case PeriodMonth:
			key = [2]int{d.Year, int(d.Month)}
		default:
			out = append(out, d)
			continue
		}

		// 입력이 오름차순이므로 그룹의 첫 날짜만 유지
		if first || key != lastKey {
			out = append(out, d)
			lastKey = key
			first = false
		}
	}
	return out
}

// Set returns the dates as a lookup set
func Set(dates []civil.Date) map[civil.Date]struct{} {
	set := make(map[civil.Date]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}
