package rebalance

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/contracts"
)

type dateList []civil.Date

func (l dateList) Dates() []civil.Date { return l }

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

// weekdays returns every Mon-Fri between start and end inclusive
func weekdays(start, end civil.Date) dateList {
	var out dateList
	for d := start; !d.After(end); d = d.AddDays(1) {
		wd := d.In(time.UTC).Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func TestDates_Month(t *testing.T) {
	src := weekdays(date(2024, 1, 1), date(2024, 2, 29))

	got := Dates(src, All(), PeriodMonth)
	assert.Equal(t, []civil.Date{date(2024, 1, 1), date(2024, 2, 1)}, got)
}

func TestDates_MonthFirstTradingDay(t *testing.T) {
	// 2024-06-01 은 토요일 → 첫 거래일은 06-03
	src := weekdays(date(2024, 5, 15), date(2024, 6, 20))

	got := Dates(src, All(), PeriodMonth)
	assert.Equal(t, []civil.Date{date(2024, 5, 15), date(2024, 6, 3)}, got)
}

func TestDates_Week(t *testing.T) {
	src := dateList{
		date(2024, 1, 3), date(2024, 1, 4), // ISO 2024-W01
		date(2024, 1, 9), // W02
		date(2024, 1, 17), date(2024, 1, 19), // W03
	}

	got := Dates(src, All(), PeriodWeek)
	assert.Equal(t, []civil.Date{date(2024, 1, 3), date(2024, 1, 9), date(2024, 1, 17)}, got)
}

func TestDates_WeekAcrossYearBoundary(t *testing.T) {
	// 2024-12-30 (월) 과 2025-01-02 는 같은 ISO 주 (2025-W01)
	src := dateList{date(2024, 12, 27), date(2024, 12, 30), date(2025, 1, 2), date(2025, 1, 6)}

	got := Dates(src, All(), PeriodWeek)
	assert.Equal(t, []civil.Date{date(2024, 12, 27), date(2024, 12, 30), date(2025, 1, 6)}, got)
}

func TestDates_DayWithRange(t *testing.T) {
	src := weekdays(date(2024, 3, 1), date(2024, 3, 15))
	r := DateRange{Start: date(2024, 3, 5), End: date(2024, 3, 8)}

	got := Dates(src, r, PeriodDay)
	assert.Equal(t, []civil.Date{date(2024, 3, 5), date(2024, 3, 6), date(2024, 3, 7), date(2024, 3, 8)}, got)
}

func TestDates_EmptyRange(t *testing.T) {
	src := weekdays(date(2024, 3, 1), date(2024, 3, 15))
	r := DateRange{Start: date(2025, 1, 1), End: date(2025, 2, 1)}

	got := Dates(src, r, PeriodWeek)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDates_SortedAndUnique(t *testing.T) {
	src := weekdays(date(2023, 1, 1), date(2024, 12, 31))

	for _, p := range []Period{PeriodDay, PeriodWeek, PeriodMonth} {
		got := Dates(src, All(), p)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i-1].Before(got[i]), "%s: %s !< %s", p, got[i-1], got[i])
		}
	}
	assert.Len(t, Dates(src, All(), PeriodMonth), 24)
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"DAY", PeriodDay, false},
		{"week", PeriodWeek, false},
		{" Month ", PeriodMonth, false},
		{"QUARTER", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				var cfgErr *contracts.InvalidConfigurationError
				require.True(t, errors.As(err, &cfgErr))
				assert.Equal(t, "rebalance_period", cfgErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateRange_Validate(t *testing.T) {
	assert.NoError(t, All().Validate())
	assert.NoError(t, DateRange{Start: date(2024, 1, 1), End: date(2024, 1, 1)}.Validate())
	assert.Error(t, DateRange{Start: date(2024, 2, 1), End: date(2024, 1, 1)}.Validate())
}
