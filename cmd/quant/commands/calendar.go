package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/rebalance"
	"github.com/wonny/aegis-signal/internal/scoretable"
)

// calendarCmd prints the rebalance dates of the forecast table
var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "리밸런싱 날짜 출력",
	Long: `예측 테이블의 날짜 중 리밸런싱 날짜를 출력합니다.
DAY 는 모든 날짜, WEEK 는 ISO 주 첫 거래일, MONTH 는 월 첫 거래일.

Example:
  go run ./cmd/quant calendar --period month --start 2024-01-01`,
	RunE: runCalendar,
}

var (
	calendarForecast string
	calendarPeriod   string
	calendarStart    string
	calendarEnd      string
)

func init() {
	rootCmd.AddCommand(calendarCmd)

	calendarCmd.Flags().StringVar(&calendarForecast, "forecast", "", "forecast CSV")
	calendarCmd.Flags().StringVar(&calendarPeriod, "period", "", "DAY|WEEK|MONTH (default: strategy rebalance_period)")
	calendarCmd.Flags().StringVar(&calendarStart, "start", "", "시작일 (포함)")
	calendarCmd.Flags().StringVar(&calendarEnd, "end", "", "종료일 (포함)")
}

func runCalendar(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	ecfg, _, err := d.strategy()
	if err != nil {
		return err
	}

	period := ecfg.RebalancePeriod
	if calendarPeriod != "" {
		if period, err = rebalance.ParsePeriod(calendarPeriod); err != nil {
			return err
		}
	}

	rng, err := ecfg.DateRange.Range()
	if err != nil {
		return err
	}
	if calendarStart != "" {
		if rng.Start, err = scoretable.ParseDate(calendarStart); err != nil {
			return err
		}
	}
	if calendarEnd != "" {
		if rng.End, err = scoretable.ParseDate(calendarEnd); err != nil {
			return err
		}
	}
	if err := rng.Validate(); err != nil {
		return err
	}

	table, err := d.forecasts(cmd.Context(), ecfg, calendarForecast)
	if err != nil {
		return err
	}

	dates := rebalance.Dates(table, rng, period)
	PrintHeader(fmt.Sprintf("Rebalance calendar %s %s (%d)", period, rng, len(dates)))
	for _, dt := range dates {
		fmt.Printf("   %s  %s\n", dt, dt.In(time.UTC).Weekday().String()[:3])
	}
	return nil
}
