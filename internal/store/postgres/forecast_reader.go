package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-signal/internal/rebalance"
	"github.com/wonny/aegis-signal/internal/scoretable"
)

// DefaultForecastTable 예측 점수 테이블
const DefaultForecastTable = "analytics.forecast_scores"

// ForecastReader loads forecast rows as a scoretable.Frame
type ForecastReader struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
}

// NewForecastReader table 은 "schema.table" 또는 "table"
func NewForecastReader(pool *pgxpool.Pool, table string) *ForecastReader {
	if table == "" {
		table = DefaultForecastTable
	}
	return &ForecastReader{pool: pool, table: pgx.Identifier(strings.Split(table, "."))}
}

// Table returns the sanitized table name
func (r *ForecastReader) Table() string {
	return r.table.Sanitize()
}

// ReadFrame reads (score_date, code, score, confidence) rows within rng.
// An open range bound reads everything on that side.
func (r *ForecastReader) ReadFrame(ctx context.Context, rng rebalance.DateRange) (scoretable.Frame, error) {
	query, args := forecastQuery(r.Table(), rng)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return scoretable.Frame{}, fmt.Errorf("query %s: %w", r.Table(), err)
	}
	defer rows.Close()

	frame := scoretable.Frame{
		Source:     "postgres:" + r.Table(),
		IndexNames: []string{"date", "instrument"},
		Columns:    []string{"score", "confidence"},
	}
	for rows.Next() {
		var (
			date  time.Time
			code  string
			score *float64
			conf  *float64
		)
		if err := rows.Scan(&date, &code, &score, &conf); err != nil {
			return scoretable.Frame{}, err
		}
		frame.Rows = append(frame.Rows, scoretable.Row{
			Index:  []string{civil.DateOf(date).String(), code},
			Values: []string{formatNullable(score), formatNullable(conf)},
		})
	}
	if err := rows.Err(); err != nil {
		return scoretable.Frame{}, err
	}
	return frame, nil
}

func forecastQuery(table string, rng rebalance.DateRange) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !rng.Start.IsZero() {
		args = append(args, rng.Start.In(time.UTC))
		where = append(where, fmt.Sprintf("score_date >= $%d", len(args)))
	}
	if !rng.End.IsZero() {
		args = append(args, rng.End.In(time.UTC))
		where = append(where, fmt.Sprintf("score_date <= $%d", len(args)))
	}

	query := "SELECT score_date, code, score, confidence FROM " + table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY score_date, code"
	return query, args
}

func formatNullable(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
