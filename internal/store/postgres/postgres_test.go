package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/rebalance"
	"github.com/wonny/aegis-signal/internal/store"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
)

func TestForecastQuery(t *testing.T) {
	q, args := forecastQuery(`"analytics"."forecast_scores"`, rebalance.All())
	assert.Equal(t, `SELECT score_date, code, score, confidence FROM "analytics"."forecast_scores" ORDER BY score_date, code`, q)
	assert.Empty(t, args)

	rng := rebalance.DateRange{
		Start: civil.Date{Year: 2024, Month: time.January, Day: 1},
		End:   civil.Date{Year: 2024, Month: time.June, Day: 30},
	}
	q, args = forecastQuery("t", rng)
	assert.Contains(t, q, "WHERE score_date >= $1 AND score_date <= $2")
	require.Len(t, args, 2)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), args[0])

	_, args = forecastQuery("t", rebalance.DateRange{End: rng.End})
	assert.Len(t, args, 1)
}

func TestNewForecastReader_TableName(t *testing.T) {
	assert.Equal(t, `"analytics"."forecast_scores"`, NewForecastReader(nil, "").Table())
	assert.Equal(t, `"scores"`, NewForecastReader(nil, "scores").Table())
	// 식별자 인젝션 방지
	assert.Equal(t, `"x; drop table y"`, NewForecastReader(nil, "x; drop table y").Table())
}

func TestFormatNullable(t *testing.T) {
	v := 0.125
	assert.Equal(t, "", formatNullable(nil))
	assert.Equal(t, "0.125", formatNullable(&v))
}

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestSignalRepository_RoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewSignalRepository(pool)
	require.NoError(t, repo.Migrate(ctx))

	score := 0.31
	signals := []contracts.TradingSignal{
		{
			Code: "SH600000", Date: civil.Date{Year: 2024, Month: time.March, Day: 4},
			Type: contracts.SignalBuy, Strength: contracts.StrengthMedium,
			Price:  decimal.NewNullDecimal(decimal.RequireFromString("12.3400")),
			Reason: "entered pool", Score: &score, BarTimestamp: 202403040930,
		},
		{
			Code: "SZ000001", Date: civil.Date{Year: 2024, Month: time.March, Day: 4},
			Type: contracts.SignalSell, Strength: contracts.StrengthWeak, BarTimestamp: 202403040930,
		},
	}
	snap := &strategyconfig.RunSnapshot{ConfigHash: "h", StrategyID: "it", Mode: strategyconfig.ModePool, CreatedAt: time.Now()}
	run := store.NewRun(snap, "postgres", signals, 0)
	require.NoError(t, repo.SaveRun(ctx, run, signals))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM signal.runs WHERE id = $1", run.ID)
	})

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Buy)
	assert.Equal(t, 1, got.Sell)

	list, err := repo.ListSignals(ctx, run.ID, store.SignalFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Price.Decimal.Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, signals[0].Date, list[0].Date)
	assert.False(t, list[1].Price.Valid)

	list, err = repo.ListSignals(ctx, run.ID, store.SignalFilter{Type: contracts.SignalSell, Limit: 5})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SZ000001", list[0].Code)
}
