package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/store"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
)

func newRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "nested", "signals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleSignals() []contracts.TradingSignal {
	score := 0.42
	return []contracts.TradingSignal{
		{
			Code: "SH600000", Date: civil.Date{Year: 2024, Month: time.January, Day: 2},
			Type: contracts.SignalBuy, Strength: contracts.StrengthStrong,
			Price:  decimal.NewNullDecimal(decimal.RequireFromString("10.25")),
			Reason: "entered top-2 pool", Score: &score, BarTimestamp: 202401020930,
		},
		{
			Code: "SZ000001", Date: civil.Date{Year: 2024, Month: time.January, Day: 2},
			Type: contracts.SignalHold, Strength: contracts.StrengthMedium,
			Reason: "buy suppressed: not in top-k pool", BarTimestamp: 202401020930,
		},
		{
			Code: "SH600000", Date: civil.Date{Year: 2024, Month: time.February, Day: 1},
			Type: contracts.SignalSell, Strength: contracts.StrengthMedium,
			BarTimestamp: 202402010930,
		},
	}
}

func sampleRun(signals []contracts.TradingSignal, at time.Time) store.Run {
	snap := &strategyconfig.RunSnapshot{ConfigHash: "abc", StrategyID: "test", Mode: strategyconfig.ModePool, CreatedAt: at}
	return store.NewRun(snap, "pred.csv", signals, 1)
}

func TestSaveRun_RoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	signals := sampleSignals()
	run := sampleRun(signals, time.Now())

	require.NoError(t, repo.SaveRun(ctx, run, signals))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 1, got.Buy)
	assert.Equal(t, 1, got.Sell)
	assert.Equal(t, 1, got.Hold)
	assert.Equal(t, 1, got.Misses)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	list, err := repo.ListSignals(ctx, run.ID, store.SignalFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "10.25", list[0].Price.Decimal.String())
	require.NotNil(t, list[0].Score)
	assert.Equal(t, 0.42, *list[0].Score)
	assert.False(t, list[1].Price.Valid)
	assert.Nil(t, list[1].Score)
	assert.Equal(t, signals[2].Date, list[2].Date)
}

func TestListSignals_Filter(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	signals := sampleSignals()
	run := sampleRun(signals, time.Now())
	require.NoError(t, repo.SaveRun(ctx, run, signals))

	list, err := repo.ListSignals(ctx, run.ID, store.SignalFilter{Code: "sh600000"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = repo.ListSignals(ctx, run.ID, store.SignalFilter{From: civil.Date{Year: 2024, Month: time.January, Day: 15}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, contracts.SignalSell, list[0].Type)

	list, err = repo.ListSignals(ctx, run.ID, store.SignalFilter{Type: contracts.SignalHold})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = repo.ListSignals(ctx, run.ID, store.SignalFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestLatestRun(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.LatestRun(ctx)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	older := sampleRun(nil, time.Now().Add(-time.Hour))
	newer := sampleRun(nil, time.Now())
	require.NoError(t, repo.SaveRun(ctx, newer, nil))
	require.NoError(t, repo.SaveRun(ctx, older, nil))

	got, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = repo.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveRun_DuplicateSignalRollsBack(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	signals := sampleSignals()
	signals = append(signals, signals[0])
	run := sampleRun(signals, time.Now())

	require.Error(t, repo.SaveRun(ctx, run, signals))

	_, err := repo.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
