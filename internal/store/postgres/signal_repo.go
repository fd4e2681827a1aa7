// Package postgres stores signal runs in PostgreSQL and reads forecast
// scores from the analytics schema.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/store"
	"github.com/wonny/aegis-signal/internal/timealign"
)

// SignalRepository 시그널 run 저장소
type SignalRepository struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*SignalRepository)(nil)

// NewSignalRepository 새 저장소 생성
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// Migrate creates the signal schema if missing
func (r *SignalRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS signal;

		CREATE TABLE IF NOT EXISTS signal.runs (
			id          UUID PRIMARY KEY,
			strategy_id TEXT NOT NULL,
			mode        TEXT NOT NULL,
			config_hash TEXT NOT NULL,
			source      TEXT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			buy_count   INT NOT NULL,
			sell_count  INT NOT NULL,
			hold_count  INT NOT NULL,
			misses      INT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON signal.runs(started_at);

		CREATE TABLE IF NOT EXISTS signal.trading_signals (
			run_id      UUID NOT NULL REFERENCES signal.runs(id) ON DELETE CASCADE,
			seq         INT NOT NULL,
			code        TEXT NOT NULL,
			signal_date DATE NOT NULL,
			signal_type TEXT NOT NULL,
			strength    TEXT NOT NULL,
			price       NUMERIC,
			reason      TEXT NOT NULL,
			score       DOUBLE PRECISION,
			bar_ts      BIGINT NOT NULL,
			PRIMARY KEY (run_id, code, signal_date)
		);
		CREATE INDEX IF NOT EXISTS idx_trading_signals_seq ON signal.trading_signals(run_id, seq);`)
	return err
}

// Close is a no-op; the pool is owned by pkg/database
func (r *SignalRepository) Close() error { return nil }

// SaveRun 실행 기록과 시그널을 하나의 트랜잭션으로 저장
func (r *SignalRepository) SaveRun(ctx context.Context, run store.Run, signals []contracts.TradingSignal) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO signal.runs
			(id, strategy_id, mode, config_hash, source, started_at, buy_count, sell_count, hold_count, misses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.StrategyID, run.Mode, run.ConfigHash, run.Source,
		run.StartedAt, run.Buy, run.Sell, run.Hold, run.Misses,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(signals) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO signal.trading_signals
				(run_id, seq, code, signal_date, signal_type, strength, price, reason, score, bar_ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8, $9, $10)`

		for i, s := range signals {
			var price *string
			if s.Price.Valid {
				p := s.Price.Decimal.String()
				price = &p
			}
			batch.Queue(query, run.ID, i, s.Code, s.Date.In(time.UTC), string(s.Type), string(s.Strength),
				price, s.Reason, s.Score, s.BarTimestamp)
		}

		br := tx.SendBatch(ctx, batch)
		for _, s := range signals {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert signal %s: %w", s, err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const runColumns = `id, strategy_id, mode, config_hash, source, started_at, buy_count, sell_count, hold_count, misses`

// LatestRun 가장 최근 run 조회
func (r *SignalRepository) LatestRun(ctx context.Context) (*store.Run, error) {
	return r.queryRun(ctx, `SELECT `+runColumns+` FROM signal.runs ORDER BY started_at DESC LIMIT 1`)
}

// GetRun id 로 run 조회
func (r *SignalRepository) GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	return r.queryRun(ctx, `SELECT `+runColumns+` FROM signal.runs WHERE id = $1`, id)
}

func (r *SignalRepository) queryRun(ctx context.Context, query string, args ...any) (*store.Run, error) {
	var run store.Run
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&run.ID, &run.StrategyID, &run.Mode, &run.ConfigHash, &run.Source,
		&run.StartedAt, &run.Buy, &run.Sell, &run.Hold, &run.Misses,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListSignals run 의 시그널을 저장 순서대로 조회
func (r *SignalRepository) ListSignals(ctx context.Context, runID uuid.UUID, f store.SignalFilter) ([]contracts.TradingSignal, error) {
	where := []string{"run_id = $1"}
	args := []any{runID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Code != "" {
		add("code = $%d", contracts.NormalizeCode(f.Code))
	}
	if !f.From.IsZero() {
		add("signal_date >= $%d", f.From.In(time.UTC))
	}
	if !f.To.IsZero() {
		add("signal_date <= $%d", f.To.In(time.UTC))
	}
	if f.Type != "" {
		add("signal_type = $%d", string(f.Type))
	}

	query := `
		SELECT code, signal_date, signal_type, strength, price::text, reason, score, bar_ts
		FROM signal.trading_signals
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.TradingSignal
	for rows.Next() {
		var (
			s     contracts.TradingSignal
			date  time.Time
			typ   string
			str   string
			price *string
		)
		if err := rows.Scan(&s.Code, &date, &typ, &str, &price, &s.Reason, &s.Score, &s.BarTimestamp); err != nil {
			return nil, err
		}
		s.Date = timealign.DateOf(date)
		s.Type = contracts.SignalType(typ)
		s.Strength = contracts.SignalStrength(str)
		if price != nil {
			d, err := decimal.NewFromString(*price)
			if err != nil {
				return nil, fmt.Errorf("signal price %q: %w", *price, err)
			}
			s.Price = decimal.NewNullDecimal(d)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
