// Package sqlite is the local signal run store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/store"
)

// Repo stores runs in a single SQLite file
type Repo struct {
	db *sql.DB
}

var _ store.Store = (*Repo)(nil)

// New opens (and migrates) the database at path
func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return r, nil
}

// Close closes the database
func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS signal_runs (
  id TEXT PRIMARY KEY,
  strategy_id TEXT NOT NULL,
  mode TEXT NOT NULL,
  config_hash TEXT NOT NULL,
  source TEXT NOT NULL,
  started_at INTEGER NOT NULL,
  buy_count INTEGER NOT NULL,
  sell_count INTEGER NOT NULL,
  hold_count INTEGER NOT NULL,
  misses INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signal_runs_started ON signal_runs(started_at);

CREATE TABLE IF NOT EXISTS trading_signals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES signal_runs(id),
  seq INTEGER NOT NULL,
  code TEXT NOT NULL,
  signal_date TEXT NOT NULL,
  signal_type TEXT NOT NULL,
  strength TEXT NOT NULL,
  price TEXT,
  reason TEXT NOT NULL,
  score REAL,
  bar_ts INTEGER NOT NULL,
  UNIQUE(run_id, code, signal_date)
);
CREATE INDEX IF NOT EXISTS idx_trading_signals_run ON trading_signals(run_id, seq);
CREATE INDEX IF NOT EXISTS idx_trading_signals_code ON trading_signals(code);
`)
	return err
}

// SaveRun writes the run and its signals in one transaction
func (r *Repo) SaveRun(ctx context.Context, run store.Run, signals []contracts.TradingSignal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO signal_runs(id, strategy_id, mode, config_hash, source, started_at, buy_count, sell_count, hold_count, misses)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.StrategyID, run.Mode, run.ConfigHash, run.Source,
		run.StartedAt.UnixMilli(), run.Buy, run.Sell, run.Hold, run.Misses,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO trading_signals(run_id, seq, code, signal_date, signal_type, strength, price, reason, score, bar_ts)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range signals {
		var price any
		if s.Price.Valid {
			price = s.Price.Decimal.String()
		}
		var score any
		if s.Score != nil {
			score = *s.Score
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID.String(), i, s.Code, s.Date.String(), string(s.Type), string(s.Strength),
			price, s.Reason, score, s.BarTimestamp,
		); err != nil {
			return fmt.Errorf("insert signal %s: %w", s, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, strategy_id, mode, config_hash, source, started_at, buy_count, sell_count, hold_count, misses`

// LatestRun returns the most recently started run
func (r *Repo) LatestRun(ctx context.Context) (*store.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM signal_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	return scanRun(row)
}

// GetRun returns a run by id
func (r *Repo) GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM signal_runs WHERE id = ?`, id.String())
	return scanRun(row)
}

func scanRun(row *sql.Row) (*store.Run, error) {
	var (
		run       store.Run
		id        string
		startedMs int64
	)
	err := row.Scan(&id, &run.StrategyID, &run.Mode, &run.ConfigHash, &run.Source,
		&startedMs, &run.Buy, &run.Sell, &run.Hold, &run.Misses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	run.ID = parsed
	run.StartedAt = time.UnixMilli(startedMs).UTC()
	return &run, nil
}

// ListSignals returns a run's signals in insertion order
func (r *Repo) ListSignals(ctx context.Context, runID uuid.UUID, f store.SignalFilter) ([]contracts.TradingSignal, error) {
	where := []string{"run_id = ?"}
	args := []any{runID.String()}
	if f.Code != "" {
		where = append(where, "code = ?")
		args = append(args, contracts.NormalizeCode(f.Code))
	}
	if !f.From.IsZero() {
		where = append(where, "signal_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "signal_date <= ?")
		args = append(args, f.To.String())
	}
	if f.Type != "" {
		where = append(where, "signal_type = ?")
		args = append(args, string(f.Type))
	}

	query := `SELECT code, signal_date, signal_type, strength, price, reason, score, bar_ts
FROM trading_signals WHERE ` + strings.Join(where, " AND ") + ` ORDER BY seq`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.TradingSignal
	for rows.Next() {
		var (
			s     contracts.TradingSignal
			date  string
			typ   string
			str   string
			price sql.NullString
			score sql.NullFloat64
		)
		if err := rows.Scan(&s.Code, &date, &typ, &str, &price, &s.Reason, &score, &s.BarTimestamp); err != nil {
			return nil, err
		}
		if s.Date, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("signal date %q: %w", date, err)
		}
		s.Type = contracts.SignalType(typ)
		s.Strength = contracts.SignalStrength(str)
		if price.Valid {
			d, err := decimal.NewFromString(price.String)
			if err != nil {
				return nil, fmt.Errorf("signal price %q: %w", price.String, err)
			}
			s.Price = decimal.NewNullDecimal(d)
		}
		if score.Valid {
			v := score.Float64
			s.Score = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
