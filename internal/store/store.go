// Package store persists signal runs and their signals.
package store

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("store: not found")

// Run is one persisted engine run
type Run struct {
	ID         uuid.UUID `json:"id"`
	StrategyID string    `json:"strategy_id"`
	Mode       string    `json:"mode"`
	ConfigHash string    `json:"config_hash"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	Buy        int       `json:"buy"`
	Sell       int       `json:"sell"`
	Hold       int       `json:"hold"`
	Misses     int       `json:"misses"`
}

// NewRun builds a run record from a config snapshot and the run's signals
func NewRun(snap *strategyconfig.RunSnapshot, source string, signals []contracts.TradingSignal, misses int) Run {
	r := Run{
		ID:         uuid.New(),
		StrategyID: snap.StrategyID,
		Mode:       string(snap.Mode),
		ConfigHash: snap.ConfigHash,
		Source:     source,
		StartedAt:  snap.CreatedAt.UTC().Truncate(time.Millisecond),
		Misses:     misses,
	}
	for _, s := range signals {
		switch s.Type {
		case contracts.SignalBuy:
			r.Buy++
		case contracts.SignalSell:
			r.Sell++
		default:
			r.Hold++
		}
	}
	return r
}

// SignalFilter narrows ListSignals; zero fields match everything
type SignalFilter struct {
	Code  string
	From  civil.Date
	To    civil.Date
	Type  contracts.SignalType
	Limit int
}

// Store is implemented by the sqlite and postgres backends
type Store interface {
	SaveRun(ctx context.Context, run Run, signals []contracts.TradingSignal) error
	LatestRun(ctx context.Context) (*Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListSignals(ctx context.Context, runID uuid.UUID, f SignalFilter) ([]contracts.TradingSignal, error)
	Close() error
}
