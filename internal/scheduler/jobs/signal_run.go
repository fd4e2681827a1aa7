package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-signal/internal/signalengine"
	"github.com/wonny/aegis-signal/internal/store"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// BarLoader returns bars grouped by instrument code
type BarLoader func(ctx context.Context) (map[string][]signalengine.Bar, error)

// SignalRunJob runs the engine over the portfolio and persists the batch
// Schedule: 장 마감 후 (기본 16:10)
type SignalRunJob struct {
	schedule string
	cfg      *strategyconfig.EngineConfig
	snapshot *strategyconfig.RunSnapshot
	load     TableLoader
	bars     BarLoader
	store    store.Store
	rec      signalengine.Recorder
	logger   *logger.Logger
}

// NewSignalRunJob creates a new signal run job; rec may be nil
func NewSignalRunJob(
	schedule string,
	cfg *strategyconfig.EngineConfig,
	raw []byte,
	load TableLoader,
	bars BarLoader,
	st store.Store,
	rec signalengine.Recorder,
	log *logger.Logger,
) (*SignalRunJob, error) {
	snap, err := strategyconfig.NewRunSnapshot(cfg, raw)
	if err != nil {
		return nil, err
	}
	return &SignalRunJob{
		schedule: schedule,
		cfg:      cfg,
		snapshot: snap,
		load:     load,
		bars:     bars,
		store:    st,
		rec:      rec,
		logger:   log.WithComponent("signal_run"),
	}, nil
}

// Name returns the job name
func (j *SignalRunJob) Name() string {
	return "signal_run"
}

// Schedule returns the cron schedule
func (j *SignalRunJob) Schedule() string {
	return j.schedule
}

// Run executes the engine and stores the run
func (j *SignalRunJob) Run(ctx context.Context) error {
	table, err := j.load(ctx)
	if err != nil {
		return fmt.Errorf("load forecasts: %w", err)
	}
	bars, err := j.bars(ctx)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	engine, err := signalengine.NewFromConfig(ctx, j.cfg, table, j.logger.Zerolog(), j.rec)
	if err != nil {
		return err
	}
	batch, err := engine.RunPortfolio(ctx, bars, nil)
	if err != nil {
		return err
	}

	snap := *j.snapshot
	snap.CreatedAt = time.Now()
	signals := batch.Signals()
	run := store.NewRun(&snap, table.Source(), signals, batch.Misses())
	if err := j.store.SaveRun(ctx, run, signals); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":  run.ID.String(),
		"signals": len(signals),
		"buy":     run.Buy,
		"sell":    run.Sell,
	}).Info("Signal run stored")
	return nil
}
