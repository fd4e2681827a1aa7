package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-signal/internal/poolcache"
	"github.com/wonny/aegis-signal/internal/scoretable"
	"github.com/wonny/aegis-signal/internal/topk"
	"github.com/wonny/aegis-signal/pkg/logger"
)

// TableLoader reloads the forecast table (CSV or Postgres)
type TableLoader func(ctx context.Context) (*scoretable.Table, error)

// IndexRecorder observes index build durations
type IndexRecorder interface {
	RecordIndexBuild(seconds float64)
}

// PoolRefreshJob rebuilds the Top-K index from fresh forecasts and
// publishes the most recent pools.
// Schedule: 평일 장 시작 전 (기본 08:30)
type PoolRefreshJob struct {
	schedule  string
	load      TableLoader
	k         topk.Size
	workers   int
	keep      int
	publisher *poolcache.Publisher
	rec       IndexRecorder
	logger    *logger.Logger
}

// PoolRefreshConfig configures a PoolRefreshJob
type PoolRefreshConfig struct {
	Schedule string
	K        topk.Size
	Workers  int
	Keep     int // 게시할 최근 날짜 수, 0 이면 5
}

// NewPoolRefreshJob creates a new pool refresh job; rec may be nil
func NewPoolRefreshJob(cfg PoolRefreshConfig, load TableLoader, pub *poolcache.Publisher, rec IndexRecorder, log *logger.Logger) *PoolRefreshJob {
	keep := cfg.Keep
	if keep <= 0 {
		keep = 5
	}
	return &PoolRefreshJob{
		schedule:  cfg.Schedule,
		load:      load,
		k:         cfg.K,
		workers:   cfg.Workers,
		keep:      keep,
		publisher: pub,
		rec:       rec,
		logger:    log.WithComponent("pool_refresh"),
	}
}

// Name returns the job name
func (j *PoolRefreshJob) Name() string {
	return "pool_refresh"
}

// Schedule returns the cron schedule
func (j *PoolRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *PoolRefreshJob) Run(ctx context.Context) error {
	table, err := j.load(ctx)
	if err != nil {
		return fmt.Errorf("load forecasts: %w", err)
	}

	start := time.Now()
	idx, err := topk.BuildParallel(ctx, table, j.k, j.workers)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if j.rec != nil {
		j.rec.RecordIndexBuild(time.Since(start).Seconds())
	}

	dates := idx.Dates()
	if len(dates) > j.keep {
		dates = dates[len(dates)-j.keep:]
	}

	n, err := j.publisher.Publish(ctx, idx, dates)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"source":    table.Source(),
		"rows":      table.Len(),
		"published": n,
		"k":         j.k.String(),
	}).Info("Pool refresh completed")
	return nil
}
