package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/wonny/aegis-signal/internal/metrics"
	"github.com/wonny/aegis-signal/internal/scoretable"
	"github.com/wonny/aegis-signal/internal/signalengine"
	"github.com/wonny/aegis-signal/internal/store"
	"github.com/wonny/aegis-signal/internal/store/postgres"
	"github.com/wonny/aegis-signal/internal/store/sqlite"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
	"github.com/wonny/aegis-signal/pkg/config"
	"github.com/wonny/aegis-signal/pkg/database"
	"github.com/wonny/aegis-signal/pkg/httputil"
	"github.com/wonny/aegis-signal/pkg/logger"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// deps holds everything a command may wire; fields are opened lazily
type deps struct {
	cfg *config.Config
	log *logger.Logger
	rec *metrics.Recorder

	db    *database.DB
	redis *redis.Client
	store store.Store
}

// bootstrap loads process config and the logger
func bootstrap() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return &deps{
		cfg: cfg,
		log: logger.New(cfg),
		rec: metrics.New(),
	}, nil
}

func (d *deps) Close() {
	if d.store != nil {
		_ = d.store.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// strategy loads the engine config from --strategy or STRATEGY_CONFIG
func (d *deps) strategy() (*strategyconfig.EngineConfig, []byte, error) {
	path := strategyPath
	if path == "" {
		path = d.cfg.Engine.StrategyPath
	}
	if _, err := os.Stat(path); err != nil && strategyPath == "" {
		// 기본 경로에 파일이 없으면 기본값 사용
		d.log.WithField("path", path).Warn("Strategy config not found, using defaults")
		return strategyconfig.Default(), nil, nil
	}

	ecfg, raw, err := strategyconfig.Load(path)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range strategyconfig.Warn(ecfg) {
		d.log.WithFields(map[string]interface{}{"code": w.Code}).Warn(w.Message)
	}
	return ecfg, raw, nil
}

func (d *deps) database(ctx context.Context) (*database.DB, error) {
	if d.db != nil {
		return d.db, nil
	}
	if d.cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := database.New(ctx, d.cfg.Database)
	if err != nil {
		return nil, err
	}
	d.db = db
	return db, nil
}

func (d *deps) redisClient(ctx context.Context) (*redis.Client, error) {
	if d.redis != nil {
		return d.redis, nil
	}
	client, err := redis.New(ctx, d.cfg.Redis)
	if err != nil {
		return nil, err
	}
	d.redis = client
	return client, nil
}

// runStore opens the configured signal run store; nil for STORE_BACKEND=none
func (d *deps) runStore(ctx context.Context) (store.Store, error) {
	if d.store != nil {
		return d.store, nil
	}
	switch d.cfg.StoreBackend {
	case "sqlite":
		repo, err := sqlite.New(d.cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		d.store = repo
	case "postgres":
		db, err := d.database(ctx)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewSignalRepository(db.Pool)
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate signal schema: %w", err)
		}
		d.store = repo
	default:
		return nil, nil
	}
	return d.store, nil
}

// forecasts loads the forecast table from the configured source.
// override (a CSV path) wins over the strategy's source.
func (d *deps) forecasts(ctx context.Context, ecfg *strategyconfig.EngineConfig, override string) (*scoretable.Table, error) {
	opts := scoretable.LoadOptions{ScoreColumn: ecfg.Source.ScoreColumn}

	if override == "" && ecfg.Source.Kind == "postgres" {
		db, err := d.database(ctx)
		if err != nil {
			return nil, err
		}
		rng, err := ecfg.DateRange.Range()
		if err != nil {
			return nil, err
		}
		reader := postgres.NewForecastReader(db.Pool, d.cfg.Database.ForecastTable)
		frame, err := reader.ReadFrame(ctx, rng)
		if err != nil {
			return nil, err
		}
		table, err := scoretable.Load(frame, opts)
		if err != nil {
			return nil, err
		}
		d.log.WithFields(map[string]interface{}{
			"table": reader.Table(),
			"rows":  table.Len(),
		}).Info("Forecasts loaded from postgres")
		return table, nil
	}

	if override == "" && ecfg.Source.Kind == "http" {
		return d.remoteForecasts(ctx, ecfg.Source.Path, opts)
	}

	path := override
	if path == "" {
		path = ecfg.Source.Path
	}
	if path == "" {
		path = d.cfg.Engine.ForecastPath
	}
	return scoretable.NewLoader(d.log.Zerolog()).LoadCSV(path, opts)
}

// bars reads and groups a bars CSV
func (d *deps) bars(path string) (map[string][]signalengine.Bar, error) {
	if path == "" {
		path = d.cfg.Engine.BarsPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	bars, err := signalengine.ReadBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read bars %s: %w", path, err)
	}
	return signalengine.GroupBars(bars), nil
}

// engineConfig applies CLI-wide overrides such as ENGINE_WORKERS
func (d *deps) engineConfig(ecfg *strategyconfig.EngineConfig) *strategyconfig.EngineConfig {
	if ecfg.Workers == 0 && d.cfg.Engine.Workers > 0 {
		cp := *ecfg
		cp.Workers = d.cfg.Engine.Workers
		return &cp
	}
	return ecfg
}

// remoteFetchRPS 원격 예측 서버 재시도 포함 초당 요청 상한
const remoteFetchRPS = 2

// remoteForecasts downloads a forecast CSV published over HTTP
func (d *deps) remoteForecasts(ctx context.Context, url string, opts scoretable.LoadOptions) (*scoretable.Table, error) {
	body, err := httputil.New(d.log).WithRateLimit(remoteFetchRPS, 1).Fetch(ctx, url)
	if err != nil {
		if httputil.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", scoretable.ErrSourceNotFound, url)
		}
		return nil, fmt.Errorf("fetch forecasts: %w", err)
	}
	defer body.Close()

	return scoretable.NewLoader(d.log.Zerolog()).LoadReader(body, url, opts)
}
