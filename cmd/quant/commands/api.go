package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/api"
	"github.com/wonny/aegis-signal/internal/api/handlers"
	"github.com/wonny/aegis-signal/internal/classifier"
	"github.com/wonny/aegis-signal/internal/poolcache"
	"github.com/wonny/aegis-signal/internal/topk"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                      - Health check
  GET  /metrics                     - Prometheus metrics
  GET  /api/pools/latest            - 최근 Top-K 풀
  GET  /api/pools/{date}            - 날짜별 Top-K 풀
  GET  /api/pools/{date}/{code}     - 풀 멤버 여부
  GET  /api/calendar                - 리밸런싱 날짜
  POST /api/classify                - 점수 분류
  GET  /api/runs/latest             - 최근 run
  GET  /api/runs/{id}/signals       - run 시그널

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiForecast string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default PORT)")
	apiCmd.Flags().StringVar(&apiForecast, "forecast", "", "forecast CSV")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}
	log := d.log

	ecfg, _, err := d.strategy()
	if err != nil {
		return err
	}
	table, err := d.forecasts(ctx, ecfg, apiForecast)
	if err != nil {
		return err
	}

	start := time.Now()
	idx, err := topk.BuildParallel(ctx, table, ecfg.TopK, d.engineConfig(ecfg).Workers)
	if err != nil {
		return err
	}
	d.rec.RecordIndexBuild(time.Since(start).Seconds())

	cls, err := classifier.New(ecfg.Thresholds)
	if err != nil {
		return err
	}

	client, err := d.redisClient(ctx)
	if err != nil {
		return err
	}
	pub := poolcache.NewPublisher(redis.NewCache(client, d.cfg.Redis.KeyPrefix), d.cfg.Redis.PoolTTL, log.Zerolog(), d.rec)

	h := api.Handlers{
		Pools:    handlers.NewPoolHandler(poolcache.NewResolver(pub, idx), log),
		Calendar: handlers.NewCalendarHandler(table, ecfg.RebalancePeriod),
		Classify: handlers.NewClassifyHandler(cls),
	}
	st, err := d.runStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		h.Signals = handlers.NewSignalHandler(st, log)
	}
	if d.cfg.MetricsEnabled {
		h.Metrics = d.rec.Handler()
	}

	router := api.NewRouter(h, log, api.RouterOptions{
		Limiter:   redis.NewRateLimiter(client, d.cfg.Redis.KeyPrefix),
		RateLimit: redis.APIRateLimit,
		Recorder:  d.rec,
	})
	server := api.New(d.cfg, log, router)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(sigCtx, 30*time.Second); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}
