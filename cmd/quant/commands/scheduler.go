package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/poolcache"
	"github.com/wonny/aegis-signal/internal/scheduler"
	"github.com/wonny/aegis-signal/internal/scheduler/jobs"
	"github.com/wonny/aegis-signal/internal/scoretable"
	"github.com/wonny/aegis-signal/internal/signalengine"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

등록되는 작업:
- pool_refresh: POOL_REFRESH_CRON (기본 평일 08:30, Top-K 풀 Redis 게시)
- signal_run:   SIGNAL_RUN_CRON (기본 평일 16:10, 시그널 생성 후 저장)

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run pool_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.
METRICS_ENABLED 이면 METRICS_PORT 에서 /metrics 를 제공합니다.

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers the jobs the process config enables
func initScheduler(ctx context.Context, d *deps) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(d.cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	sched := scheduler.New(d.log, scheduler.WithLocation(loc))

	ecfg, raw, err := d.strategy()
	if err != nil {
		return nil, err
	}
	ecfg = d.engineConfig(ecfg)

	// 매 실행마다 최신 예측을 다시 읽음
	loadTable := func(ctx context.Context) (*scoretable.Table, error) {
		return d.forecasts(ctx, ecfg, "")
	}

	if d.cfg.Scheduler.PoolRefreshCron != "" {
		client, err := d.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		pub := poolcache.NewPublisher(redis.NewCache(client, d.cfg.Redis.KeyPrefix), d.cfg.Redis.PoolTTL, d.log.Zerolog(), d.rec)
		job := jobs.NewPoolRefreshJob(jobs.PoolRefreshConfig{
			Schedule: d.cfg.Scheduler.PoolRefreshCron,
			K:        ecfg.TopK,
			Workers:  ecfg.Workers,
		}, loadTable, pub, d.rec, d.log)
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	if d.cfg.Scheduler.SignalRunCron != "" {
		st, err := d.runStore(ctx)
		if err != nil {
			return nil, err
		}
		if st != nil {
			loadBars := func(context.Context) (map[string][]signalengine.Bar, error) {
				return d.bars("")
			}
			job, err := jobs.NewSignalRunJob(d.cfg.Scheduler.SignalRunCron, ecfg, raw, loadTable, loadBars, st, d.rec, d.log)
			if err != nil {
				return nil, err
			}
			if err := sched.AddJob(job); err != nil {
				return nil, err
			}
		}
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Signal Scheduler ===")

	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(cmd.Context(), d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	var metricsSrv *http.Server
	if d.cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.rec.Handler())
		metricsSrv = &http.Server{Addr: ":" + d.cfg.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	sched.Start()

	PrintSuccess("Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(ctx)
	}
	fmt.Println("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(cmd.Context(), d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()
	widths := []int{16, 20}
	PrintTableHeader([]string{"Job", "Schedule"}, widths)
	for _, name := range sched.GetAllJobs() {
		PrintTableRow([]string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(cmd.Context(), d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	res, err := sched.RunJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("job %s failed after %d attempts: %s", res.JobName, res.Attempts, res.Error)
	}
	PrintSuccess(fmt.Sprintf("Job %s completed in %s", res.JobName, res.Duration.Round(time.Millisecond)))
	return nil
}
