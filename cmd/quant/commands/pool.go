package commands

import (
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/poolcache"
	"github.com/wonny/aegis-signal/internal/rebalance"
	"github.com/wonny/aegis-signal/internal/scoretable"
	"github.com/wonny/aegis-signal/internal/topk"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// poolCmd represents the pool command
var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Top-K 풀 조회/게시",
	Long: `예측 점수로 날짜별 Top-K 풀을 계산합니다.

Subcommands:
  show     - 특정 날짜(기본: 최근) 풀 출력
  publish  - 리밸런싱 날짜의 풀을 Redis 에 게시

Example:
  go run ./cmd/quant pool show 2024-01-02 --k 20
  go run ./cmd/quant pool publish --last 5`,
}

var poolShowCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "풀 출력",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showPool,
}

var poolPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Redis 에 풀 게시",
	RunE:  publishPools,
}

var (
	poolForecast string
	poolK        string
	poolLast     int
)

func init() {
	rootCmd.AddCommand(poolCmd)
	poolCmd.AddCommand(poolShowCmd)
	poolCmd.AddCommand(poolPublishCmd)

	poolCmd.PersistentFlags().StringVar(&poolForecast, "forecast", "", "forecast CSV")
	poolCmd.PersistentFlags().StringVar(&poolK, "k", "", "pool size or 'unbounded' (default: strategy top_k)")
	poolPublishCmd.Flags().IntVar(&poolLast, "last", 0, "최근 N개 리밸런싱 날짜만 게시 (0 = 전체)")
}

// buildPoolIndex loads forecasts and builds the index honouring --k
func buildPoolIndex(cmd *cobra.Command, d *deps) (*topk.Index, rebalance.Period, error) {
	ecfg, _, err := d.strategy()
	if err != nil {
		return nil, "", err
	}
	table, err := d.forecasts(cmd.Context(), ecfg, poolForecast)
	if err != nil {
		return nil, "", err
	}

	k := ecfg.TopK
	if poolK != "" {
		if err := k.UnmarshalText([]byte(poolK)); err != nil {
			return nil, "", err
		}
		if err := k.Validate(); err != nil {
			return nil, "", err
		}
	}

	start := time.Now()
	idx, err := topk.BuildParallel(cmd.Context(), table, k, d.engineConfig(ecfg).Workers)
	if err != nil {
		return nil, "", err
	}
	d.rec.RecordIndexBuild(time.Since(start).Seconds())
	return idx, ecfg.RebalancePeriod, nil
}

func showPool(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	idx, _, err := buildPoolIndex(cmd, d)
	if err != nil {
		return err
	}

	var date civil.Date
	if len(args) == 1 {
		if date, err = scoretable.ParseDate(args[0]); err != nil {
			return err
		}
	} else {
		dates := idx.Dates()
		date = dates[len(dates)-1]
	}

	pool, ok := poolcache.PoolOf(idx, date)
	if !ok {
		return fmt.Errorf("no forecasts on %s", date)
	}

	PrintHeader(fmt.Sprintf("Top-%s pool %s (%d)", pool.K, pool.Date, len(pool.Codes)))
	widths := []int{5, 12, 10}
	PrintTableHeader([]string{"Rank", "Code", "Score"}, widths)
	for i, code := range pool.Codes {
		PrintTableRow([]string{strconv.Itoa(i + 1), code, strconv.FormatFloat(pool.Scores[code], 'f', 4, 64)}, widths)
	}
	PrintSeparator()
	return nil
}

func publishPools(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	idx, period, err := buildPoolIndex(cmd, d)
	if err != nil {
		return err
	}
	client, err := d.redisClient(ctx)
	if err != nil {
		return err
	}
	if !client.Enabled() {
		PrintWarning("REDIS_ENABLED=false: pools are computed but not stored")
	}

	dates := rebalance.Dates(idx, rebalance.All(), period)
	if poolLast > 0 && len(dates) > poolLast {
		dates = dates[len(dates)-poolLast:]
	}

	pub := poolcache.NewPublisher(redis.NewCache(client, d.cfg.Redis.KeyPrefix), d.cfg.Redis.PoolTTL, d.log.Zerolog(), d.rec)
	n, err := pub.Publish(ctx, idx, dates)
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("%d pools published (%s)", n, period))
	return nil
}
