package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/strategyconfig"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "설정 검증",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "전략 설정 검증 및 연결 확인",
	Long: `전략 설정(YAML/TOML)을 로드/검증하고 해시와 경고를 출력합니다.
--ping 을 주면 Postgres/Redis 연결도 확인합니다.

Example:
  go run ./cmd/quant config check --strategy config/engine.yaml --ping`,
	RunE: runConfigCheck,
}

var configPing bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)

	configCheckCmd.Flags().BoolVar(&configPing, "ping", false, "Postgres/Redis 연결 확인")
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	ecfg, raw, err := d.strategy()
	if err != nil {
		return err
	}
	snap, err := strategyconfig.NewRunSnapshot(ecfg, raw)
	if err != nil {
		return err
	}

	PrintHeader("Strategy config")
	PrintKeyValue("Strategy", ecfg.Meta.StrategyID, 12)
	PrintKeyValue("Mode", string(ecfg.Mode), 12)
	PrintKeyValue("Top-K", ecfg.TopK.String(), 12)
	PrintKeyValue("Period", string(ecfg.RebalancePeriod), 12)
	PrintKeyValue("Thresholds", ecfg.Thresholds.String(), 12)
	PrintKeyValue("Source", ecfg.Source.Kind, 12)
	PrintKeyValue("Hash", snap.ConfigHash, 12)
	for _, w := range strategyconfig.Warn(ecfg) {
		PrintWarning(fmt.Sprintf("%s: %s", w.Code, w.Message))
	}

	if !configPing {
		return nil
	}

	PrintHeader("Connections")
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	if d.cfg.Database.URL != "" {
		db, err := d.database(ctx)
		if err != nil {
			return err
		}
		status, err := db.HealthCheck(ctx)
		if err != nil {
			return err
		}
		PrintSuccess(fmt.Sprintf("Postgres ok (%d/%d conns)", status.Stats.TotalConns, status.Stats.MaxConns))
	} else {
		PrintInfo("Postgres: DATABASE_URL not set")
	}

	client, err := d.redisClient(ctx)
	if err != nil {
		return err
	}
	if client.Enabled() {
		PrintSuccess("Redis ok " + d.cfg.RedisAddr())
	} else {
		PrintInfo("Redis: disabled")
	}
	return nil
}
