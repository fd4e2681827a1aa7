package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyPath string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Aegis Signal - 예측 기반 매매 시그널 엔진",
	Long: `Aegis Signal Unified CLI

예측 점수 테이블(날짜 × 종목)을 Top-K 풀과 리밸런싱 캘린더로
BUY/SELL/HOLD 시그널로 변환합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant signals run --forecast data/pred.csv --bars data/bars.csv
  go run ./cmd/quant pool show 2024-01-02
  go run ./cmd/quant calendar --period month
  go run ./cmd/quant classify 0.035 --confidence 0.8
  go run ./cmd/quant api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyPath, "strategy", "", "engine config YAML/TOML (default STRATEGY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
