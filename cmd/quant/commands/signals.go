package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/signalengine"
	"github.com/wonny/aegis-signal/internal/store"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "시그널 생성/조회",
	Long: `예측 점수와 가격 bar로 매매 시그널을 생성하거나 저장된 시그널을 조회합니다.

Subcommands:
  run   - 시그널 생성 (포트폴리오 또는 단일 종목)
  list  - 저장된 run 의 시그널 조회

Example:
  go run ./cmd/quant signals run --forecast data/pred.csv --bars data/bars.csv
  go run ./cmd/quant signals run --code SH600000 --json
  go run ./cmd/quant signals list --type BUY`,
}

var signalsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "시그널 생성",
	RunE:  runSignals,
}

var signalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "저장된 시그널 조회",
	RunE:  listSignals,
}

var (
	signalsForecast string
	signalsBars     string
	signalsCode     string
	signalsJSON     bool
	signalsPersist  bool
	signalsHolds    bool

	listRunID string
	listCode  string
	listType  string
	listLimit int
)

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.AddCommand(signalsRunCmd)
	signalsCmd.AddCommand(signalsListCmd)

	signalsRunCmd.Flags().StringVar(&signalsForecast, "forecast", "", "forecast CSV (default: strategy source or FORECAST_PATH)")
	signalsRunCmd.Flags().StringVar(&signalsBars, "bars", "", "bars CSV (default BARS_PATH)")
	signalsRunCmd.Flags().StringVar(&signalsCode, "code", "", "단일 종목만 실행")
	signalsRunCmd.Flags().BoolVar(&signalsJSON, "json", false, "JSON lines 출력")
	signalsRunCmd.Flags().BoolVar(&signalsPersist, "persist", true, "run 저장 (STORE_BACKEND)")
	signalsRunCmd.Flags().BoolVar(&signalsHolds, "holds", false, "HOLD 기록도 출력")

	signalsListCmd.Flags().StringVar(&listRunID, "run", "", "run id (default: latest)")
	signalsListCmd.Flags().StringVar(&listCode, "code", "", "종목 필터")
	signalsListCmd.Flags().StringVar(&listType, "type", "", "BUY|SELL|HOLD")
	signalsListCmd.Flags().IntVar(&listLimit, "limit", 100, "최대 건수")
}

func runSignals(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	ecfg, raw, err := d.strategy()
	if err != nil {
		return err
	}
	table, err := d.forecasts(ctx, ecfg, signalsForecast)
	if err != nil {
		return err
	}
	bars, err := d.bars(signalsBars)
	if err != nil {
		return err
	}

	engine, err := signalengine.NewFromConfig(ctx, d.engineConfig(ecfg), table, d.log.Zerolog(), d.rec)
	if err != nil {
		return err
	}

	var batch *signalengine.Batch
	if signalsCode != "" {
		code := contracts.NormalizeCode(signalsCode)
		list, ok := bars[code]
		if !ok {
			return fmt.Errorf("no bars for %s", code)
		}
		batch, err = engine.RunInstrument(ctx, code, list, nil)
	} else {
		batch, err = engine.RunPortfolio(ctx, bars, nil)
	}
	if err != nil {
		return err
	}

	out := batch.Actionable()
	if signalsHolds {
		out = batch.Signals()
	}
	if signalsJSON {
		enc := json.NewEncoder(os.Stdout)
		for _, s := range out {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
	} else {
		printSignals(engine.Mode(), out)
		counts := batch.Counts()
		PrintKeyValue("BUY", strconv.Itoa(counts[contracts.SignalBuy]), 8)
		PrintKeyValue("SELL", strconv.Itoa(counts[contracts.SignalSell]), 8)
		PrintKeyValue("HOLD", strconv.Itoa(counts[contracts.SignalHold]), 8)
		PrintKeyValue("Misses", strconv.Itoa(batch.Misses()), 8)
	}

	if !signalsPersist {
		return nil
	}
	return persistRun(ctx, d, ecfg, raw, table.Source(), batch)
}

func persistRun(ctx context.Context, d *deps, ecfg *strategyconfig.EngineConfig, raw []byte, source string, batch *signalengine.Batch) error {
	st, err := d.runStore(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}

	snap, err := strategyconfig.NewRunSnapshot(ecfg, raw)
	if err != nil {
		return err
	}
	signals := batch.Signals()
	run := store.NewRun(snap, source, signals, batch.Misses())
	if err := st.SaveRun(ctx, run, signals); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if !signalsJSON {
		PrintSuccess(fmt.Sprintf("Run %s saved (%s)", run.ID, d.cfg.StoreBackend))
	}
	return nil
}

func printSignals(mode string, signals []contracts.TradingSignal) {
	PrintHeader(fmt.Sprintf("Signals (%s) - %d", mode, len(signals)))
	widths := []int{12, 12, 6, 8, 10, 10}
	PrintTableHeader([]string{"Date", "Code", "Type", "Strength", "Price", "Score"}, widths)
	for _, s := range signals {
		price, score := "-", "-"
		if s.Price.Valid {
			price = s.Price.Decimal.String()
		}
		if s.Score != nil {
			score = strconv.FormatFloat(*s.Score, 'f', 4, 64)
		}
		PrintTableRow([]string{s.Date.String(), s.Code, string(s.Type), string(s.Strength), price, score}, widths)
	}
	PrintSeparator()
}

func listSignals(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := d.runStore(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("STORE_BACKEND=none: nothing to list")
	}

	var run *store.Run
	if listRunID == "" {
		run, err = st.LatestRun(ctx)
	} else {
		id, perr := uuid.Parse(listRunID)
		if perr != nil {
			return fmt.Errorf("invalid run id: %w", perr)
		}
		run, err = st.GetRun(ctx, id)
	}
	if err != nil {
		return err
	}

	signals, err := st.ListSignals(ctx, run.ID, store.SignalFilter{
		Code:  listCode,
		Type:  contracts.SignalType(strings.ToUpper(listType)),
		Limit: listLimit,
	})
	if err != nil {
		return err
	}

	PrintKeyValue("Run", run.ID.String(), 10)
	PrintKeyValue("Strategy", run.StrategyID, 10)
	PrintKeyValue("Mode", run.Mode, 10)
	PrintKeyValue("Config", run.ConfigHash[:min(12, len(run.ConfigHash))], 10)
	PrintKeyValue("Started", run.StartedAt.Format("2006-01-02 15:04:05"), 10)
	printSignals(run.Mode, signals)
	return nil
}
