package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/classifier"
)

// classifyCmd classifies a single score with the strategy thresholds
var classifyCmd = &cobra.Command{
	Use:   "classify <score>",
	Short: "점수 → BUY/SELL/HOLD 분류",
	Long: `전략 설정의 임계값으로 점수 하나를 분류합니다.

Example:
  go run ./cmd/quant classify 0.035 --confidence 0.8
  go run ./cmd/quant classify 0.035 --in-pool=false`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

var (
	classifyConfidence float64
	classifyInPool     bool
)

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().Float64Var(&classifyConfidence, "confidence", -1, "신뢰도 [0,1] (생략 시 게이트 통과)")
	classifyCmd.Flags().BoolVar(&classifyInPool, "in-pool", true, "Top-K 풀 멤버 여부 (--in-pool 지정 시 적용)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	score, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid score %q: %w", args[0], err)
	}

	d, err := bootstrap()
	if err != nil {
		return err
	}
	defer d.Close()

	ecfg, _, err := d.strategy()
	if err != nil {
		return err
	}
	c, err := classifier.New(ecfg.Thresholds)
	if err != nil {
		return err
	}

	var conf *float64
	if cmd.Flags().Changed("confidence") {
		if classifyConfidence < 0 || classifyConfidence > 1 {
			return fmt.Errorf("confidence must be within [0,1]")
		}
		conf = &classifyConfidence
	}

	var dec classifier.Decision
	if cmd.Flags().Changed("in-pool") {
		dec = c.ClassifyInPool(score, conf, classifyInPool)
	} else {
		dec = c.Classify(score, conf)
	}

	PrintKeyValue("Thresholds", c.Thresholds().String(), 10)
	PrintKeyValue("Signal", string(dec.Type), 10)
	PrintKeyValue("Strength", string(dec.Strength), 10)
	if dec.Reason != "" {
		PrintKeyValue("Reason", dec.Reason, 10)
	}
	return nil
}
