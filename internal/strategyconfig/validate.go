package strategyconfig

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/rebalance"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// 에러 필드명은 yaml 태그 기준
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidationError is the engine's configuration error
type ValidationError = contracts.InvalidConfigurationError

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *EngineConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fromValidator(err)
	}

	// === Mode ===
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return err
	}
	if _, err := rebalance.ParsePeriod(string(cfg.RebalancePeriod)); err != nil {
		return err
	}

	// === Top-K ===
	if err := cfg.TopK.Validate(); err != nil {
		return err
	}

	// === Thresholds ===
	// 임계값 조합은 모드와 무관하게 로드 시점에 검증
	if err := cfg.Thresholds.Validate(); err != nil {
		return err
	}

	// === Date range ===
	if _, err := cfg.DateRange.Range(); err != nil {
		return err
	}

	// === Source ===
	if cfg.Source.Kind == "http" {
		p := cfg.Source.Path
		if !strings.HasPrefix(p, "http://") && !strings.HasPrefix(p, "https://") {
			return &ValidationError{Field: "source.path", Value: p, Message: "http source needs an http(s) url"}
		}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *EngineConfig) []Warning {
	var warnings []Warning

	if cfg.Mode.UsesPool() && !cfg.TopK.Bounded() {
		warnings = append(warnings, Warning{
			Code:    "UNBOUNDED_POOL",
			Message: "top_k unbounded: every instrument enters on the first rebalance date",
		})
	}

	if cfg.Mode == ModePool && cfg.RebalancePeriod == rebalance.PeriodDay {
		warnings = append(warnings, Warning{
			Code:    "HIGH_TURNOVER",
			Message: "daily rebalance with pool membership: expect frequent enter/exit",
		})
	}

	th := cfg.Thresholds
	if cfg.Mode.UsesThresholds() && th.Strong < th.Buy {
		warnings = append(warnings, Warning{
			Code:    "STRONG_BELOW_BUY",
			Message: fmt.Sprintf("strong_threshold=%v < buy_threshold=%v: every BUY clears the strong magnitude", th.Strong, th.Buy),
		})
	}

	return warnings
}

func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}

	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "EngineConfig.")
	return &ValidationError{
		Field:   field,
		Value:   fmt.Sprint(fe.Value()),
		Message: ruleMessage(fe),
	}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "datetime":
		return "must be a date in " + fe.Param() + " format"
	default:
		return "failed validation: " + fe.Tag()
	}
}
