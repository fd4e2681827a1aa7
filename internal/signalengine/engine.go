// Package signalengine turns forecasts into BUY/SELL transitions on
// rebalance dates.
package signalengine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-signal/internal/classifier"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/holdings"
	"github.com/wonny/aegis-signal/internal/rebalance"
	"github.com/wonny/aegis-signal/internal/scoretable"
	"github.com/wonny/aegis-signal/internal/strategyconfig"
	"github.com/wonny/aegis-signal/internal/timealign"
	"github.com/wonny/aegis-signal/internal/topk"
)

// Recorder receives engine metrics. internal/metrics implements it.
type Recorder interface {
	RecordSignal(mode string, typ contracts.SignalType, strength contracts.SignalStrength)
	RecordLookupMiss(mode string)
	RecordRun(kind string, seconds float64)
	RecordIndexBuild(seconds float64)
}

type noopRecorder struct{}

func (noopRecorder) RecordSignal(string, contracts.SignalType, contracts.SignalStrength) {}
func (noopRecorder) RecordLookupMiss(string) {}
func (noopRecorder) RecordRun(string, float64) {}
func (noopRecorder) RecordIndexBuild(float64) {}

// Engine evaluates a Source on the first bar of every rebalance date.
// ⭐ SSOT: Engine 은 불변, 보유 상태는 run 마다 새 Tracker
type Engine struct {
	source   Source
	calendar []civil.Date
	rebal    map[civil.Date]struct{}
	index    *topk.Index
	workers  int
	log      zerolog.Logger
	rec      Recorder
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers bounds portfolio concurrency; <= 0 uses GOMAXPROCS
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithLogger sets the engine logger
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log.With().Str("component", "signalengine").Logger() }
}

// WithRecorder sets the metrics recorder; nil keeps the no-op recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.rec = r
		}
	}
}

// WithIndex attaches the index the source was built from (for reporting)
func WithIndex(idx *topk.Index) Option {
	return func(e *Engine) { e.index = idx }
}

// New creates an engine over a source and its rebalance calendar
func New(source Source, calendar []civil.Date, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		calendar: append([]civil.Date(nil), calendar...),
		rebal:    rebalance.Set(calendar),
		log:      zerolog.Nop(),
		rec:      noopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e
}

// NewFromConfig builds the index, calendar and source an EngineConfig
// describes. Every configuration error surfaces here, before any signal.
func NewFromConfig(ctx context.Context, cfg *strategyconfig.EngineConfig, table *scoretable.Table, log zerolog.Logger, rec Recorder) (*Engine, error) {
	r, err := cfg.DateRange.Range()
	if err != nil {
		return nil, err
	}
	if err := cfg.TopK.Validate(); err != nil {
		return nil, err
	}
	if _, err := rebalance.ParsePeriod(string(cfg.RebalancePeriod)); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = noopRecorder{}
	}

	var idx *topk.Index
	if cfg.Mode.UsesPool() {
		start := time.Now()
		idx, err = topk.BuildParallel(ctx, table, cfg.TopK, cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("build top-k index: %w", err)
		}
		rec.RecordIndexBuild(time.Since(start).Seconds())
	}

	var source Source
	switch {
	case cfg.Mode.UsesThresholds():
		c, err := classifier.New(cfg.Thresholds)
		if err != nil {
			return nil, err
		}
		ts := NewThresholdSource(c, table)
		if idx != nil {
			ts = ts.WithPool(idx)
		}
		source = ts
	case cfg.Mode.UsesPool():
		source = NewPoolMembershipSource(idx)
	default:
		return nil, contracts.NewConfigError("mode", string(cfg.Mode), "unsupported mode")
	}

	calendar := rebalance.Dates(table, r, cfg.RebalancePeriod)
	log.Info().
		Str("mode", source.Mode()).
		Str("top_k", cfg.TopK.String()).
		Str("period", string(cfg.RebalancePeriod)).
		Str("range", r.String()).
		Int("rebalance_dates", len(calendar)).
		Msg("signal engine ready")

	return New(source, calendar,
		WithWorkers(cfg.Workers),
		WithLogger(log),
		WithRecorder(rec),
		WithIndex(idx),
	), nil
}

// Mode returns the source mode name
func (e *Engine) Mode() string { return e.source.Mode() }

// Calendar returns the rebalance dates
func (e *Engine) Calendar() []civil.Date {
	return append([]civil.Date(nil), e.calendar...)
}

// Index returns the Top-K index, or nil in pure threshold mode
func (e *Engine) Index() *topk.Index { return e.index }

// RunInstrument runs one instrument with a fresh tracker, forwarding each
// actionable signal to emitter (may be nil) as it is produced.
func (e *Engine) RunInstrument(ctx context.Context, code string, bars []Bar, emitter Emitter) (*Batch, error) {
	start := time.Now()
	batch, err := e.run(ctx, code, bars, holdings.New(), emitter)
	if err != nil {
		return nil, err
	}
	e.rec.RecordRun("instrument", time.Since(start).Seconds())
	return batch, nil
}

// RunPortfolio runs every instrument with its own tracker concurrently,
// then emits the merged batch sequentially ordered by (date, code).
// Keys differing only in case are merged into one instrument.
func (e *Engine) RunPortfolio(ctx context.Context, bars map[string][]Bar, emitter Emitter) (*Batch, error) {
	start := time.Now()
	bars = mergeCodes(bars)

	codes := make([]string, 0, len(bars))
	for code := range bars {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	parts := make([]*Batch, len(codes))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, code := range codes {
		i, code := i, code
		g.Go(func() error {
			b, err := e.run(gCtx, code, bars[code], holdings.New(), nil)
			if err != nil {
				return fmt.Errorf("instrument %s: %w", code, err)
			}
			parts[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := mergeBatches(parts)
	if err != nil {
		return nil, err
	}

	if emitter != nil {
		for _, sig := range merged.Actionable() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := emitter.Emit(ctx, sig); err != nil {
				return nil, fmt.Errorf("emit %s: %w", sig, err)
			}
		}
	}

	counts := merged.Counts()
	e.log.Info().
		Str("mode", e.source.Mode()).
		Int("instruments", len(codes)).
		Int("buy", counts[contracts.SignalBuy]).
		Int("sell", counts[contracts.SignalSell]).
		Int("misses", merged.Misses()).
		Dur("elapsed", time.Since(start)).
		Msg("portfolio run completed")
	e.rec.RecordRun("portfolio", time.Since(start).Seconds())

	return merged, nil
}

// mergeCodes re-keys bars by normalized code, concatenating in key order
func mergeCodes(bars map[string][]Bar) map[string][]Bar {
	keys := make([]string, 0, len(bars))
	for k := range bars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string][]Bar, len(bars))
	for _, k := range keys {
		code := contracts.NormalizeCode(k)
		out[code] = append(out[code], bars[k]...)
	}
	return out
}

func (e *Engine) run(ctx context.Context, code string, bars []Bar, tracker *holdings.Tracker, emitter Emitter) (*Batch, error) {
	code = contracts.NormalizeCode(code)
	mode := e.source.Mode()
	batch := NewBatch()

	ordered := append([]Bar(nil), bars...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp < ordered[j].Timestamp })

	seen := make(map[civil.Date]struct{})
	for _, bar := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		date := timealign.ToDateKey(bar.Timestamp)
		if _, rebal := e.rebal[date]; !rebal {
			continue
		}
		// 같은 날짜는 첫 bar 만 평가
		if _, done := seen[date]; done {
			continue
		}
		seen[date] = struct{}{}

		d, ok := e.source.Decide(date, code, tracker)
		if !ok {
			batch.misses++
			e.rec.RecordLookupMiss(mode)
			e.log.Debug().Str("code", code).Str("date", date.String()).Msg("no forecast on rebalance date, skipped")
			continue
		}
		if !d.Type.IsActionable() && d.Reason != classifier.ReasonBuySuppressed {
			continue
		}

		sig := contracts.TradingSignal{
			Code:         code,
			Date:         date,
			Type:         d.Type,
			Strength:     d.Strength,
			Price:        bar.Close,
			Reason:       d.Reason,
			Score:        d.Score,
			BarTimestamp: bar.Timestamp,
		}
		if err := batch.Add(sig); err != nil {
			return nil, err
		}
		e.rec.RecordSignal(mode, sig.Type, sig.Strength)

		if emitter != nil && sig.Type.IsActionable() {
			if err := emitter.Emit(ctx, sig); err != nil {
				return nil, fmt.Errorf("emit %s: %w", sig, err)
			}
		}
	}

	return batch, nil
}
