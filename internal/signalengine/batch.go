package signalengine

import (
	"sort"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// Batch is an ordered, duplicate-rejecting collection of signals
type Batch struct {
	signals []contracts.TradingSignal
	keys    map[contracts.ForecastKey]int
	misses  int
}

// NewBatch returns an empty batch
func NewBatch() *Batch {
	return &Batch{keys: make(map[contracts.ForecastKey]int)}
}

// Add appends a signal; an existing (code, date) is a DuplicateSignalError
func (b *Batch) Add(sig contracts.TradingSignal) error {
	key := sig.Key()
	if pos, ok := b.keys[key]; ok {
		return &DuplicateSignalError{
			Code:     sig.Code,
			Date:     sig.Date,
			Existing: b.signals[pos].Type,
			Incoming: sig.Type,
		}
	}
	b.keys[key] = len(b.signals)
	b.signals = append(b.signals, sig)
	return nil
}

// Len returns the number of signals, including audit HOLDs
func (b *Batch) Len() int { return len(b.signals) }

// Misses returns how many evaluations were skipped for missing data
func (b *Batch) Misses() int { return b.misses }

// Signals returns every signal in insertion order
func (b *Batch) Signals() []contracts.TradingSignal {
	out := make([]contracts.TradingSignal, len(b.signals))
	copy(out, b.signals)
	return out
}

// Actionable returns only BUY/SELL signals
func (b *Batch) Actionable() []contracts.TradingSignal {
	out := make([]contracts.TradingSignal, 0, len(b.signals))
	for _, s := range b.signals {
		if s.Type.IsActionable() {
			out = append(out, s)
		}
	}
	return out
}

// Counts returns the number of signals per type
func (b *Batch) Counts() map[contracts.SignalType]int {
	counts := make(map[contracts.SignalType]int, 3)
	for _, s := range b.signals {
		counts[s.Type]++
	}
	return counts
}

// mergeBatches combines per-instrument batches ordered by (date, code)
func mergeBatches(parts []*Batch) (*Batch, error) {
	var all []contracts.TradingSignal
	misses := 0
	for _, p := range parts {
		if p == nil {
			continue
		}
		all = append(all, p.signals...)
		misses += p.misses
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].Code < all[j].Code
	})

	merged := NewBatch()
	merged.misses = misses
	for _, s := range all {
		if err := merged.Add(s); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
