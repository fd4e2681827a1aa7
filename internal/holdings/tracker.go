// Package holdings tracks which instruments are currently entered during a
// single signal-generation run.
package holdings

import (
	"sort"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// Transition is the outcome of one state-machine step
type Transition int

const (
	// NoChange: state unchanged, nothing to emit
	NoChange Transition = iota
	// Enter: NOT_HELD -> HELD, emit BUY
	Enter
	// Exit: HELD -> NOT_HELD, emit SELL
	Exit
)

func (t Transition) String() string {
	switch t {
	case Enter:
		return "ENTER"
	case Exit:
		return "EXIT"
	default:
		return "NONE"
	}
}

// SignalType maps the transition to the signal it emits
func (t Transition) SignalType() (contracts.SignalType, bool) {
	switch t {
	case Enter:
		return contracts.SignalBuy, true
	case Exit:
		return contracts.SignalSell, true
	}
	return "", false
}

// Tracker is the run-scoped set of held codes.
// 동시성 안전하지 않음: 한 run(고루틴)에서만 사용
type Tracker struct {
	held map[string]struct{}
}

// New returns an empty tracker
func New() *Tracker {
	return &Tracker{held: make(map[string]struct{})}
}

// Step advances the state machine for code given today's pool membership
func (t *Tracker) Step(code string, inPool bool) Transition {
	code = contracts.NormalizeCode(code)
	_, isHeld := t.held[code]

	switch {
	case !isHeld && inPool:
		t.held[code] = struct{}{}
		return Enter
	case isHeld && !inPool:
		delete(t.held, code)
		return Exit
	default:
		return NoChange
	}
}

// Apply records an externally decided BUY/SELL (threshold mode)
func (t *Tracker) Apply(code string, typ contracts.SignalType) {
	code = contracts.NormalizeCode(code)
	switch typ {
	case contracts.SignalBuy:
		t.held[code] = struct{}{}
	case contracts.SignalSell:
		delete(t.held, code)
	}
}

// IsHeld reports whether code is currently entered
func (t *Tracker) IsHeld(code string) bool {
	_, ok := t.held[contracts.NormalizeCode(code)]
	return ok
}

// Held returns the held codes, sorted
func (t *Tracker) Held() []string {
	out := make([]string, 0, len(t.held))
	for c := range t.held {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of held codes
func (t *Tracker) Len() int { return len(t.held) }

// Reset empties the tracker for a new run
func (t *Tracker) Reset() {
	t.held = make(map[string]struct{})
}

// Clone returns a fresh, empty tracker. Holdings never leak across runs.
func (t *Tracker) Clone() *Tracker {
	return New()
}
