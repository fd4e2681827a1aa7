package topk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/aegis-signal/internal/contracts"
)

// Size is the pool size K. The zero value is unbounded ("consider everyone").
type Size struct {
	n   int
	set bool
}

// Unbounded returns a Size that keeps every instrument
func Unbounded() Size { return Size{} }

// Of returns a bounded Size. Positivity is checked by Validate, not here.
func Of(n int) Size { return Size{n: n, set: true} }

// Bounded reports whether a K was configured
func (s Size) Bounded() bool { return s.set }

// N returns K, or 0 when unbounded
func (s Size) N() int { return s.n }

// Validate rejects non-positive bounded sizes with an InvalidConfigurationError
func (s Size) Validate() error {
	if s.set && s.n <= 0 {
		return contracts.NewConfigError("top_k", s.String(), "must be a positive integer or \"unbounded\"")
	}
	return nil
}

func (s Size) String() string {
	if !s.set {
		return "unbounded"
	}
	return strconv.Itoa(s.n)
}

// MarshalText implements encoding.TextMarshaler
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts an integer or "unbounded"/"all"/"none"/""
func (s *Size) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "", "unbounded", "all", "none", "null", "~":
		*s = Unbounded()
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("top_k must be a positive integer or \"unbounded\", got %q", v)
	}
	*s = Of(n)
	return nil
}
