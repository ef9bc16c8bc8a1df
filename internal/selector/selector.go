// Package selector draws distinct indices from a domain without replacement.
package selector

import (
	"errors"
	"fmt"

	"github.com/psychicsniffle/sniffle/internal/prng"
)

var (
	// ErrExhausted is returned when more than the configured number of draws is requested
	ErrExhausted = errors.New("selector exhausted")
	// ErrDomainTooSmall is returned when the domain cannot supply enough distinct indices
	ErrDomainTooSmall = errors.New("selector domain too small")
)

// Selector returns up to max distinct indices in [0, n) between resets.
// The exclusion list is scanned linearly, which suits the handful of draws it is used for.
type Selector struct {
	n      int
	picked []int
}

// New creates a selector for max draws over the domain [0, n)
func New(max, n int) (*Selector, error) {
	if max < 1 {
		return nil, fmt.Errorf("selector max draws must be positive, got %d", max)
	}
	if n < max {
		return nil, fmt.Errorf("%w: %d distinct draws from domain of %d", ErrDomainTooSmall, max, n)
	}
	return &Selector{n: n, picked: make([]int, 0, max)}, nil
}

// Reset forgets previous draws
func (s *Selector) Reset() {
	s.picked = s.picked[:0]
}

// Select draws an index not returned since the last Reset
func (s *Selector) Select(r *prng.Stream) (int, error) {
	if len(s.picked) == cap(s.picked) {
		return 0, fmt.Errorf("%w: %d draws without reset", ErrExhausted, cap(s.picked)+1)
	}

	for {
		v := r.Intn(s.n)
		if !s.taken(v) {
			s.picked = append(s.picked, v)
			return v, nil
		}
	}
}

func (s *Selector) taken(v int) bool {
	for _, p := range s.picked {
		if p == v {
			return true
		}
	}
	return false
}
