// Package sampler builds bucket-replication tables for O(1) weighted sampling.
//
// A table built from weights w is a list of input indices in which index j
// appears roughly in proportion to w[j]-min(w). Drawing a uniformly random
// entry therefore reproduces the weight distribution.
package sampler

import (
	"errors"
	"fmt"

	"github.com/psychicsniffle/sniffle/internal/prng"
)

var (
	// ErrTableOverflow is returned when the table would not fit its capacity
	ErrTableOverflow = errors.New("sampler table overflow")
	// ErrTableEmpty is returned when no entry survives discretisation
	ErrTableEmpty = errors.New("sampler table empty")
	// ErrIndexRange is returned when the index type cannot address every input
	ErrIndexRange = errors.New("sampler index type too narrow")
	// ErrNoWeights is returned for an empty weight array
	ErrNoWeights = errors.New("sampler has no weights")
)

// Weight is any numeric type usable as a sampling weight
type Weight interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Index is an unsigned type used for table entries
type Index interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// TableError describes a failed build with the offending sizes
type TableError struct {
	Err      error
	Inputs   int
	Capacity int
	Length   int
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%v: inputs=%d capacity=%d length=%d", e.Err, e.Inputs, e.Capacity, e.Length)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// Build fills out with the sampling table for in and returns the number of entries written.
// The capacity is len(out). Weights are shifted by their minimum; when they are all equal
// the table is the identity permutation of len(in).
func Build[O Index, W Weight](out []O, in []W) (int, error) {
	capacity := len(out)
	fail := func(err error, n int) (int, error) {
		return 0, &TableError{Err: err, Inputs: len(in), Capacity: capacity, Length: n}
	}

	if len(in) == 0 {
		return fail(ErrNoWeights, 0)
	}
	if uint64(len(in)-1) > uint64(^O(0)) {
		return fail(ErrIndexRange, 0)
	}

	min := in[0]
	for _, w := range in[1:] {
		if w < min {
			min = w
		}
	}

	var sum float64
	for _, w := range in {
		sum += float64(w) - float64(min)
	}

	if sum == 0 {
		if len(in) > capacity {
			return fail(ErrTableOverflow, len(in))
		}
		for j := range in {
			out[j] = O(j)
		}
		return len(in), nil
	}

	coef := float64(capacity-1) / sum

	n := 0
	for j, w := range in {
		count := int((float64(w) - float64(min)) * coef)
		if n+count > capacity {
			return fail(ErrTableOverflow, n+count)
		}
		for k := 0; k < count; k++ {
			out[n] = O(j)
			n++
		}
	}

	if n == 0 {
		return fail(ErrTableEmpty, 0)
	}
	return n, nil
}

// Table is a reusable sampling table with a fixed capacity
type Table[O Index] struct {
	entries []O
	n       int
}

// NewTable allocates a table able to hold capacity entries
func NewTable[O Index](capacity int) *Table[O] {
	return &Table[O]{entries: make([]O, capacity)}
}

// Rebuild replaces the contents of t with the table for in
func Rebuild[O Index, W Weight](t *Table[O], in []W) error {
	n, err := Build(t.entries, in)
	if err != nil {
		return err
	}
	t.n = n
	return nil
}

// Identity sets the table to the uniform permutation [0, n)
func (t *Table[O]) Identity(n int) error {
	if n > len(t.entries) {
		return &TableError{Err: ErrTableOverflow, Inputs: n, Capacity: len(t.entries), Length: n}
	}
	for j := 0; j < n; j++ {
		t.entries[j] = O(j)
	}
	t.n = n
	return nil
}

// Len returns the number of live entries
func (t *Table[O]) Len() int {
	return t.n
}

// Capacity returns the maximum number of entries
func (t *Table[O]) Capacity() int {
	return len(t.entries)
}

// Entries returns the live entries. The slice is owned by the table.
func (t *Table[O]) Entries() []O {
	return t.entries[:t.n]
}

// At returns the entry at position i
func (t *Table[O]) At(i int) O {
	return t.entries[i]
}

// Sample draws one entry uniformly at random
func (t *Table[O]) Sample(r *prng.Stream) O {
	return t.entries[r.Uint32()%uint32(t.n)]
}
