// Package problem holds benchmark fitness functions over raw byte genomes
package problem

import (
	"fmt"
	"sort"
)

// Problem scores genomes of a fixed size. Evaluate must be safe for concurrent use.
type Problem interface {
	Name() string
	GenomeSize() int
	Evaluate(genome []byte) float64
	// Decode returns the genome's values in problem units
	Decode(genome []byte) []float64
	// Solved reports whether a genome with the given fitness ends the search
	Solved(fitness float64, genome []byte) bool
}

var registry = map[string]func(dims int) (Problem, error){
	"schwefel": func(dims int) (Problem, error) {
		if dims == 0 {
			dims = DefaultSchwefelDimensions
		}
		return NewSchwefel(dims)
	},
	"quadratic": func(int) (Problem, error) {
		return NewQuadratic(), nil
	},
}

// New returns the named problem; dims is ignored by fixed-size problems
func New(name string, dims int) (Problem, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown problem %q (known: %v)", name, Names())
	}
	return build(dims)
}

// Names lists the registered problems in order
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
