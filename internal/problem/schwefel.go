package problem

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// DefaultSchwefelDimensions is the dimension count of the stock benchmark
	DefaultSchwefelDimensions = 20
	// SchwefelPopulation is the population size the stock benchmark runs with
	SchwefelPopulation = 400
	// SchwefelGenerationLimit bounds one Schwefel solution
	SchwefelGenerationLimit = 10000

	schwefelOffset = 418.9829
)

// Schwefel is the negated Schwefel function over D little-endian uint16 coordinates,
// each mapped linearly onto [-500, 500]. Its maximum is approximately 0.
type Schwefel struct {
	dims int
}

// NewSchwefel creates a Schwefel problem with dims coordinates
func NewSchwefel(dims int) (*Schwefel, error) {
	if dims < 1 {
		return nil, fmt.Errorf("schwefel needs at least one dimension, got %d", dims)
	}
	return &Schwefel{dims: dims}, nil
}

func (s *Schwefel) Name() string {
	return "schwefel"
}

func (s *Schwefel) GenomeSize() int {
	return 2 * s.dims
}

func (s *Schwefel) Dimensions() int {
	return s.dims
}

func (s *Schwefel) Decode(genome []byte) []float64 {
	xs := make([]float64, s.dims)
	for d := range xs {
		v := binary.LittleEndian.Uint16(genome[2*d:])
		xs[d] = 1000*float64(v)/math.MaxUint16 - 500
	}
	return xs
}

func (s *Schwefel) Evaluate(genome []byte) float64 {
	sum := 0.0
	for _, x := range s.Decode(genome) {
		sum += x * math.Sin(math.Sqrt(math.Abs(x)))
	}
	return sum - schwefelOffset*float64(s.dims)
}

// Solved is true once the fitness turns positive
func (s *Schwefel) Solved(fitness float64, _ []byte) bool {
	return fitness > 0
}

// Encode maps coordinates in [-500, 500] back to a genome
func (s *Schwefel) Encode(xs []float64) []byte {
	genome := make([]byte, s.GenomeSize())
	for d := 0; d < s.dims && d < len(xs); d++ {
		x := math.Max(-500, math.Min(500, xs[d]))
		v := math.Round((x + 500) / 1000 * math.MaxUint16)
		binary.LittleEndian.PutUint16(genome[2*d:], uint16(v))
	}
	return genome
}
