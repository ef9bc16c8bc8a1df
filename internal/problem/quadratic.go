package problem

import (
	"encoding/binary"
	"math"
)

const (
	// QuadraticTarget is the peak of the Gaussian
	QuadraticTarget = 101.10101
	// QuadraticPopulation is the population size the stock benchmark runs with
	QuadraticPopulation = 60000

	quadraticDelta = 20.0
	// quadraticTolerance is the relative distance to the target, in percent, that counts as solved
	quadraticTolerance = 0.01
)

// Quadratic scores a single little-endian float32 by a Gaussian centred on
// QuadraticTarget. NaN genomes score 0.
type Quadratic struct{}

func NewQuadratic() *Quadratic {
	return &Quadratic{}
}

func (q *Quadratic) Name() string {
	return "quadratic"
}

func (q *Quadratic) GenomeSize() int {
	return 4
}

func (q *Quadratic) value(genome []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(genome)))
}

func (q *Quadratic) Decode(genome []byte) []float64 {
	return []float64{q.value(genome)}
}

func (q *Quadratic) Evaluate(genome []byte) float64 {
	x := q.value(genome)
	if math.IsNaN(x) {
		return 0
	}
	// infinities fall through to exp(-Inf) = 0
	d := x - QuadraticTarget
	f := math.Exp(-d*d/(2*quadraticDelta*quadraticDelta)) / math.Sqrt(2*quadraticDelta*quadraticDelta*math.Pi)
	if math.IsNaN(f) {
		return 0
	}
	return f
}

// Solved is true when the decoded value is within 0.01% of the target
func (q *Quadratic) Solved(_ float64, genome []byte) bool {
	x := q.value(genome)
	return 100*math.Abs(QuadraticTarget-x)/QuadraticTarget < quadraticTolerance
}

// Encode stores x as a genome
func (q *Quadratic) Encode(x float32) []byte {
	genome := make([]byte, 4)
	binary.LittleEndian.PutUint32(genome, math.Float32bits(x))
	return genome
}
