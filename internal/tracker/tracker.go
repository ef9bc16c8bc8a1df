// Package tracker maintains per-position byte distributions of a genome population
// and uses them to synthesise and mutate genome bytes.
package tracker

import (
	"fmt"

	"github.com/psychicsniffle/sniffle/internal/prng"
)

// Analyser observes elite genomes each generation and produces genome bytes
type Analyser interface {
	// Reset returns the analyser to its uninformed state
	Reset()
	// Crank updates the distributions from the elite genomes. It returns only
	// once every distribution has been rebuilt.
	Crank(genomes [][]byte, elite []int) error
	// MutateByte overwrites one random byte of genome
	MutateByte(genome []byte, r *prng.Stream)
	// Randomize overwrites every byte of genome
	Randomize(genome []byte, r *prng.Stream)
}

// Kind names an analyser implementation
type Kind string

const (
	KindBreathing Kind = "breathing"
	KindUniform   Kind = "uniform"
)

// MaxCeiling is the highest allowed bucket value
const MaxCeiling = 250

// Config holds the histogram magnitudes of the breathing analyser
type Config struct {
	// Initial is the value every bucket starts from
	Initial uint8
	// Decay is subtracted from every bucket above 1 each generation
	Decay uint8
	// Reinforce is added to the bucket of an elite byte value
	Reinforce uint8
	// NeighbourBoost is added to buckets within Radius of an elite byte value
	NeighbourBoost uint8
	// Radius is the neighbourhood half-width
	Radius int
	// Ceiling caps every bucket; at most MaxCeiling
	Ceiling uint8
	// TableCapacity is the sampler table size per byte position
	TableCapacity int
}

// DefaultConfig returns the standard breathing magnitudes
func DefaultConfig() Config {
	return Config{
		Initial:        63,
		Decay:          1,
		Reinforce:      5,
		NeighbourBoost: 1,
		Radius:         3,
		Ceiling:        250,
		TableCapacity:  65535,
	}
}

// Validate checks the configuration for consistency
func (c Config) Validate() error {
	if c.Ceiling == 0 || c.Ceiling > MaxCeiling {
		return fmt.Errorf("tracker ceiling %d outside [1,%d]", c.Ceiling, MaxCeiling)
	}
	if c.Initial < 1 || c.Initial > c.Ceiling {
		return fmt.Errorf("tracker initial value %d outside [1,%d]", c.Initial, c.Ceiling)
	}
	if c.Radius < 0 || c.Radius > 255 {
		return fmt.Errorf("tracker radius %d outside [0,255]", c.Radius)
	}
	if c.TableCapacity < 256 {
		return fmt.Errorf("tracker table capacity %d below 256", c.TableCapacity)
	}
	return nil
}

// New builds the analyser of the given kind for genomes of size bytes
func New(kind Kind, size int, cfg Config, workers int) (Analyser, error) {
	if size < 1 {
		return nil, fmt.Errorf("genome size must be positive, got %d", size)
	}
	switch kind {
	case KindBreathing, "":
		return NewBreathing(size, cfg, workers)
	case KindUniform:
		return NewUniform(size), nil
	default:
		return nil, fmt.Errorf("unknown analyser %q (must be breathing or uniform)", kind)
	}
}
