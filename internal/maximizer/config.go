package maximizer

import (
	"fmt"
	"runtime"

	"github.com/psychicsniffle/sniffle/internal/tracker"
)

// GroupBounds holds the end of each operator group as a fraction of the population.
// Slot 0 always carries the best genome; the preserve group starts at slot 1 and the
// explore group runs from FreeSplice to the end of the population.
type GroupBounds struct {
	Preserve       float64
	SemiPreserve   float64
	SpliceForward  float64
	SpliceBackward float64
	FreeSplice     float64
}

// EliteConfig sizes the elite set as Floor + Fraction*PopulationSize
type EliteConfig struct {
	Fraction float64
	Floor    int
}

// Config holds the fixed parameters of a Maximizer
type Config struct {
	GenomeSize           int
	PopulationSize       int
	Groups               GroupBounds
	Elite                EliteConfig
	FitnessTableCapacity int
	Analyser             tracker.Kind
	Tracker              tracker.Config
	// Workers is the size of the fork-join pool; 0 uses GOMAXPROCS
	Workers int
	// Seed initialises the PRNG master block; 0 derives it from the clock
	Seed int64
}

// DefaultConfig returns the standard operator mix for the given genome and population sizes
func DefaultConfig(genomeSize, populationSize int) Config {
	return Config{
		GenomeSize:     genomeSize,
		PopulationSize: populationSize,
		Groups: GroupBounds{
			Preserve:       0.30,
			SemiPreserve:   0.50,
			SpliceForward:  0.70,
			SpliceBackward: 0.80,
			FreeSplice:     0.90,
		},
		Elite: EliteConfig{
			Fraction: 0.025,
			Floor:    5,
		},
		FitnessTableCapacity: 65535,
		Analyser:             tracker.KindBreathing,
		Tracker:              tracker.DefaultConfig(),
	}
}

// EliteCount returns the number of elite indices sampled each generation
func (c Config) EliteCount() int {
	return c.Elite.Floor + int(c.Elite.Fraction*float64(c.PopulationSize))
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Validate checks the configuration once, before any allocation
func (c Config) Validate() error {
	if c.GenomeSize <= 0 {
		return fmt.Errorf("genome size must be positive, got %d", c.GenomeSize)
	}
	if c.PopulationSize <= 0 {
		return fmt.Errorf("population size must be positive, got %d", c.PopulationSize)
	}

	bounds := []float64{
		c.Groups.Preserve,
		c.Groups.SemiPreserve,
		c.Groups.SpliceForward,
		c.Groups.SpliceBackward,
		c.Groups.FreeSplice,
	}
	prev := 0.0
	for i, b := range bounds {
		if b < prev || b > 1 {
			return fmt.Errorf("group bound %d (%v) must be within [%v,1]", i, b, prev)
		}
		prev = b
	}

	if c.Elite.Fraction < 0 || c.Elite.Floor < 0 {
		return fmt.Errorf("elite fraction and floor cannot be negative")
	}
	if n := c.EliteCount(); n < 1 || n >= c.PopulationSize {
		return fmt.Errorf("%w: elite set of %d for population of %d", ErrInvariant, n, c.PopulationSize)
	}

	if c.FitnessTableCapacity < c.PopulationSize {
		return fmt.Errorf("fitness table capacity %d below population size %d", c.FitnessTableCapacity, c.PopulationSize)
	}
	if uint64(c.PopulationSize) > 1<<32 {
		return fmt.Errorf("population size %d exceeds table index range", c.PopulationSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}

	if c.Analyser == tracker.KindBreathing || c.Analyser == "" {
		if err := c.Tracker.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// operator groups in population order
type group int

const (
	groupPreserve group = iota
	groupSemiPreserve
	groupSpliceForward
	groupSpliceBackward
	groupFreeSplice
	groupExplore
	groupCount
)

// groupRanges partitions [1, PopulationSize) into contiguous, gap-free group ranges
func (c Config) groupRanges() [groupCount][2]int {
	n := c.PopulationSize
	ends := []float64{
		c.Groups.Preserve,
		c.Groups.SemiPreserve,
		c.Groups.SpliceForward,
		c.Groups.SpliceBackward,
		c.Groups.FreeSplice,
	}

	var out [groupCount][2]int
	start := min(1, n)
	for g := range out {
		end := n
		if g < len(ends) {
			end = max(start, int(float64(n)*ends[g]))
		}
		out[g] = [2]int{start, end}
		start = end
	}
	return out
}
