// Package maximizer evolves a double-buffered population of fixed-size byte
// genomes toward higher fitness.
//
// The caller owns evaluation: it reads Genomes, computes one fitness value per
// genome and passes them to Crank, which builds the next generation and makes
// it current. Slot 0 of every new generation is a copy of the previous
// generation's fittest genome.
package maximizer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/psychicsniffle/sniffle/internal/forkjoin"
	"github.com/psychicsniffle/sniffle/internal/prng"
	"github.com/psychicsniffle/sniffle/internal/sampler"
	"github.com/psychicsniffle/sniffle/internal/selector"
	"github.com/psychicsniffle/sniffle/internal/splice"
	"github.com/psychicsniffle/sniffle/internal/tracker"
	"github.com/psychicsniffle/sniffle/pkg/logger"
)

// ErrInvariant marks structural failures. A Maximizer that returned it must be discarded.
var ErrInvariant = errors.New("maximizer invariant violated")

// free splice draws two distinct fitness-table slots per genome
const freeSpliceDraws = 2

// Maximizer is a genetic maximizer over opaque byte genomes.
// It is not safe for concurrent use; Crank parallelises internally.
type Maximizer struct {
	cfg        Config
	ranges     [groupCount][2]int
	eliteCount int

	buf   [2][]byte
	views [2][][]byte
	cur   int

	scratch []float64
	table   *sampler.Table[uint32]
	elite   []int

	analyser   tracker.Analyser
	rng        *prng.State
	generation int
	err        error
	log        *slog.Logger
}

// New validates cfg, allocates the population and randomizes it
func New(cfg Config) (*Maximizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid maximizer config: %w", err)
	}

	workers := cfg.workers()
	analyser, err := tracker.New(cfg.Analyser, cfg.GenomeSize, cfg.Tracker, workers)
	if err != nil {
		return nil, err
	}

	m := &Maximizer{
		cfg:        cfg,
		ranges:     cfg.groupRanges(),
		eliteCount: cfg.EliteCount(),
		scratch:    make([]float64, cfg.PopulationSize),
		table:      sampler.NewTable[uint32](cfg.FitnessTableCapacity),
		elite:      make([]int, cfg.EliteCount()),
		analyser:   analyser,
		rng:        prng.NewState(workers, cfg.Seed),
	}

	size, n := cfg.GenomeSize, cfg.PopulationSize
	for b := range m.buf {
		m.buf[b] = make([]byte, size*n)
		m.views[b] = make([][]byte, n)
		for i := range m.views[b] {
			m.views[b][i] = m.buf[b][i*size : (i+1)*size : (i+1)*size]
		}
	}

	if err := m.Reset(0); err != nil {
		return nil, err
	}
	return m, nil
}

// WithLogger sets the logger used for per-generation debug output
func (m *Maximizer) WithLogger(l *slog.Logger) *Maximizer {
	m.log = l
	return m
}

func (m *Maximizer) logger() *slog.Logger {
	if m.log != nil {
		return m.log
	}
	return logger.Default
}

// Reset returns the analyser to its uniform state and randomizes every genome of
// the current generation from index preserve onward. With preserve == 0 the first
// buffer becomes current again.
func (m *Maximizer) Reset(preserve int) error {
	if preserve < 0 || preserve > m.cfg.PopulationSize {
		return fmt.Errorf("preserve count %d outside [0,%d]", preserve, m.cfg.PopulationSize)
	}
	if preserve == 0 {
		m.cur = 0
	}
	m.generation = 0
	m.analyser.Reset()

	pop := m.views[m.cur]
	slots := m.rng.Slots()
	return forkjoin.Run(m.rng, func(w int, r *prng.Stream) error {
		lo, hi := forkjoin.Chunk(preserve, len(pop), w, slots)
		for i := lo; i < hi; i++ {
			m.analyser.Randomize(pop[i], r)
		}
		return nil
	})
}

// Genomes returns the current generation. The view is valid until the next Crank.
func (m *Maximizer) Genomes() [][]byte {
	return m.views[m.cur]
}

// Crank consumes one fitness value per current genome and makes the next generation current.
// Any error is structural and is returned again by every later call.
func (m *Maximizer) Crank(fitness []float64) error {
	if m.err != nil {
		return m.err
	}
	if err := m.crank(fitness); err != nil {
		m.err = err
		return err
	}
	return nil
}

func (m *Maximizer) crank(fitness []float64) error {
	if len(fitness) != m.cfg.PopulationSize {
		return fmt.Errorf("%w: fitness has %d entries, population is %d", ErrInvariant, len(fitness), m.cfg.PopulationSize)
	}

	best, _, err := adjustFitness(m.scratch, fitness)
	if err != nil {
		return err
	}

	if err := sampler.Rebuild(m.table, m.scratch); err != nil {
		return fmt.Errorf("%w: fitness table: %v", ErrInvariant, err)
	}

	// the best goes in once so it cannot be lost from, or flood, the elite set
	m.elite[0] = best
	r := m.rng.Acquire(0)
	for i := 1; i < len(m.elite); i++ {
		m.elite[i] = int(m.table.Sample(r))
	}
	r.Release()

	cur, next := m.views[m.cur], m.views[1-m.cur]

	if err := m.analyser.Crank(cur, m.elite); err != nil {
		return fmt.Errorf("%w: analyser: %v", ErrInvariant, err)
	}

	copy(next[0], cur[best])

	err = forkjoin.Run(m.rng, func(w int, r *prng.Stream) error {
		return m.breed(w, r, cur, next, best)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvariant, err)
	}

	m.cur = 1 - m.cur
	m.generation++

	m.logger().Debug("generation cranked",
		"generation", m.generation,
		"best_index", best,
		"best_fitness", fitness[best],
		"table_len", m.table.Len())
	return nil
}

// breed fills this worker's share of every operator group of next
func (m *Maximizer) breed(w int, r *prng.Stream, cur, next [][]byte, best int) error {
	workers := m.rng.Slots()

	var sel *selector.Selector
	for g, rg := range m.ranges {
		lo, hi := forkjoin.Chunk(rg[0], rg[1], w, workers)
		if lo == hi {
			continue
		}

		switch group(g) {
		case groupPreserve:
			for i := lo; i < hi; i++ {
				copy(next[i], cur[m.draw(r)])
			}
		case groupSemiPreserve:
			for i := lo; i < hi; i++ {
				copy(next[i], cur[m.draw(r)])
				m.analyser.MutateByte(next[i], r)
			}
		case groupSpliceForward:
			for i := lo; i < hi; i++ {
				b := m.draw(r)
				splice.Splice(next[i], cur[best], cur[b], r.Uint32())
			}
		case groupSpliceBackward:
			for i := lo; i < hi; i++ {
				a := m.draw(r)
				splice.Splice(next[i], cur[a], cur[best], r.Uint32())
			}
		case groupFreeSplice:
			if sel == nil {
				var err error
				if sel, err = selector.New(freeSpliceDraws, m.table.Len()); err != nil {
					return err
				}
			}
			for i := lo; i < hi; i++ {
				sel.Reset()
				sa, err := sel.Select(r)
				if err != nil {
					return err
				}
				sb, err := sel.Select(r)
				if err != nil {
					return err
				}
				a, b := int(m.table.At(sa)), int(m.table.At(sb))
				splice.Splice(next[i], cur[a], cur[b], r.Uint32())
			}
		case groupExplore:
			for i := lo; i < hi; i++ {
				m.analyser.Randomize(next[i], r)
			}
		}
	}
	return nil
}

func (m *Maximizer) draw(r *prng.Stream) int {
	return int(m.table.Sample(r))
}

// adjustFitness copies src into dst, checks every value is finite and replaces
// every repeat of the maximum after its first occurrence with the minimum.
// It returns the index of the first maximum and of the first minimum.
func adjustFitness(dst, src []float64) (best, worst int, err error) {
	copy(dst, src)
	for i, f := range dst {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, 0, fmt.Errorf("%w: fitness[%d] is %v", ErrInvariant, i, f)
		}
		if f > dst[best] {
			best = i
		}
		if f < dst[worst] {
			worst = i
		}
	}

	top, bottom := dst[best], dst[worst]
	for i := range dst {
		if i != best && dst[i] == top {
			dst[i] = bottom
		}
	}
	return best, worst, nil
}

// Generation returns the number of cranks since the last Reset
func (m *Maximizer) Generation() int {
	return m.generation
}

// Elite returns a copy of the elite indices chosen by the last Crank
func (m *Maximizer) Elite() []int {
	return append([]int(nil), m.elite...)
}

// Analyser returns the distribution tracker
func (m *Maximizer) Analyser() tracker.Analyser {
	return m.analyser
}

// Config returns the configuration the Maximizer was built with
func (m *Maximizer) Config() Config {
	return m.cfg
}

// Err returns the structural error that stopped the Maximizer, if any
func (m *Maximizer) Err() error {
	return m.err
}
