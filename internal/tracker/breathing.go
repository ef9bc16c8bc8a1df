package tracker

import (
	"fmt"

	"github.com/psychicsniffle/sniffle/internal/forkjoin"
	"github.com/psychicsniffle/sniffle/internal/prng"
	"github.com/psychicsniffle/sniffle/internal/sampler"
)

// Histogram counts byte values at one genome position
type Histogram [256]uint8

// Breathing keeps one histogram per genome position. Every generation the
// histograms breathe out (slow decay) and then breathe in around the byte
// values of the elite genomes, so values that keep winning gain probability
// while abandoned ones fade back towards the floor.
type Breathing struct {
	cfg     Config
	size    int
	workers int

	distr  []Histogram
	tables []*sampler.Table[uint8]
}

// NewBreathing creates a breathing analyser for genomes of size bytes.
// Crank spreads positions over workers goroutines.
func NewBreathing(size int, cfg Config, workers int) (*Breathing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	b := &Breathing{
		cfg:     cfg,
		size:    size,
		workers: workers,
		distr:   make([]Histogram, size),
		tables:  make([]*sampler.Table[uint8], size),
	}
	for ss := range b.tables {
		b.tables[ss] = sampler.NewTable[uint8](cfg.TableCapacity)
	}
	b.Reset()
	return b, nil
}

// Reset sets every histogram to a flat distribution
func (b *Breathing) Reset() {
	for ss := range b.distr {
		for v := range b.distr[ss] {
			b.distr[ss][v] = b.cfg.Initial
		}
		// capacity was validated against 256 in NewBreathing
		_ = b.tables[ss].Identity(256)
	}
}

// Crank attenuates every histogram, reinforces the elite byte values and
// rebuilds every sampler table. Positions are processed in parallel.
func (b *Breathing) Crank(genomes [][]byte, elite []int) error {
	for _, e := range elite {
		if e < 0 || e >= len(genomes) {
			return fmt.Errorf("elite index %d outside population of %d", e, len(genomes))
		}
		if len(genomes[e]) < b.size {
			return fmt.Errorf("elite genome %d has %d bytes, want %d", e, len(genomes[e]), b.size)
		}
	}

	return forkjoin.Each(b.workers, b.size, func(lo, hi int) error {
		for ss := lo; ss < hi; ss++ {
			b.breatheOut(ss)
			for _, e := range elite {
				b.breatheIn(ss, genomes[e][ss])
			}
			if err := sampler.Rebuild(b.tables[ss], b.distr[ss][:]); err != nil {
				return fmt.Errorf("byte %d: %w", ss, err)
			}
		}
		return nil
	})
}

func (b *Breathing) breatheOut(ss int) {
	h := &b.distr[ss]
	for v, c := range h {
		if c <= 1 {
			continue
		}
		n := int(c) - int(b.cfg.Decay)
		if n < 1 {
			n = 1
		}
		h[v] = uint8(n)
	}
}

func (b *Breathing) breatheIn(ss int, value byte) {
	h := &b.distr[ss]
	v := int(value)
	b.bump(h, v, b.cfg.Reinforce)
	for d := 1; d <= b.cfg.Radius; d++ {
		if v-d >= 0 {
			b.bump(h, v-d, b.cfg.NeighbourBoost)
		}
		if v+d <= 255 {
			b.bump(h, v+d, b.cfg.NeighbourBoost)
		}
	}
}

func (b *Breathing) bump(h *Histogram, v int, by uint8) {
	n := int(h[v]) + int(by)
	if n > int(b.cfg.Ceiling) {
		n = int(b.cfg.Ceiling)
	}
	h[v] = uint8(n)
}

// MutateByte replaces one random byte with a value drawn from that position's distribution
func (b *Breathing) MutateByte(genome []byte, r *prng.Stream) {
	ss := r.Intn(b.size)
	genome[ss] = b.tables[ss].Sample(r)
}

// Randomize draws every byte from its position's distribution
func (b *Breathing) Randomize(genome []byte, r *prng.Stream) {
	for ss := 0; ss < b.size; ss++ {
		genome[ss] = b.tables[ss].Sample(r)
	}
}

// Size returns the number of tracked positions
func (b *Breathing) Size() int {
	return b.size
}

// Snapshot returns a copy of every histogram
func (b *Breathing) Snapshot() []Histogram {
	out := make([]Histogram, len(b.distr))
	copy(out, b.distr)
	return out
}

// Contrast reports the smallest spread between any position's peak and any
// position's floor, scaled to [0,1]. It rises as every position converges.
func (b *Breathing) Contrast() float64 {
	lowestPeak, highestFloor := 255, 0
	for ss := range b.distr {
		lo, hi := 255, 0
		for _, c := range b.distr[ss] {
			lo = min(lo, int(c))
			hi = max(hi, int(c))
		}
		lowestPeak = min(lowestPeak, hi)
		highestFloor = max(highestFloor, lo)
	}
	return float64(max(0, lowestPeak-highestFloor)) / 255
}
