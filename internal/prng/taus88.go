// Package prng provides a reproducible taus88 generator whose per-worker state
// lives in a shared master block. A worker acquires a Stream for the duration of
// a parallel region and releases it on exit, so successive regions continue
// each worker's sequence without re-seeding and without locking.
package prng

import (
	"math/rand/v2"
	"time"
)

// words per worker slot: three taus88 registers plus one scratch word
const slotWords = 4

// taus88 requires each register to exceed these values to stay out of its
// degenerate sub-cycles
var minRegister = [3]uint32{2, 8, 16}

// noCopy triggers the vet copylocks check when a State is copied by value
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// State is the master block holding one seed block per worker slot
type State struct {
	noCopy noCopy

	block []uint32
	slots int
}

// NewState allocates a master block for the given number of worker slots and seeds it.
// A seed of 0 derives the seed from the clock.
func NewState(slots int, seed int64) *State {
	if slots < 1 {
		slots = 1
	}
	s := &State{
		block: make([]uint32, slots*slotWords),
		slots: slots,
	}
	s.Seed(seed)
	return s
}

// Seed refills every slot from seed. The same seed always produces the same block.
func (s *State) Seed(seed int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	src := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	for slot := 0; slot < s.slots; slot++ {
		base := slot * slotWords
		for w := 0; w < slotWords; w++ {
			v := src.Uint32()
			if w < len(minRegister) && v < minRegister[w] {
				v += minRegister[w]
			}
			s.block[base+w] = v
		}
	}
}

// Slots returns the number of worker slots
func (s *State) Slots() int {
	return s.slots
}

// Acquire copies the registers of slot out of the master block.
// The caller must Release the stream when the region ends.
func (s *State) Acquire(slot int) *Stream {
	if slot < 0 || slot >= s.slots {
		panic("prng: slot out of range")
	}
	r := &Stream{master: s, slot: slot}
	copy(r.reg[:], s.block[slot*slotWords:(slot+1)*slotWords])
	return r
}

// Stream is a worker-local view of one master slot
type Stream struct {
	master *State
	slot   int
	reg    [slotWords]uint32
}

// Release writes the evolved registers back into the master slot.
// Calling Release more than once is harmless; the last call wins.
func (r *Stream) Release() {
	copy(r.master.block[r.slot*slotWords:(r.slot+1)*slotWords], r.reg[:])
}

// Slot returns the master slot this stream belongs to
func (r *Stream) Slot() int {
	return r.slot
}

// Uint32 advances the generator and returns the next 32-bit value
func (r *Stream) Uint32() uint32 {
	s := &r.reg
	s[3] = ((s[0] << 13) ^ s[0]) >> 19
	s[0] = ((s[0] & 0xFFFFFFFE) << 12) ^ s[3]
	s[3] = ((s[1] << 2) ^ s[1]) >> 25
	s[1] = ((s[1] & 0xFFFFFFF8) << 4) ^ s[3]
	s[3] = ((s[2] << 3) ^ s[2]) >> 11
	s[2] = ((s[2] & 0xFFFFFFF0) << 17) ^ s[3]
	return s[0] ^ s[1] ^ s[2]
}

// Intn returns a value in [0, n) by modulo reduction. n must be positive.
func (r *Stream) Intn(n int) int {
	return int(r.Uint32() % uint32(n))
}

// Byte returns the low byte of the next value
func (r *Stream) Byte() byte {
	return byte(r.Uint32())
}
