package prng

import "testing"

func TestSeedIsReproducible(t *testing.T) {
	a := NewState(4, 12345)
	b := NewState(4, 12345)

	for slot := 0; slot < 4; slot++ {
		ra := a.Acquire(slot)
		rb := b.Acquire(slot)
		for i := 0; i < 100; i++ {
			if x, y := ra.Uint32(), rb.Uint32(); x != y {
				t.Fatalf("slot %d draw %d: %d != %d", slot, i, x, y)
			}
		}
	}
}

func TestSeedRespectsRegisterMinimums(t *testing.T) {
	s := NewState(64, 7)
	for slot := 0; slot < s.Slots(); slot++ {
		for w, min := range minRegister {
			if v := s.block[slot*slotWords+w]; v < min {
				t.Fatalf("slot %d word %d = %d, want >= %d", slot, w, v, min)
			}
		}
	}
}

func TestReleaseContinuesStream(t *testing.T) {
	continued := NewState(1, 99)
	straight := NewState(1, 99)

	r := continued.Acquire(0)
	first := []uint32{r.Uint32(), r.Uint32(), r.Uint32()}
	r.Release()

	r = continued.Acquire(0)
	second := []uint32{r.Uint32(), r.Uint32(), r.Uint32()}
	r.Release()

	ref := straight.Acquire(0)
	for i, want := range append(first, second...) {
		if got := ref.Uint32(); got != want {
			t.Fatalf("draw %d: continued stream gave %d, uninterrupted gave %d", i, want, got)
		}
	}
}

func TestWithoutReleaseStreamRestarts(t *testing.T) {
	s := NewState(1, 5)
	a := s.Acquire(0).Uint32()
	b := s.Acquire(0).Uint32()
	if a != b {
		t.Fatalf("expected unreleased stream to leave master untouched: %d != %d", a, b)
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	s := NewState(2, 42)
	r0 := s.Acquire(0)
	r1 := s.Acquire(1)

	same := 0
	for i := 0; i < 64; i++ {
		if r0.Uint32() == r1.Uint32() {
			same++
		}
	}
	if same > 1 {
		t.Fatalf("slots produced %d identical draws out of 64", same)
	}

	before := append([]uint32(nil), s.block[slotWords:]...)
	r0.Release()
	for i, v := range s.block[slotWords:] {
		if v != before[i] {
			t.Fatalf("releasing slot 0 modified slot 1 word %d", i)
		}
	}
}

func TestIntnRange(t *testing.T) {
	r := NewState(1, 3).Acquire(0)
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		v := r.Intn(7)
		if v < 0 || v >= 7 {
			t.Fatalf("Intn(7) returned %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 7 {
		t.Fatalf("expected all 7 values, saw %d", len(seen))
	}
}

func TestAcquireOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for invalid slot")
		}
	}()
	NewState(2, 1).Acquire(2)
}

func TestNewStateClampsSlots(t *testing.T) {
	if s := NewState(0, 1); s.Slots() != 1 {
		t.Fatalf("expected 1 slot, got %d", s.Slots())
	}
}
