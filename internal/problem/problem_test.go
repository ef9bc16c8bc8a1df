package problem

import (
	"math"
	"testing"
)

func TestSchwefelKnownPoints(t *testing.T) {
	s, err := NewSchwefel(2)
	if err != nil {
		t.Fatalf("NewSchwefel() error = %v", err)
	}
	if s.GenomeSize() != 4 {
		t.Fatalf("GenomeSize() = %d, want 4", s.GenomeSize())
	}

	// all-zero genome decodes to -500 in every dimension
	xs := s.Decode(make([]byte, 4))
	if xs[0] != -500 || xs[1] != -500 {
		t.Fatalf("Decode(zero) = %v, want [-500 -500]", xs)
	}
	want := 2*(-500*math.Sin(math.Sqrt(500))) - 2*418.9829
	if got := s.Evaluate(make([]byte, 4)); math.Abs(got-want) > 1e-9 {
		t.Fatalf("Evaluate(zero) = %v, want %v", got, want)
	}

	// the global optimum sits at 420.9687 in every dimension
	best := s.Evaluate(s.Encode([]float64{420.9687, 420.9687}))
	if math.Abs(best) > 0.01 {
		t.Fatalf("Evaluate(optimum) = %v, want about 0", best)
	}
	if best < s.Evaluate(s.Encode([]float64{0, 0})) {
		t.Fatalf("optimum scores below the origin")
	}
}

func TestSchwefelEncodeRoundTrip(t *testing.T) {
	s, _ := NewSchwefel(3)
	xs := s.Decode(s.Encode([]float64{-500, 0, 500}))
	for i, want := range []float64{-500, 0, 500} {
		if math.Abs(xs[i]-want) > 0.01 {
			t.Fatalf("dimension %d = %v, want %v", i, xs[i], want)
		}
	}
}

func TestSchwefelSolved(t *testing.T) {
	s, _ := NewSchwefel(1)
	if s.Solved(0, nil) || !s.Solved(0.001, nil) {
		t.Fatalf("Solved must require strictly positive fitness")
	}
	if _, err := NewSchwefel(0); err == nil {
		t.Fatalf("expected error for zero dimensions")
	}
}

func TestQuadratic(t *testing.T) {
	q := NewQuadratic()
	peak := 1 / math.Sqrt(2*20*20*math.Pi)

	tests := []struct {
		name string
		x    float32
		want float64
	}{
		{"target", QuadraticTarget, peak},
		{"far", -10000, 0},
		{"nan", float32(math.NaN()), 0},
		{"inf", float32(math.Inf(1)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := q.Evaluate(q.Encode(tt.x))
			if math.Abs(got-tt.want) > 1e-6 {
				t.Fatalf("Evaluate(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}

	if q.Evaluate(q.Encode(90)) >= q.Evaluate(q.Encode(100)) {
		t.Fatalf("fitness must rise towards the target")
	}
}

func TestQuadraticSolved(t *testing.T) {
	q := NewQuadratic()
	if !q.Solved(0, q.Encode(101.1)) {
		t.Fatalf("101.1 is within 0.01%% of the target")
	}
	if q.Solved(0, q.Encode(101)) {
		t.Fatalf("101 is not within 0.01%% of the target")
	}
}

func TestNew(t *testing.T) {
	p, err := New("schwefel", 0)
	if err != nil {
		t.Fatalf("New(schwefel) error = %v", err)
	}
	if p.GenomeSize() != 40 {
		t.Fatalf("GenomeSize() = %d", p.GenomeSize())
	}
	if p, err = New("quadratic", 9); err != nil || p.GenomeSize() != 4 {
		t.Fatalf("New(quadratic) = %v, %v", p, err)
	}
	if _, err := New("rosenbrock", 2); err == nil {
		t.Fatalf("expected error for unknown problem")
	}
	if names := Names(); len(names) != 2 || names[0] != "quadratic" {
		t.Fatalf("Names() = %v", names)
	}
}
