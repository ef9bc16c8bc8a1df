package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/psychicsniffle/sniffle/internal/improvement"
)

func TestObserveGeneration(t *testing.T) {
	r := NewRecorder(nil)

	r.ObserveGeneration("a", improvement.GenerationStep{Best: 4, Mean: 2, StdDev: 1}, 5*time.Millisecond)
	r.ObserveGeneration("a", improvement.GenerationStep{Best: 6, Mean: 3, StdDev: 0.5}, 5*time.Millisecond)

	if got := testutil.ToFloat64(r.generations.WithLabelValues("a")); got != 2 {
		t.Fatalf("generations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.best.WithLabelValues("a")); got != 6 {
		t.Fatalf("best = %v, want 6", got)
	}
	if got := testutil.ToFloat64(r.mean.WithLabelValues("a")); got != 3 {
		t.Fatalf("mean = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(r.crank, MetricCrankSeconds); n != 1 {
		t.Fatalf("crank histogram series = %d, want 1", n)
	}
}

func TestSessionLifecycle(t *testing.T) {
	r := NewRecorder(nil)

	r.SessionOpened("a")
	r.SessionOpened("b")
	r.ObserveGeneration("a", improvement.GenerationStep{Best: 1}, 0)
	r.ObserveContrast("a", 0.25)
	r.CrankFailed("a")
	r.ObserveGeneration("b", improvement.GenerationStep{Best: 2}, 0)

	if got := testutil.ToFloat64(r.sessions); got != 2 {
		t.Fatalf("sessions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.contrast.WithLabelValues("a")); got != 0.25 {
		t.Fatalf("contrast = %v, want 0.25", got)
	}
	if got := testutil.ToFloat64(r.errors.WithLabelValues("a")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}

	r.SessionClosed("a")
	if got := testutil.ToFloat64(r.sessions); got != 1 {
		t.Fatalf("sessions = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(r.best, MetricBestFitness); n != 1 {
		t.Fatalf("best fitness series = %d, want 1 after closing a", n)
	}
}

func TestReporter(t *testing.T) {
	r := NewRecorder(nil)
	report := r.Reporter("cli")
	for i := 0; i < 3; i++ {
		report(improvement.GenerationStep{Generation: i, Best: float64(i)})
	}

	if got := testutil.ToFloat64(r.generations.WithLabelValues("cli")); got != 3 {
		t.Fatalf("generations = %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.best.WithLabelValues("cli")); got != 2 {
		t.Fatalf("best = %v, want 2", got)
	}
}

func TestRegistryExposition(t *testing.T) {
	r := NewRecorder(nil)
	r.SessionOpened("x")

	expected := `
# HELP sniffle_sessions_active Maximizer sessions currently held.
# TYPE sniffle_sessions_active gauge
sniffle_sessions_active 1
`
	if err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), MetricSessions); err != nil {
		t.Fatalf("GatherAndCompare() error = %v", err)
	}
}
