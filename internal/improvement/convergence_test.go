package improvement

import (
	"testing"
)

func steps(best ...float64) []GenerationStep {
	out := make([]GenerationStep, len(best))
	for i, b := range best {
		out[i] = GenerationStep{Generation: i, Best: b}
	}
	return out
}

func TestNoImprovementStrategy(t *testing.T) {
	strategy := NewNoImprovementStrategy(&ConvergenceConfig{
		NoImprovementGenerations: 3,
		MinGenerations:           2,
	})

	converged, reason := strategy.CheckConvergence(steps(10, 12, 12, 12, 12))
	if !converged {
		t.Fatalf("expected convergence, got false")
	}
	if reason == "" {
		t.Fatalf("expected convergence reason")
	}

	if converged, _ := strategy.CheckConvergence(steps(10, 10, 10, 11, 11)); converged {
		t.Fatalf("expected no convergence (recent improvement), got true")
	}

	if converged, _ := strategy.CheckConvergence(steps(10)); converged {
		t.Fatalf("expected no convergence before MinGenerations")
	}
}

func TestNoImprovementIgnoresDrops(t *testing.T) {
	strategy := NewNoImprovementStrategy(&ConvergenceConfig{NoImprovementGenerations: 2})
	if converged, _ := strategy.CheckConvergence(steps(-5, -1, -3)); converged {
		t.Fatalf("a lower score after the best must not count as improvement but only 1 generation passed")
	}
	if converged, _ := strategy.CheckConvergence(steps(-5, -1, -3, -2)); !converged {
		t.Fatalf("expected convergence two generations after the best")
	}
}

func TestPlateauStrategy(t *testing.T) {
	strategy := NewPlateauStrategy(&ConvergenceConfig{
		PlateauGenerations: 3,
		ScoreTolerance:     0.01,
		MinGenerations:     2,
	})

	if converged, _ := strategy.CheckConvergence(steps(90, 100, 100.005, 100.002)); !converged {
		t.Fatalf("expected plateau convergence")
	}
	if converged, _ := strategy.CheckConvergence(steps(90, 95, 100, 105)); converged {
		t.Fatalf("expected no convergence while improving")
	}
	if converged, _ := strategy.CheckConvergence(steps(100, 100)); converged {
		t.Fatalf("expected no convergence with a short history")
	}
}

func TestThresholdStrategy(t *testing.T) {
	strategy := NewThresholdStrategy(&ConvergenceConfig{
		NoImprovementGenerations: 3,
		ImprovementThreshold:     0.01,
		MinGenerations:           2,
	})

	if converged, _ := strategy.CheckConvergence(steps(50, 100, 100.1, 100.2)); !converged {
		t.Fatalf("expected convergence with sub-threshold gains")
	}
	if converged, _ := strategy.CheckConvergence(steps(50, 100, 100.1, 110)); converged {
		t.Fatalf("expected no convergence after a 10%% gain")
	}
	// negative scores improve towards zero
	if converged, _ := strategy.CheckConvergence(steps(-400, -300, -200, -100)); converged {
		t.Fatalf("expected no convergence for large gains on negative scores")
	}
}

func TestVarianceStrategy(t *testing.T) {
	strategy := NewVarianceStrategy(&ConvergenceConfig{
		PlateauGenerations:   4,
		ImprovementThreshold: 0.001,
	})
	if converged, _ := strategy.CheckConvergence(steps(1, 50, 50, 50, 50)); !converged {
		t.Fatalf("expected convergence on a flat window")
	}
	if converged, _ := strategy.CheckConvergence(steps(10, 20, 30, 40)); converged {
		t.Fatalf("expected no convergence on a rising window")
	}
}

func TestTargetStrategy(t *testing.T) {
	strategy := NewTargetStrategy(0)
	if converged, _ := strategy.CheckConvergence(steps(-10, -1)); converged {
		t.Fatalf("expected no convergence below target")
	}
	if converged, _ := strategy.CheckConvergence(steps(-10, 0.5)); !converged {
		t.Fatalf("expected convergence at target")
	}
	if converged, _ := strategy.CheckConvergence(nil); converged {
		t.Fatalf("expected no convergence on empty history")
	}
}

func TestMaxGenerationsStrategy(t *testing.T) {
	if converged, _ := NewMaxGenerationsStrategy(3).CheckConvergence(steps(1, 2)); converged {
		t.Fatalf("expected no convergence before the limit")
	}
	if converged, _ := NewMaxGenerationsStrategy(3).CheckConvergence(steps(1, 2, 3)); !converged {
		t.Fatalf("expected convergence at the limit")
	}
	if converged, _ := NewMaxGenerationsStrategy(0).CheckConvergence(steps(1, 2, 3)); converged {
		t.Fatalf("a zero limit never converges")
	}
}

func TestPredicateStrategy(t *testing.T) {
	strategy := NewPredicateStrategy("positive", func(s GenerationStep) bool { return s.Best > 0 })
	if strategy.Name() != "positive" {
		t.Fatalf("Name() = %q", strategy.Name())
	}
	if converged, _ := strategy.CheckConvergence(steps(-1, 0)); converged {
		t.Fatalf("expected no convergence at zero")
	}
	if converged, _ := strategy.CheckConvergence(steps(-1, 0.1)); !converged {
		t.Fatalf("expected convergence above zero")
	}
}

func TestCombinedStrategy(t *testing.T) {
	combined := Combine(NewTargetStrategy(100), NewMaxGenerationsStrategy(5))

	converged, reason := combined.CheckConvergence(steps(1, 2, 3, 4, 5))
	if !converged {
		t.Fatalf("expected max-generations convergence")
	}
	if reason == "" || reason[:len("max_generations")] != "max_generations" {
		t.Fatalf("reason %q should name the strategy", reason)
	}

	combined = Combine()
	if converged, _ := combined.CheckConvergence(steps(1, 2)); converged {
		t.Fatalf("empty combination never converges")
	}
	combined.AddStrategy(NewTargetStrategy(2))
	if converged, _ := combined.CheckConvergence(steps(1, 2)); !converged {
		t.Fatalf("expected convergence after AddStrategy")
	}
}

func TestNewConvergenceStrategy(t *testing.T) {
	for _, name := range []string{"no_improvement", "plateau", "improvement_threshold", "variance", "target", "max_generations", "combined"} {
		s, err := NewConvergenceStrategy(name, nil)
		if err != nil {
			t.Fatalf("NewConvergenceStrategy(%q) error = %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("NewConvergenceStrategy(%q).Name() = %q", name, s.Name())
		}
	}
	if _, err := NewConvergenceStrategy("bogus", nil); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
