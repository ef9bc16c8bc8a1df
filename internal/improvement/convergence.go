package improvement

import (
	"fmt"
	"math"
)

// ConvergenceStrategy defines how to detect convergence of a maximization run
type ConvergenceStrategy interface {
	// CheckConvergence checks if the run has converged based on history
	CheckConvergence(history []GenerationStep) (bool, string)
	// Name returns the name of the convergence strategy
	Name() string
}

// ConvergenceConfig holds configuration for convergence detection
type ConvergenceConfig struct {
	// NoImprovementGenerations is the number of generations without a new best before stopping
	NoImprovementGenerations int
	// ImprovementThreshold is the minimum relative improvement to consider significant
	ImprovementThreshold float64
	// ScoreTolerance is the absolute tolerance for best scores to be considered equal
	ScoreTolerance float64
	// MinGenerations is the minimum number of generations before convergence can be detected
	MinGenerations int
	// PlateauGenerations is the number of generations with similar best scores before stopping
	PlateauGenerations int
	// MaxGenerations stops the run unconditionally; 0 disables it
	MaxGenerations int
	// Target is the best score that ends a target run
	Target float64
}

// DefaultConvergenceConfig returns a default convergence configuration
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		NoImprovementGenerations: 200,
		ImprovementThreshold:     0.0001,
		ScoreTolerance:           1e-9,
		MinGenerations:           10,
		PlateauGenerations:       500,
		MaxGenerations:           10000,
	}
}

// NewConvergenceStrategy builds a strategy by its configured name
func NewConvergenceStrategy(name string, config *ConvergenceConfig) (ConvergenceStrategy, error) {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	switch name {
	case "no_improvement":
		return NewNoImprovementStrategy(config), nil
	case "plateau":
		return NewPlateauStrategy(config), nil
	case "improvement_threshold":
		return NewThresholdStrategy(config), nil
	case "variance":
		return NewVarianceStrategy(config), nil
	case "target":
		return NewTargetStrategy(config.Target), nil
	case "max_generations":
		return NewMaxGenerationsStrategy(config.MaxGenerations), nil
	case "combined", "":
		return NewCombinedStrategy(config), nil
	default:
		return nil, fmt.Errorf("unknown convergence strategy %q", name)
	}
}

// NoImprovementStrategy detects convergence when the best score has not risen for N generations
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

// NewNoImprovementStrategy creates a new no-improvement convergence strategy
func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: config}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(history []GenerationStep) (converged bool, reason string) {
	if len(history) < s.config.MinGenerations || len(history) == 0 {
		return false, ""
	}

	best := math.Inf(-1)
	bestGeneration := -1
	for i, step := range history {
		if step.Best > best+s.config.ScoreTolerance {
			best = step.Best
			bestGeneration = i
		}
	}
	if bestGeneration < 0 {
		return false, ""
	}

	since := len(history) - 1 - bestGeneration
	if since >= s.config.NoImprovementGenerations {
		return true, fmt.Sprintf("no improvement for %d generations (best at generation %d)", since, history[bestGeneration].Generation)
	}
	return false, ""
}

// PlateauStrategy detects convergence when the best score stays within tolerance
type PlateauStrategy struct {
	config *ConvergenceConfig
}

// NewPlateauStrategy creates a new plateau convergence strategy
func NewPlateauStrategy(config *ConvergenceConfig) *PlateauStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: config}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) CheckConvergence(history []GenerationStep) (converged bool, reason string) {
	window := s.config.PlateauGenerations
	if len(history) < s.config.MinGenerations || window < 1 || len(history) < window {
		return false, ""
	}

	recent := history[len(history)-window:]
	lo, hi := recent[0].Best, recent[0].Best
	for _, step := range recent {
		lo = math.Min(lo, step.Best)
		hi = math.Max(hi, step.Best)
	}

	if spread := hi - lo; spread <= s.config.ScoreTolerance {
		return true, fmt.Sprintf("best score plateaued for %d generations (range: %.6g)", window, spread)
	}
	return false, ""
}

// ThresholdStrategy detects convergence when every recent improvement is below threshold
type ThresholdStrategy struct {
	config *ConvergenceConfig
}

// NewThresholdStrategy creates a new improvement threshold convergence strategy
func NewThresholdStrategy(config *ConvergenceConfig) *ThresholdStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &ThresholdStrategy{config: config}
}

func (s *ThresholdStrategy) Name() string {
	return "improvement_threshold"
}

func (s *ThresholdStrategy) CheckConvergence(history []GenerationStep) (converged bool, reason string) {
	window := s.config.NoImprovementGenerations
	if window < 2 || len(history) < s.config.MinGenerations+1 || len(history) < window {
		return false, ""
	}

	recent := history[len(history)-window:]
	largest := math.Inf(-1)
	for i := 1; i < len(recent); i++ {
		largest = math.Max(largest, relativeGain(recent[i-1].Best, recent[i].Best))
	}

	if largest <= s.config.ImprovementThreshold {
		return true, fmt.Sprintf("improvements below threshold (max: %.4f%%, threshold: %.4f%%)", largest*100, s.config.ImprovementThreshold*100)
	}
	return false, ""
}

// relativeGain is the improvement from prev to cur relative to |prev|, or absolute when prev is zero
func relativeGain(prev, cur float64) float64 {
	if prev == 0 {
		return cur
	}
	return (cur - prev) / math.Abs(prev)
}

// VarianceStrategy detects convergence when the recent best scores barely move
type VarianceStrategy struct {
	config *ConvergenceConfig
}

// NewVarianceStrategy creates a new variance-based convergence strategy
func NewVarianceStrategy(config *ConvergenceConfig) *VarianceStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &VarianceStrategy{config: config}
}

func (s *VarianceStrategy) Name() string {
	return "variance"
}

func (s *VarianceStrategy) CheckConvergence(history []GenerationStep) (converged bool, reason string) {
	if len(history) < s.config.MinGenerations {
		return false, ""
	}

	window := min(s.config.PlateauGenerations, len(history))
	if window < 2 {
		return false, ""
	}
	recent := history[len(history)-window:]

	mean := 0.0
	for _, step := range recent {
		mean += step.Best
	}
	mean /= float64(len(recent))
	if mean == 0 {
		return false, ""
	}

	variance := 0.0
	for _, step := range recent {
		d := step.Best - mean
		variance += d * d
	}
	variance /= float64(len(recent))

	if rel := math.Sqrt(variance) / math.Abs(mean); rel < s.config.ImprovementThreshold {
		return true, fmt.Sprintf("low best-score variance (relative stddev: %.4f%%)", rel*100)
	}
	return false, ""
}

// TargetStrategy converges once the best score reaches a target
type TargetStrategy struct {
	target float64
}

// NewTargetStrategy creates a strategy that stops at best >= target
func NewTargetStrategy(target float64) *TargetStrategy {
	return &TargetStrategy{target: target}
}

func (s *TargetStrategy) Name() string {
	return "target"
}

func (s *TargetStrategy) CheckConvergence(history []GenerationStep) (bool, string) {
	if len(history) == 0 {
		return false, ""
	}
	if last := history[len(history)-1]; last.Best >= s.target {
		return true, fmt.Sprintf("best %.6g reached target %.6g at generation %d", last.Best, s.target, last.Generation)
	}
	return false, ""
}

// MaxGenerationsStrategy converges after a fixed number of generations
type MaxGenerationsStrategy struct {
	limit int
}

// NewMaxGenerationsStrategy stops after limit evaluated generations; limit <= 0 never stops
func NewMaxGenerationsStrategy(limit int) *MaxGenerationsStrategy {
	return &MaxGenerationsStrategy{limit: limit}
}

func (s *MaxGenerationsStrategy) Name() string {
	return "max_generations"
}

func (s *MaxGenerationsStrategy) CheckConvergence(history []GenerationStep) (bool, string) {
	if s.limit > 0 && len(history) >= s.limit {
		return true, fmt.Sprintf("reached %d generations", s.limit)
	}
	return false, ""
}

// PredicateStrategy converges when a caller-supplied test on the latest step holds
type PredicateStrategy struct {
	name string
	test func(GenerationStep) bool
}

// NewPredicateStrategy wraps test as a named strategy
func NewPredicateStrategy(name string, test func(GenerationStep) bool) *PredicateStrategy {
	return &PredicateStrategy{name: name, test: test}
}

func (s *PredicateStrategy) Name() string {
	return s.name
}

func (s *PredicateStrategy) CheckConvergence(history []GenerationStep) (bool, string) {
	if len(history) == 0 {
		return false, ""
	}
	last := history[len(history)-1]
	if s.test(last) {
		return true, fmt.Sprintf("%s satisfied at generation %d (best %.6g)", s.name, last.Generation, last.Best)
	}
	return false, ""
}

// CombinedStrategy converges as soon as any of its strategies does
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

// NewCombinedStrategy combines the no-improvement, plateau and max-generations strategies
func NewCombinedStrategy(config *ConvergenceConfig) *CombinedStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return Combine(
		NewNoImprovementStrategy(config),
		NewPlateauStrategy(config),
		NewMaxGenerationsStrategy(config.MaxGenerations),
	)
}

// Combine builds a CombinedStrategy from explicit strategies
func Combine(strategies ...ConvergenceStrategy) *CombinedStrategy {
	return &CombinedStrategy{strategies: strategies}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) CheckConvergence(history []GenerationStep) (converged bool, reason string) {
	for _, strategy := range s.strategies {
		if ok, why := strategy.CheckConvergence(history); ok {
			return true, fmt.Sprintf("%s: %s", strategy.Name(), why)
		}
	}
	return false, ""
}

// AddStrategy adds a custom strategy to the combined strategy
func (s *CombinedStrategy) AddStrategy(strategy ConvergenceStrategy) {
	s.strategies = append(s.strategies, strategy)
}
