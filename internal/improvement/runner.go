package improvement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/psychicsniffle/sniffle/internal/forkjoin"
	"github.com/psychicsniffle/sniffle/pkg/logger"
)

// Population is a generational optimizer driven by externally computed fitness
type Population interface {
	Genomes() [][]byte
	Crank(fitness []float64) error
	Reset(preserve int) error
}

// Evaluator scores one genome. Implementations must be safe for concurrent use.
type Evaluator interface {
	Evaluate(genome []byte) float64
}

// EvaluatorFunc adapts a function to Evaluator
type EvaluatorFunc func(genome []byte) float64

func (f EvaluatorFunc) Evaluate(genome []byte) float64 {
	return f(genome)
}

// GenerationStep summarises one evaluated generation
type GenerationStep struct {
	Generation int
	Best       float64
	Worst      float64
	Mean       float64
	StdDev     float64
	BestIndex  int
	BestGenome []byte
}

// Result is the outcome of one Run
type Result struct {
	Best        []byte
	BestFitness float64
	Generations int
	Converged   bool
	Reason      string
	History     []GenerationStep
}

// Runner evaluates, summarises and cranks a Population until a strategy converges
type Runner struct {
	pop      Population
	eval     Evaluator
	strategy ConvergenceStrategy

	workers        int
	maxGenerations int
	preserve       int
	report         func(GenerationStep)
	log            *slog.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithWorkers sets how many goroutines evaluate fitness
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithMaxGenerations caps a run regardless of the strategy; 0 disables the cap
func WithMaxGenerations(n int) RunnerOption {
	return func(r *Runner) {
		r.maxGenerations = n
	}
}

// WithProgressReporter registers a callback invoked after every evaluated generation
func WithProgressReporter(fn func(GenerationStep)) RunnerOption {
	return func(r *Runner) {
		r.report = fn
	}
}

// WithRestartPreserve keeps the first n genomes when Solve resets between solutions
func WithRestartPreserve(n int) RunnerOption {
	return func(r *Runner) {
		r.preserve = n
	}
}

// WithRunnerLogger sets the logger
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// NewRunner creates a runner; a nil strategy uses the combined default
func NewRunner(pop Population, eval Evaluator, strategy ConvergenceStrategy, opts ...RunnerOption) *Runner {
	if strategy == nil {
		strategy = NewCombinedStrategy(nil)
	}
	r := &Runner{
		pop:      pop,
		eval:     eval,
		strategy: strategy,
		workers:  runtime.GOMAXPROCS(0),
		log:      logger.Default,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates generations until convergence, the generation cap or cancellation.
// The context is only checked between generations. On cancellation the partial
// result is returned together with the context error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.pop == nil || r.eval == nil {
		return nil, errors.New("runner needs a population and an evaluator")
	}

	result := &Result{}
	for gen := 0; ; gen++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		genomes := r.pop.Genomes()
		fitness, err := r.evaluate(genomes)
		if err != nil {
			return result, err
		}

		step, err := Summarize(gen, genomes, fitness)
		if err != nil {
			return result, fmt.Errorf("generation %d: %w", gen, err)
		}
		result.History = append(result.History, step)
		result.Generations = gen + 1
		if result.Best == nil || step.Best > result.BestFitness {
			result.Best = step.BestGenome
			result.BestFitness = step.Best
		}
		if r.report != nil {
			r.report(step)
		}

		if ok, reason := r.strategy.CheckConvergence(result.History); ok {
			result.Converged = true
			result.Reason = reason
			break
		}
		if r.maxGenerations > 0 && result.Generations >= r.maxGenerations {
			result.Reason = fmt.Sprintf("generation limit %d reached", r.maxGenerations)
			break
		}

		if err := r.pop.Crank(fitness); err != nil {
			return result, fmt.Errorf("crank generation %d: %w", gen, err)
		}
	}

	r.log.Info("run finished",
		"generations", result.Generations,
		"best", result.BestFitness,
		"converged", result.Converged,
		"reason", result.Reason)
	return result, nil
}

// Solve performs solutions consecutive runs, resetting the population between them
func (r *Runner) Solve(ctx context.Context, solutions int) ([]*Result, error) {
	if solutions < 1 {
		return nil, fmt.Errorf("solutions must be positive, got %d", solutions)
	}

	results := make([]*Result, 0, solutions)
	for i := 0; i < solutions; i++ {
		if i > 0 {
			if err := r.pop.Reset(r.preserve); err != nil {
				return results, fmt.Errorf("reset before solution %d: %w", i, err)
			}
		}
		res, err := r.Run(ctx)
		if err != nil {
			return results, err
		}
		r.log.Info("solution found", "solution", i, "best", res.BestFitness, "generations", res.Generations)
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) evaluate(genomes [][]byte) ([]float64, error) {
	fitness := make([]float64, len(genomes))
	err := forkjoin.Each(r.workers, len(genomes), func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			fitness[i] = r.eval.Evaluate(genomes[i])
		}
		return nil
	})
	return fitness, err
}

// Summarize computes the statistics of one evaluated generation.
// BestGenome is a copy and stays valid after the population moves on.
func Summarize(generation int, genomes [][]byte, fitness []float64) (GenerationStep, error) {
	if len(fitness) == 0 {
		return GenerationStep{}, errors.New("empty generation")
	}
	if len(genomes) != len(fitness) {
		return GenerationStep{}, fmt.Errorf("%d genomes but %d fitness values", len(genomes), len(fitness))
	}

	best := floats.MaxIdx(fitness)
	step := GenerationStep{
		Generation: generation,
		Best:       fitness[best],
		Worst:      floats.Min(fitness),
		BestIndex:  best,
		BestGenome: append([]byte(nil), genomes[best]...),
	}
	if len(fitness) > 1 {
		step.Mean, step.StdDev = stat.MeanStdDev(fitness, nil)
	} else {
		step.Mean = fitness[0]
	}
	return step, nil
}
