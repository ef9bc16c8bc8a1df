package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/psychicsniffle/sniffle/internal/improvement"
	"github.com/psychicsniffle/sniffle/internal/maximizer"
	"github.com/psychicsniffle/sniffle/internal/metrics"
	"github.com/psychicsniffle/sniffle/internal/problem"
	"github.com/psychicsniffle/sniffle/internal/sniffled"
	"github.com/psychicsniffle/sniffle/internal/tracker"
	"github.com/psychicsniffle/sniffle/internal/viewer"
	"github.com/psychicsniffle/sniffle/pkg/config"
	"github.com/psychicsniffle/sniffle/pkg/logger"
	"github.com/psychicsniffle/sniffle/pkg/utils"
)

// runOptions are the per-problem flags
type runOptions struct {
	population     int
	maxGenerations int
	solutions      int
	preserve       int
	strategy       string
	progress       int
	watch          bool
	dump           bool
	remote         string
	metricsAddr    string
}

const remoteCallTimeout = 30 * time.Second

// snapshotter is implemented by analysers that keep per-byte histograms
type snapshotter interface {
	Snapshot() []tracker.Histogram
	Contrast() float64
}

func run(cmd *cobra.Command, g *globalOptions, p problem.Problem, o runOptions) error {
	cfg, err := g.load(cmd)
	if err != nil {
		return err
	}
	if o.watch && o.remote != "" {
		return errors.New("--watch needs a local maximizer; drop --remote")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mcfg := cfg.MaximizerConfig(p.GenomeSize())
	mcfg.PopulationSize = o.population
	if err := mcfg.Validate(); err != nil {
		return err
	}

	strategy, err := buildStrategy(cfg, p, o.strategy)
	if err != nil {
		return err
	}
	limit := o.maxGenerations
	if limit <= 0 {
		limit = cfg.Convergence.MaxGenerations
	}

	session := utils.GenerateSessionID()
	pop, hists, closePop, err := openPopulation(ctx, o.remote, session, mcfg)
	if err != nil {
		return err
	}
	defer closePop()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)
	recorder.SessionOpened(session)
	defer recorder.SessionClosed(session)
	if o.metricsAddr != "" {
		shutdown := serveMetrics(o.metricsAddr, reg)
		defer shutdown()
	}

	start := time.Now()
	var frames chan viewer.Frame
	if o.watch {
		frames = make(chan viewer.Frame, 1)
	}

	observe := recorder.Reporter(session)
	report := func(step improvement.GenerationStep) {
		observe(step)
		status := viewer.Status{Label: p.Name(), Generation: step.Generation, Best: step.Best}
		if hists != nil {
			status.Contrast = hists.Contrast()
			recorder.ObserveContrast(session, status.Contrast)
		}
		if o.progress > 0 && step.Generation%o.progress == 0 {
			logger.Info("generation",
				"generation", step.Generation,
				"best", step.Best,
				"mean", step.Mean,
				"stddev", step.StdDev,
				"elapsed", utils.FormatDuration(time.Since(start)))
		}
		if frames != nil {
			f := viewer.Frame{Status: status}
			if hists != nil {
				f.Histograms = hists.Snapshot()
			}
			select {
			case frames <- f:
			default:
			}
		}
	}

	runner := improvement.NewRunner(pop, improvement.EvaluatorFunc(p.Evaluate), strategy,
		improvement.WithWorkers(cfg.Workers),
		improvement.WithMaxGenerations(limit),
		improvement.WithProgressReporter(report),
		improvement.WithRestartPreserve(o.preserve),
		improvement.WithRunnerLogger(logger.Default))

	var results []*improvement.Result
	if o.watch {
		results, err = watchSolve(ctx, runner, o.solutions, frames)
	} else {
		results, err = runner.Solve(ctx, o.solutions)
	}

	out := cmd.OutOrStdout()
	printResults(out, p, results, time.Since(start))
	if o.dump && hists != nil {
		if derr := viewer.Dump(out, hists.Snapshot()); derr != nil {
			logger.Warn("histogram dump failed", "error", derr)
		}
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("run interrupted", "solutions", len(results))
		return nil
	}
	return err
}

// buildStrategy stops on the problem's own solved test, optionally combined
// with a strategy from the convergence section
func buildStrategy(cfg *config.Config, p problem.Problem, name string) (improvement.ConvergenceStrategy, error) {
	solved := improvement.NewPredicateStrategy(p.Name()+"_solved", func(step improvement.GenerationStep) bool {
		return p.Solved(step.Best, step.BestGenome)
	})
	if name == "" {
		return improvement.Combine(solved), nil
	}
	extra, err := improvement.NewConvergenceStrategy(name, cfg.ConvergenceConfig())
	if err != nil {
		return nil, err
	}
	return improvement.Combine(solved, extra), nil
}

// openPopulation builds the local maximizer, or a session on a remote daemon
// when addr is set. hists is nil unless the analyser keeps histograms locally.
func openPopulation(ctx context.Context, addr, session string, cfg maximizer.Config) (pop improvement.Population, hists snapshotter, closeFn func(), err error) {
	if addr == "" {
		m, err := maximizer.New(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		m.WithLogger(logger.With("session_id", session))
		if s, ok := m.Analyser().(snapshotter); ok {
			hists = s
		}
		return m, hists, func() {}, nil
	}

	conn, err := sniffled.Dial(addr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	client := sniffled.NewClient(conn,
		sniffled.WithCallTimeout(remoteCallTimeout),
		sniffled.WithRetry(3, utils.NewExponentialBackoff(100*time.Millisecond, 2*time.Second, 2, true)))
	err = client.Open(ctx, sniffled.SessionRequest{
		SessionID:  session,
		GenomeSize: cfg.GenomeSize,
		Population: cfg.PopulationSize,
		Seed:       cfg.Seed,
		Workers:    cfg.Workers,
		Analyser:   string(cfg.Analyser),
	})
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("open remote session: %w", err)
	}
	logger.Info("remote session opened", "addr", addr, "session_id", client.Session())

	closeFn = func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), remoteCallTimeout)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("failed to delete remote session", "session_id", session, "error", err)
		}
		conn.Close()
	}
	return client, nil, closeFn, nil
}

// watchSolve runs the solver next to a terminal viewer. Quitting the viewer
// cancels the run between generations.
func watchSolve(ctx context.Context, runner *improvement.Runner, solutions int, frames chan viewer.Frame) ([]*improvement.Result, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	v := viewer.New(screen)
	grp, gctx := errgroup.WithContext(ctx)

	var results []*improvement.Result
	grp.Go(func() error {
		defer close(frames)
		var err error
		results, err = runner.Solve(gctx, solutions)
		return err
	})
	grp.Go(func() error {
		return v.Run(gctx, frames)
	})

	err = grp.Wait()
	if errors.Is(err, viewer.ErrQuit) {
		err = context.Canceled
	}
	return results, err
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func printResults(w io.Writer, p problem.Problem, results []*improvement.Result, elapsed time.Duration) {
	for i, res := range results {
		state := "stopped"
		if res.Converged {
			state = "converged"
		}
		fmt.Fprintf(w, "solution %d: %s, fitness %.6f after %d generations (%s)\n",
			i, state, res.BestFitness, res.Generations, res.Reason)
		if res.Best != nil {
			fmt.Fprintf(w, "  x = %v\n", p.Decode(res.Best))
		}
	}
	fmt.Fprintf(w, "elapsed %s\n", utils.FormatDuration(elapsed))
}
