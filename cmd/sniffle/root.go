package main

import (
	"github.com/spf13/cobra"

	"github.com/psychicsniffle/sniffle/internal/problem"
	"github.com/psychicsniffle/sniffle/pkg/config"
	"github.com/psychicsniffle/sniffle/pkg/logger"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
	seed       int64
	workers    int
}

// load reads the config file (or the defaults) and applies flag overrides
func (g *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.LoadConfig(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("seed") {
		cfg.Seed = g.seed
	}
	if flags.Changed("workers") {
		cfg.Workers = g.workers
	}

	logger.SetDefault(logger.NewFormat(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr()))
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "sniffle",
		Short: "Breathing-distribution genetic maximizer",
		Long: `sniffle maximizes black-box fitness functions over fixed-size byte genomes.
Each subcommand runs a benchmark problem, either in process or against a
sniffled daemon (--remote).`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to a sniffle YAML config")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.Int64Var(&g.seed, "seed", 0, "PRNG seed; 0 seeds from the clock")
	pf.IntVar(&g.workers, "workers", 0, "worker goroutines; 0 uses GOMAXPROCS")

	root.AddCommand(newSchwefelCmd(g), newQuadraticCmd(g))
	return root
}

func newSchwefelCmd(g *globalOptions) *cobra.Command {
	var dims int
	o := runOptions{
		population:     problem.SchwefelPopulation,
		maxGenerations: problem.SchwefelGenerationLimit,
		solutions:      1,
	}

	cmd := &cobra.Command{
		Use:   "schwefel",
		Short: "Search for points of the Schwefel function scoring above zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := problem.NewSchwefel(dims)
			if err != nil {
				return err
			}
			return run(cmd, g, p, o)
		},
	}

	cmd.Flags().IntVar(&dims, "dims", problem.DefaultSchwefelDimensions, "number of dimensions")
	cmd.Flags().IntVar(&o.solutions, "solutions", o.solutions, "independent solutions to find, resetting between them")
	cmd.Flags().IntVar(&o.preserve, "preserve", 0, "genomes kept across resets between solutions")
	addRunFlags(cmd, &o)
	return cmd
}

func newQuadraticCmd(g *globalOptions) *cobra.Command {
	o := runOptions{
		population: problem.QuadraticPopulation,
		solutions:  1,
	}

	cmd := &cobra.Command{
		Use:   "quadratic",
		Short: "Search a float32 genome for the peak of a narrow quadratic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, g, problem.NewQuadratic(), o)
		},
	}

	addRunFlags(cmd, &o)
	return cmd
}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	f := cmd.Flags()
	f.IntVar(&o.population, "population", o.population, "population size")
	f.IntVar(&o.maxGenerations, "max-generations", o.maxGenerations, "generation cap per solution; 0 uses the config")
	f.StringVar(&o.strategy, "strategy", "", "extra convergence strategy from the config section (e.g. combined, plateau)")
	f.IntVar(&o.progress, "progress", 100, "log progress every n generations; 0 disables")
	f.BoolVar(&o.watch, "watch", false, "show the byte distributions in the terminal")
	f.BoolVar(&o.dump, "dump", false, "print the final byte distributions as text")
	f.StringVar(&o.remote, "remote", "", "sniffled gRPC address; runs the maximizer remotely")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}
