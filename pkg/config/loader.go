package config

import (
	"fmt"
	"os"

	"github.com/psychicsniffle/sniffle/internal/improvement"
	"github.com/psychicsniffle/sniffle/internal/maximizer"
	"github.com/psychicsniffle/sniffle/internal/tracker"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	m := maximizer.DefaultConfig(0, 400)
	t := m.Tracker
	conv := improvement.DefaultConvergenceConfig()

	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Maximizer: MaximizerSettings{
			Population: m.PopulationSize,
			Groups: GroupSettings{
				Preserve:       m.Groups.Preserve,
				SemiPreserve:   m.Groups.SemiPreserve,
				SpliceForward:  m.Groups.SpliceForward,
				SpliceBackward: m.Groups.SpliceBackward,
				FreeSplice:     m.Groups.FreeSplice,
			},
			Elite:                EliteSettings{Fraction: m.Elite.Fraction, Floor: m.Elite.Floor},
			FitnessTableCapacity: m.FitnessTableCapacity,
			Analyser:             string(m.Analyser),
			Tracker: TrackerSettings{
				Initial:        int(t.Initial),
				Decay:          int(t.Decay),
				Reinforce:      int(t.Reinforce),
				NeighbourBoost: int(t.NeighbourBoost),
				Radius:         t.Radius,
				Ceiling:        int(t.Ceiling),
				TableCapacity:  t.TableCapacity,
			},
		},
		Convergence: ConvergenceSettings{
			Strategy:                 "combined",
			MaxGenerations:           conv.MaxGenerations,
			NoImprovementGenerations: conv.NoImprovementGenerations,
			PlateauGenerations:       conv.PlateauGenerations,
			MinGenerations:           conv.MinGenerations,
			ScoreTolerance:           conv.ScoreTolerance,
			ImprovementThreshold:     conv.ImprovementThreshold,
		},
		Server: ServerSettings{
			GRPCAddr:      ":50051",
			HTTPAddr:      ":8080",
			MaxSessions:   64,
			MaxGenomeSize: 1024,
			MaxWorkers:    256,
		},
	}
}

// MaximizerConfig translates the maximizer section for genomes of genomeSize bytes
func (c *Config) MaximizerConfig(genomeSize int) maximizer.Config {
	s := c.Maximizer
	return maximizer.Config{
		GenomeSize:     genomeSize,
		PopulationSize: s.Population,
		Groups: maximizer.GroupBounds{
			Preserve:       s.Groups.Preserve,
			SemiPreserve:   s.Groups.SemiPreserve,
			SpliceForward:  s.Groups.SpliceForward,
			SpliceBackward: s.Groups.SpliceBackward,
			FreeSplice:     s.Groups.FreeSplice,
		},
		Elite:                maximizer.EliteConfig{Fraction: s.Elite.Fraction, Floor: s.Elite.Floor},
		FitnessTableCapacity: s.FitnessTableCapacity,
		Analyser:             tracker.Kind(s.Analyser),
		Tracker: tracker.Config{
			Initial:        uint8(s.Tracker.Initial),
			Decay:          uint8(s.Tracker.Decay),
			Reinforce:      uint8(s.Tracker.Reinforce),
			NeighbourBoost: uint8(s.Tracker.NeighbourBoost),
			Radius:         s.Tracker.Radius,
			Ceiling:        uint8(s.Tracker.Ceiling),
			TableCapacity:  s.Tracker.TableCapacity,
		},
		Workers: c.Workers,
		Seed:    c.Seed,
	}
}

// ConvergenceConfig translates the convergence section
func (c *Config) ConvergenceConfig() *improvement.ConvergenceConfig {
	s := c.Convergence
	return &improvement.ConvergenceConfig{
		NoImprovementGenerations: s.NoImprovementGenerations,
		ImprovementThreshold:     s.ImprovementThreshold,
		ScoreTolerance:           s.ScoreTolerance,
		MinGenerations:           s.MinGenerations,
		PlateauGenerations:       s.PlateauGenerations,
		MaxGenerations:           s.MaxGenerations,
		Target:                   s.Target,
	}
}

// ConvergenceStrategy builds the configured stopping strategy
func (c *Config) ConvergenceStrategy() (improvement.ConvergenceStrategy, error) {
	return improvement.NewConvergenceStrategy(c.Convergence.Strategy, c.ConvergenceConfig())
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", cfg.Workers)
	}

	if err := validateMaximizer(cfg); err != nil {
		return fmt.Errorf("maximizer validation failed: %w", err)
	}
	if err := validateConvergence(cfg); err != nil {
		return fmt.Errorf("convergence validation failed: %w", err)
	}
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	return nil
}

// validateMaximizer checks the settings that the generic maximizer validation cannot see
func validateMaximizer(cfg *Config) error {
	s := cfg.Maximizer
	if s.Analyser != string(tracker.KindBreathing) && s.Analyser != string(tracker.KindUniform) {
		return fmt.Errorf("invalid analyser: %s (must be breathing or uniform)", s.Analyser)
	}

	bytes := map[string]int{
		"initial":         s.Tracker.Initial,
		"decay":           s.Tracker.Decay,
		"reinforce":       s.Tracker.Reinforce,
		"neighbour_boost": s.Tracker.NeighbourBoost,
		"ceiling":         s.Tracker.Ceiling,
	}
	for name, v := range bytes {
		if v < 0 || v > 255 {
			return fmt.Errorf("tracker %s must be between 0 and 255, got %d", name, v)
		}
	}

	// genome size is supplied per problem; any positive size exercises the rest
	return cfg.MaximizerConfig(1).Validate()
}

func validateConvergence(cfg *Config) error {
	s := cfg.Convergence
	if s.MaxGenerations < 0 || s.NoImprovementGenerations < 0 || s.PlateauGenerations < 0 || s.MinGenerations < 0 {
		return fmt.Errorf("generation counts cannot be negative")
	}
	if s.ScoreTolerance < 0 || s.ImprovementThreshold < 0 {
		return fmt.Errorf("tolerances cannot be negative")
	}
	_, err := cfg.ConvergenceStrategy()
	return err
}

func validateServer(s *ServerSettings) error {
	if s.GRPCAddr == "" && s.HTTPAddr == "" {
		return fmt.Errorf("at least one of grpc_addr and http_addr must be set")
	}
	if s.MaxSessions < 0 {
		return fmt.Errorf("max_sessions cannot be negative, got %d", s.MaxSessions)
	}
	if s.MaxGenomeSize < 1 {
		return fmt.Errorf("max_genome_size must be positive, got %d", s.MaxGenomeSize)
	}
	if s.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be positive, got %d", s.MaxWorkers)
	}
	return nil
}
