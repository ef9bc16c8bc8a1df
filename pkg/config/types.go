package config

// Config represents the main sniffle configuration
type Config struct {
	LogLevel    string              `yaml:"log_level"`
	LogFormat   string              `yaml:"log_format"` // json or text
	Workers     int                 `yaml:"workers"`    // 0 uses GOMAXPROCS
	Seed        int64               `yaml:"seed"`       // 0 seeds from the clock
	Maximizer   MaximizerSettings   `yaml:"maximizer"`
	Convergence ConvergenceSettings `yaml:"convergence"`
	Server      ServerSettings      `yaml:"server"`
}

// MaximizerSettings configures the population and its operators
type MaximizerSettings struct {
	Population           int             `yaml:"population"`
	Groups               GroupSettings   `yaml:"groups"`
	Elite                EliteSettings   `yaml:"elite"`
	FitnessTableCapacity int             `yaml:"fitness_table_capacity"`
	Analyser             string          `yaml:"analyser"` // breathing or uniform
	Tracker              TrackerSettings `yaml:"tracker"`
}

// GroupSettings holds the end of each operator group as a population fraction
type GroupSettings struct {
	Preserve       float64 `yaml:"preserve"`
	SemiPreserve   float64 `yaml:"semi_preserve"`
	SpliceForward  float64 `yaml:"splice_forward"`
	SpliceBackward float64 `yaml:"splice_backward"`
	FreeSplice     float64 `yaml:"free_splice"`
}

// EliteSettings sizes the elite set as floor + fraction*population
type EliteSettings struct {
	Fraction float64 `yaml:"fraction"`
	Floor    int     `yaml:"floor"`
}

// TrackerSettings holds the breathing histogram magnitudes
type TrackerSettings struct {
	Initial        int `yaml:"initial"`
	Decay          int `yaml:"decay"`
	Reinforce      int `yaml:"reinforce"`
	NeighbourBoost int `yaml:"neighbour_boost"`
	Radius         int `yaml:"radius"`
	Ceiling        int `yaml:"ceiling"`
	TableCapacity  int `yaml:"table_capacity"`
}

// ConvergenceSettings selects and tunes the stopping strategy
type ConvergenceSettings struct {
	Strategy                 string  `yaml:"strategy"`
	MaxGenerations           int     `yaml:"max_generations"`
	NoImprovementGenerations int     `yaml:"no_improvement_generations"`
	PlateauGenerations       int     `yaml:"plateau_generations"`
	MinGenerations           int     `yaml:"min_generations"`
	ScoreTolerance           float64 `yaml:"score_tolerance"`
	ImprovementThreshold     float64 `yaml:"improvement_threshold"`
	Target                   float64 `yaml:"target"`
}

// ServerSettings configures the sniffled daemon. MaxGenomeSize and MaxWorkers
// bound what a remote client may request per session.
type ServerSettings struct {
	GRPCAddr      string `yaml:"grpc_addr"`
	HTTPAddr      string `yaml:"http_addr"`
	MaxSessions   int    `yaml:"max_sessions"`
	MaxGenomeSize int    `yaml:"max_genome_size"`
	MaxWorkers    int    `yaml:"max_workers"`
}
