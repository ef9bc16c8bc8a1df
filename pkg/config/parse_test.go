package config

import (
	"strings"
	"testing"
)

func TestParseConfigYAMLOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfigYAMLString(`
log_level: debug
seed: 7
maximizer:
  population: 1000
  tracker:
    reinforce: 9
convergence:
  strategy: no_improvement
  no_improvement_generations: 50
`)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString() error = %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.Seed != 7 {
		t.Fatalf("top-level overrides not applied: %+v", cfg)
	}
	if cfg.Maximizer.Population != 1000 || cfg.Maximizer.Tracker.Reinforce != 9 {
		t.Fatalf("maximizer overrides not applied: %+v", cfg.Maximizer)
	}
	// untouched keys keep their defaults
	if cfg.Maximizer.Tracker.Ceiling != 250 || cfg.Maximizer.Groups.FreeSplice != 0.90 {
		t.Fatalf("defaults lost: %+v", cfg.Maximizer)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("server defaults lost: %+v", cfg.Server)
	}
}

func TestParseConfigYAMLEmpty(t *testing.T) {
	cfg, err := ParseConfigYAMLString("")
	if err != nil {
		t.Fatalf("ParseConfigYAMLString(\"\") error = %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("empty document should yield Default()")
	}
}

func TestParseConfigYAMLValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad yaml", "maximizer: [", "failed to parse"},
		{"log level", "log_level: loud", "log_level"},
		{"log format", "log_format: xml", "log_format"},
		{"workers", "workers: -1", "workers"},
		{"analyser", "maximizer:\n  analyser: gaussian", "analyser"},
		{"tracker range", "maximizer:\n  tracker:\n    reinforce: 300", "reinforce"},
		{"tracker ceiling", "maximizer:\n  tracker:\n    ceiling: 0", "ceiling"},
		{"tracker ceiling cap", "maximizer:\n  tracker:\n    ceiling: 255", "ceiling"},
		{"population", "maximizer:\n  population: 0", "population"},
		{"groups", "maximizer:\n  groups:\n    semi_preserve: 0.1", "group bound"},
		{"elite", "maximizer:\n  population: 6\n  elite:\n    floor: 6", "elite"},
		{"strategy", "convergence:\n  strategy: psychic", "unknown convergence strategy"},
		{"negative generations", "convergence:\n  max_generations: -5", "negative"},
		{"server", "server:\n  grpc_addr: \"\"\n  http_addr: \"\"", "grpc_addr"},
		{"sessions", "server:\n  max_sessions: -1", "max_sessions"},
		{"genome size limit", "server:\n  max_genome_size: 0", "max_genome_size"},
		{"worker limit", "server:\n  max_workers: -4", "max_workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tt.yaml)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
