package main

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"

	"github.com/psychicsniffle/sniffle/internal/improvement"
	"github.com/psychicsniffle/sniffle/internal/maximizer"
	"github.com/psychicsniffle/sniffle/internal/problem"
	"github.com/psychicsniffle/sniffle/internal/sniffled"
	"github.com/psychicsniffle/sniffle/pkg/config"
	"github.com/psychicsniffle/sniffle/pkg/logger"
)

// execute runs the root command with args and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := logger.Default
	t.Cleanup(func() { logger.SetDefault(prev) })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSchwefelLocal(t *testing.T) {
	out, err := execute(t, "schwefel",
		"--dims", "1", "--population", "60", "--max-generations", "30",
		"--progress", "0", "--seed", "7", "--workers", "2", "--dump")
	if err != nil {
		t.Fatalf("schwefel error = %v", err)
	}
	for _, want := range []string{"solution 0:", "x = [", "elapsed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// one glyph row per genome byte
	rows := 0
	for _, line := range strings.Split(out, "\n") {
		if len(line) == 256 {
			rows++
		}
	}
	if rows != 2 {
		t.Errorf("dump rows = %d, want 2", rows)
	}
}

func TestSchwefelSolutions(t *testing.T) {
	out, err := execute(t, "schwefel",
		"--dims", "2", "--population", "40", "--max-generations", "5",
		"--solutions", "3", "--preserve", "4", "--progress", "0", "--seed", "3")
	if err != nil {
		t.Fatalf("schwefel error = %v", err)
	}
	for _, want := range []string{"solution 0:", "solution 1:", "solution 2:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunFlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown strategy", []string{"quadratic", "--population", "40", "--strategy", "bogus"}},
		{"watch with remote", []string{"quadratic", "--watch", "--remote", "127.0.0.1:1"}},
		{"bad population", []string{"quadratic", "--population", "0"}},
		{"bad dims", []string{"schwefel", "--dims", "0"}},
		{"missing config", []string{"quadratic", "--config", "does-not-exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

func TestSchwefelRemote(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	store := sniffled.NewSessionStore(4)
	svc := sniffled.NewService(store, maximizer.DefaultConfig(0, 0), nil).WithLogger(logger.New("error", io.Discard))
	srv := grpc.NewServer()
	sniffled.RegisterMaximizerServer(srv, svc)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	out, err := execute(t, "schwefel",
		"--dims", "1", "--population", "30", "--max-generations", "10",
		"--progress", "0", "--seed", "11", "--remote", lis.Addr().String())
	if err != nil {
		t.Fatalf("remote schwefel error = %v", err)
	}
	if !strings.Contains(out, "solution 0:") {
		t.Errorf("output missing solution line:\n%s", out)
	}
	if store.Len() != 0 {
		t.Errorf("remote session not deleted, %d left", store.Len())
	}
}

func TestBuildStrategy(t *testing.T) {
	p, err := problem.NewSchwefel(1)
	if err != nil {
		t.Fatalf("NewSchwefel() error = %v", err)
	}
	cfg := config.Default()
	cfg.Convergence.MaxGenerations = 3

	solvedOnly, err := buildStrategy(cfg, p, "")
	if err != nil {
		t.Fatalf("buildStrategy() error = %v", err)
	}
	unsolved := []improvement.GenerationStep{{Generation: 0, Best: -1}, {Generation: 1, Best: -0.5}, {Generation: 2, Best: -0.1}}
	if ok, _ := solvedOnly.CheckConvergence(unsolved); ok {
		t.Fatal("converged before the problem was solved")
	}
	if ok, _ := solvedOnly.CheckConvergence(append(unsolved, improvement.GenerationStep{Generation: 3, Best: 0.5})); !ok {
		t.Fatal("expected convergence once best is positive")
	}

	capped, err := buildStrategy(cfg, p, "max_generations")
	if err != nil {
		t.Fatalf("buildStrategy() error = %v", err)
	}
	if ok, _ := capped.CheckConvergence(unsolved); !ok {
		t.Fatal("expected the generation cap to stop the run")
	}

	if _, err := buildStrategy(cfg, p, "bogus"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
