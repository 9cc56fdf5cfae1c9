package automation

import (
	"context"
	"testing"

	"github.com/san-kum/fluidsim/internal/experiment"
)

func TestRunSweep(t *testing.T) {
	sweep := Sweep{Param: "flip_ratio", Values: []float64{0, 1}, Duration: 0.1}

	results, err := RunSweep(context.Background(), tinyScene(), sweep, experiment.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Steps != 6 {
			t.Errorf("flip_ratio=%g: expected 6 steps, got %d", r.Value, r.Steps)
		}
		if r.MaxSpeed <= 0 {
			t.Errorf("flip_ratio=%g: fluid should be falling", r.Value)
		}
	}
}

func TestRunSweepLeavesBaseUntouched(t *testing.T) {
	base := tinyScene()
	sweep := Sweep{Param: "pressure_iterations", Values: []float64{4}, Duration: 1.0 / 60}

	if _, err := RunSweep(context.Background(), base, sweep, experiment.NewRegistry()); err != nil {
		t.Fatal(err)
	}
	if base.Solver.PressureIterations != 20 {
		t.Errorf("base scene modified: %d iterations", base.Solver.PressureIterations)
	}
}

func TestRunSweepErrors(t *testing.T) {
	reg := experiment.NewRegistry()
	if _, err := RunSweep(context.Background(), tinyScene(), Sweep{Param: "viscosity", Values: []float64{1}, Duration: 0.1}, reg); err == nil {
		t.Error("expected error for unknown parameter")
	}
	if _, err := RunSweep(context.Background(), tinyScene(), Sweep{Param: "dt", Values: []float64{-1}, Duration: 0.1}, reg); err == nil {
		t.Error("expected error for negative dt")
	}
}
