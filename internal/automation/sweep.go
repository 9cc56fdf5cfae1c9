package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/experiment"
	"github.com/san-kum/fluidsim/internal/sim"
)

// Sweep runs the same scene once per value of one parameter.
type Sweep struct {
	Param    string
	Values   []float64
	Duration float64
}

// SweepResult holds the closing state of one run of a sweep.
type SweepResult struct {
	Value          float64
	Steps          uint64
	Residual       float64
	Converged      bool
	MaxSpeed       float64
	Energy         float64
	Stability      float64
	StepsPerSecond float64
}

// SweepParams lists the parameters a sweep can vary.
var SweepParams = []string{"dt", "flip_ratio", "pressure_iterations", "particles_per_cell", "jitter", "seed", "residual_tolerance"}

func setParam(scene *config.Scene, name string, v float64) error {
	switch name {
	case "dt":
		scene.Solver.Dt = v
	case "flip_ratio":
		scene.Fluid.FlipRatio = v
	case "pressure_iterations":
		scene.Solver.PressureIterations = int(v)
	case "particles_per_cell":
		scene.Fluid.ParticlesPerCell = int(v)
	case "jitter":
		scene.Fluid.Jitter = v
	case "seed":
		scene.Fluid.Seed = int64(v)
	case "residual_tolerance":
		scene.Solver.ResidualTolerance = v
	default:
		return fmt.Errorf("unknown sweep parameter: %s (available: %v)", name, SweepParams)
	}
	return nil
}

// RunSweep simulates base for Duration seconds per value, as fast as the
// solver allows.
func RunSweep(ctx context.Context, base *config.Scene, sweep Sweep, reg *experiment.Registry) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(sweep.Values))

	for i, v := range sweep.Values {
		scene := base.Clone()
		if err := setParam(scene, sweep.Param, v); err != nil {
			return nil, err
		}

		exp, err := experiment.New(experiment.Config{
			Scene:    scene,
			Status:   sim.SimulateAndRender{},
			Duration: sweep.Duration,
		}, reg)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
		}

		results = append(results, SweepResult{
			Value:          v,
			Steps:          res.Clock.TotalSteps,
			Residual:       res.Diagnostics.Residual,
			Converged:      res.Diagnostics.Converged,
			MaxSpeed:       res.Metrics["max_speed"],
			Energy:         res.Metrics["energy"],
			Stability:      res.Metrics["stability"],
			StepsPerSecond: res.Perf.StepsPerSecond,
		})
		slog.Info("sweep", "run", i+1, "of", len(sweep.Values), "param", sweep.Param, "value", v)
	}
	return results, nil
}
