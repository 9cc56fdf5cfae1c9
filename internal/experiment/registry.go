package experiment

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/metrics"
	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/solver"
)

// Registry resolves scenes and compute backends by name and builds solvers
// for the scheduler.
type Registry struct {
	backends map[string]func(workers int) compute.Backend
}

func NewRegistry() *Registry {
	r := &Registry{
		backends: make(map[string]func(workers int) compute.Backend),
	}
	r.backends["cpu"] = func(workers int) compute.Backend { return compute.NewCPUBackend(workers) }
	r.backends["serial"] = func(int) compute.Backend { return compute.NewSerialBackend() }
	return r
}

func (r *Registry) GetBackend(name string, workers int) (compute.Backend, error) {
	if name == "" {
		name = "cpu"
	}
	fn, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
	return fn(workers), nil
}

func (r *Registry) ListBackends() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scene loads path when given, otherwise the named preset.
func (r *Registry) Scene(preset, path string) (*config.Scene, error) {
	if path != "" {
		scene, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
		}
		return scene, nil
	}
	if preset == "" {
		return config.DefaultScene(), nil
	}
	scene := config.GetPreset(preset)
	if scene == nil {
		return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	return scene, nil
}

// Factory returns a sim.Factory building a solver on the scene's backend.
func (r *Registry) Factory() sim.Factory {
	return func(scene *config.Scene) (sim.Solver, error) {
		backend, err := r.GetBackend(scene.Solver.Backend, scene.Solver.Workers)
		if err != nil {
			return nil, err
		}
		sv, err := solver.New(scene, backend)
		if err != nil {
			backend.Cleanup()
			return nil, err
		}
		return sv, nil
	}
}

func (r *Registry) DefaultMetrics() []metrics.Metric {
	return metrics.Standard()
}
