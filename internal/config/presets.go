package config

import (
	"sort"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

func preset(name string, dims dynamo.Dims, capacity int, dt float64, fill ...FillRegion) *Scene {
	s := DefaultScene()
	s.Name = name
	s.Grid.Dims = dims
	s.Grid.Scale = 1.0 / float64(dims.X)
	s.Fluid.MaxParticles = capacity
	s.Fluid.Fill = fill
	s.Solver.Dt = dt
	return s
}

func box(x0, y0, z0, x1, y1, z1 float64) FillRegion {
	return FillRegion{Min: dynamo.V(x0, y0, z0), Max: dynamo.V(x1, y1, z1)}
}

var Presets = map[string]*Scene{
	// the full-size dam break: one metre wide, 1/128 m cells
	"blub": func() *Scene {
		s := preset("blub", dynamo.Dims{X: 128, Y: 64, Z: 64}, 2000000, 1.0/120.0, box(1, 1, 1, 64, 40, 64))
		s.Scheduler.MaxStepsPerTick = 4
		return s
	}(),
	"dam":    preset("dam", dynamo.Dims{X: 48, Y: 24, Z: 24}, 200000, DefaultDt, box(1, 1, 1, 16, 16, 23)),
	"drop":   preset("drop", dynamo.Dims{X: 32, Y: 32, Z: 32}, 300000, DefaultDt, box(1, 1, 1, 31, 8, 31), box(12, 18, 12, 20, 26, 20)),
	"column": preset("column", dynamo.Dims{X: 24, Y: 32, Z: 24}, 100000, DefaultDt, box(8, 1, 8, 16, 28, 16)),
	"small":  preset("small", dynamo.Dims{X: 16, Y: 16, Z: 16}, 20000, DefaultDt, box(1, 1, 1, 8, 10, 15)),
}

// GetPreset returns a copy of the named scene, or nil.
func GetPreset(name string) *Scene {
	s, ok := Presets[name]
	if !ok {
		return nil
	}
	return s.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
