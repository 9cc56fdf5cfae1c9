package config

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

// ExampleSceneFile documents the INI-style scene format.
const ExampleSceneFile = `[Scene]
Name = dam
Gravity = 0 -9.81 0

[Grid]
Dims = 48 24 24
CellScale = 0.0208333
Origin = 0 0 0

[Fluid]
MaxParticles = 200000
ParticlesPerCell = 8
FlipRatio = 0.95
Jitter = 0.5
Seed = 1

# One section per fill region, corners in grid cells.
[Region "dam"]
Min = 1 1 1
Max = 16 16 23

[Solver]
Dt = 0.0166667
PressureIterations = 48
ResidualTolerance = 0.5
Backend = cpu
# Workers = 0

[Scheduler]
MaxStepsPerTick = 8
RecordFPS = 60`

type gcfgRegion struct {
	Min string
	Max string
}

type gcfgFile struct {
	Scene struct {
		Name    string
		Gravity string
	}
	Grid struct {
		Dims      string
		CellScale float64
		Origin    string
	}
	Fluid struct {
		MaxParticles     int
		ParticlesPerCell int
		FlipRatio        float64
		Jitter           float64
		Seed             int64
	}
	Region map[string]*gcfgRegion
	Solver struct {
		Dt                 float64
		PressureIterations int
		ResidualTolerance  float64
		Backend            string
		Workers            int
	}
	Scheduler struct {
		MaxStepsPerTick int
		RecordFPS       float64
	}
}

func defaultGcfg() *gcfgFile {
	d := DefaultScene()
	f := &gcfgFile{}
	f.Scene.Name = d.Name
	f.Scene.Gravity = formatVec(d.Gravity)
	f.Grid.Dims = fmt.Sprintf("%d %d %d", d.Grid.Dims.X, d.Grid.Dims.Y, d.Grid.Dims.Z)
	f.Grid.CellScale = d.Grid.Scale
	f.Grid.Origin = formatVec(d.Grid.Origin)
	f.Fluid.MaxParticles = d.Fluid.MaxParticles
	f.Fluid.ParticlesPerCell = d.Fluid.ParticlesPerCell
	f.Fluid.FlipRatio = d.Fluid.FlipRatio
	f.Fluid.Jitter = d.Fluid.Jitter
	f.Fluid.Seed = d.Fluid.Seed
	f.Solver.Dt = d.Solver.Dt
	f.Solver.PressureIterations = d.Solver.PressureIterations
	f.Solver.ResidualTolerance = d.Solver.ResidualTolerance
	f.Solver.Backend = d.Solver.Backend
	f.Scheduler.MaxStepsPerTick = d.Scheduler.MaxStepsPerTick
	f.Scheduler.RecordFPS = d.Scheduler.RecordFPS
	return f
}

func loadGcfg(path string) (*Scene, error) {
	f := defaultGcfg()
	if err := gcfg.ReadFileInto(f, path); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.scene()
}

// ParseGcfg reads an INI-style scene from a string.
func ParseGcfg(text string) (*Scene, error) {
	f := defaultGcfg()
	if err := gcfg.ReadStringInto(f, text); err != nil {
		return nil, err
	}
	return f.scene()
}

func (f *gcfgFile) scene() (*Scene, error) {
	s := DefaultScene()
	s.Name = f.Scene.Name

	var err error
	if s.Gravity, err = parseVec("Scene.Gravity", f.Scene.Gravity); err != nil {
		return nil, err
	}
	if _, err := fmt.Sscan(f.Grid.Dims, &s.Grid.Dims.X, &s.Grid.Dims.Y, &s.Grid.Dims.Z); err != nil {
		return nil, dynamo.InvalidConfig("Grid.Dims", "want three integers, got %q", f.Grid.Dims)
	}
	s.Grid.Scale = f.Grid.CellScale
	if s.Grid.Origin, err = parseVec("Grid.Origin", f.Grid.Origin); err != nil {
		return nil, err
	}

	s.Fluid.MaxParticles = f.Fluid.MaxParticles
	s.Fluid.ParticlesPerCell = f.Fluid.ParticlesPerCell
	s.Fluid.FlipRatio = f.Fluid.FlipRatio
	s.Fluid.Jitter = f.Fluid.Jitter
	s.Fluid.Seed = f.Fluid.Seed

	if len(f.Region) > 0 {
		names := make([]string, 0, len(f.Region))
		for name := range f.Region {
			names = append(names, name)
		}
		sort.Strings(names)

		s.Fluid.Fill = s.Fluid.Fill[:0]
		for _, name := range names {
			r := f.Region[name]
			min, err := parseVec("Region "+name+".Min", r.Min)
			if err != nil {
				return nil, err
			}
			max, err := parseVec("Region "+name+".Max", r.Max)
			if err != nil {
				return nil, err
			}
			s.Fluid.Fill = append(s.Fluid.Fill, FillRegion{Min: min, Max: max})
		}
	}

	s.Solver.Dt = f.Solver.Dt
	s.Solver.PressureIterations = f.Solver.PressureIterations
	s.Solver.ResidualTolerance = f.Solver.ResidualTolerance
	s.Solver.Backend = f.Solver.Backend
	s.Solver.Workers = f.Solver.Workers
	s.Scheduler.MaxStepsPerTick = f.Scheduler.MaxStepsPerTick
	s.Scheduler.RecordFPS = f.Scheduler.RecordFPS
	return s, nil
}

func parseVec(field, s string) (dynamo.Vec3, error) {
	var v dynamo.Vec3
	if _, err := fmt.Sscan(strings.TrimSpace(s), &v.X, &v.Y, &v.Z); err != nil {
		return v, dynamo.InvalidConfig(field, "want three numbers, got %q", s)
	}
	return v, nil
}

func formatVec(v dynamo.Vec3) string {
	return fmt.Sprintf("%g %g %g", v.X, v.Y, v.Z)
}
