package solver

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/metrics"
)

const g = -9.8

func testScene(dims dynamo.Dims, fill ...config.FillRegion) *config.Scene {
	s := config.DefaultScene()
	s.Name = "test"
	s.Grid.Dims = dims
	s.Grid.Scale = 1
	s.Gravity = dynamo.V(0, g, 0)
	s.Fluid.Jitter = 0
	s.Fluid.Fill = fill
	return s
}

func singleParticle(t *testing.T, dims dynamo.Dims, at dynamo.Vec3) *Solver {
	t.Helper()
	s, err := New(testScene(dims), compute.NewCPUBackend(4))
	require.NoError(t, err)
	require.NoError(t, s.store.Append(at, dynamo.Vec3{}))
	return s
}

func TestFreeFall(t *testing.T) {
	s := singleParticle(t, dynamo.Dims{X: 8, Y: 32, Z: 8}, dynamo.V(4.5, 28.5, 4.5))
	dt := s.Dt()

	prev := s.Particles().Positions[0].Y
	for n := 1; n <= 60; n++ {
		require.NoError(t, s.Step())
		p := s.Particles()
		y := p.Positions[0].Y
		require.Less(t, y, prev, "step %d", n)
		prev = y
		assert.InDelta(t, g*dt*float64(n), p.Velocities[0].Y, 1e-9, "step %d", n)
	}

	p := s.Particles()
	assert.InDelta(t, g, p.Velocities[0].Y, 1e-9)
	assert.InDelta(t, 4.5, p.Positions[0].X, 1e-9)
	assert.InDelta(t, 4.5, p.Positions[0].Z, 1e-9)
	assert.InDelta(t, 28.5+g*dt*dt*60*61/2, p.Positions[0].Y, 1e-9)
	assert.Equal(t, uint64(60), s.Steps())
}

func TestFallOntoFloor(t *testing.T) {
	s := singleParticle(t, dynamo.Dims{X: 8, Y: 8, Z: 8}, dynamo.V(4.5, 4.5, 4.5))
	floor := wallEpsilon * s.grid.Scale()

	prev := 4.5
	freeSteps := 0
	for n := 1; n <= 100; n++ {
		require.NoError(t, s.Step())
		p := s.Particles()
		y, vy := p.Positions[0].Y, p.Velocities[0].Y

		require.GreaterOrEqual(t, y, floor, "step %d", n)
		require.LessOrEqual(t, y, prev, "step %d: particle rose", n)

		// above the bottom cell row nothing but gravity acts on it
		if prev >= 1 {
			require.Less(t, y, prev, "step %d", n)
			require.InDelta(t, g*s.Dt()*float64(n), vy, 1e-9, "step %d", n)
			freeSteps++
		}
		prev = y
	}

	p := s.Particles()
	assert.True(t, freeSteps >= 45 && freeSteps <= 55, "free fall for %d steps", freeSteps)
	assert.Less(t, p.Positions[0].Y, 1.0)
	assert.Less(t, math.Abs(p.Velocities[0].Y), 1.0, "floor should stop the descent")
	assert.InDelta(t, 4.5, p.Positions[0].X, 1e-9)
	assert.InDelta(t, 4.5, p.Positions[0].Z, 1e-9)
}

func TestContainmentAndConservation(t *testing.T) {
	scene := config.DefaultScene()
	s, err := New(scene, nil)
	require.NoError(t, err)

	count := s.Particles().Count()
	require.Greater(t, count, 0)
	startHeight := meanHeight(s)

	for n := 0; n < 90; n++ {
		require.NoError(t, s.Step())
		require.Equal(t, count, s.Particles().Count())
		require.Zero(t, metrics.Escaped(s.Sample(0)), "particles escaped after step %d", n+1)
	}

	assert.Less(t, meanHeight(s), startHeight, "fluid should settle under gravity")
	assert.Equal(t, count, s.Diagnostics().Particles)
	assert.Greater(t, s.Diagnostics().FluidCells, 0)
}

func TestProjectionSkipsUnreachedFaces(t *testing.T) {
	s, err := New(config.DefaultScene(), nil)
	require.NoError(t, err)
	for n := 0; n < 5; n++ {
		require.NoError(t, s.Step())
	}

	gr := s.grid
	reached := 0
	for _, axis := range dynamo.Axes {
		for f := range gr.Velocity[axis] {
			i, j, k := gr.FaceCoords(axis, f)
			li, lj, lk, ui, uj, uk := grid.FaceCells(axis, i, j, k)
			a, b := gr.MarkerAt(li, lj, lk), gr.MarkerAt(ui, uj, uk)
			if !gr.Valid[axis][f] {
				require.Zero(t, gr.Velocity[axis][f], "%v face %d moved without particles", axis, f)
				if a != grid.Solid && b != grid.Solid {
					require.False(t, a == grid.Fluid || b == grid.Fluid, "%v face %d of a fluid cell not reached", axis, f)
				}
				continue
			}
			reached++
		}
	}
	assert.Greater(t, reached, 0)
}

func meanHeight(s *Solver) float64 {
	var sum float64
	pos := s.Particles().Positions
	for _, p := range pos {
		sum += p.Y
	}
	return sum / float64(len(pos))
}

func TestNonConvergenceWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	scene := testScene(dynamo.Dims{X: 12, Y: 12, Z: 12}, config.FillRegion{Min: dynamo.V(1, 1, 1), Max: dynamo.V(9, 9, 9)})
	scene.Solver.PressureIterations = 1
	scene.Solver.ResidualTolerance = 1e-12
	s, err := New(scene, nil)
	require.NoError(t, err)

	for n := 0; n < 5; n++ {
		require.NoError(t, s.Step(), "non-convergence must not fail the step")
	}

	d := s.Diagnostics()
	assert.False(t, d.Converged)
	assert.Greater(t, d.Residual, d.Threshold)
	require.Error(t, d.Err)
	assert.True(t, errors.Is(d.Err, dynamo.ErrNonConvergence))

	var rerr *dynamo.ResidualError
	require.True(t, errors.As(d.Err, &rerr))
	assert.Equal(t, uint64(5), rerr.Step)
	assert.Equal(t, 1, rerr.Iterations)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "pressure solve above residual threshold"))
	assert.Contains(t, out, "level=WARN")
}

func TestShallowPoolConverges(t *testing.T) {
	scene := testScene(dynamo.Dims{X: 8, Y: 8, Z: 8}, config.FillRegion{Min: dynamo.V(0, 0, 0), Max: dynamo.V(8, 2, 8)})
	scene.Solver.PressureIterations = 1000
	scene.Solver.ResidualTolerance = 1e-3
	s, err := New(scene, nil)
	require.NoError(t, err)

	for n := 0; n < 10; n++ {
		require.NoError(t, s.Step())
	}
	d := s.Diagnostics()
	assert.True(t, d.Converged, "residual %g", d.Residual)
	assert.NoError(t, d.Err)
}

func TestNewErrors(t *testing.T) {
	t.Run("capacity", func(t *testing.T) {
		scene := config.DefaultScene()
		scene.Fluid.MaxParticles = 10
		_, err := New(scene, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, dynamo.ErrCapacityExceeded))
		var cerr *dynamo.CapacityError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, 10, cerr.Available)
	})
	t.Run("invalid", func(t *testing.T) {
		scene := config.DefaultScene()
		scene.Solver.Dt = 0
		_, err := New(scene, nil)
		assert.True(t, errors.Is(err, dynamo.ErrInvalidConfiguration))
	})
}

func TestSetGravity(t *testing.T) {
	scene := config.DefaultScene()
	scene.Gravity = dynamo.Vec3{}
	s, err := New(scene, nil)
	require.NoError(t, err)

	before := append([]dynamo.Vec3(nil), s.Particles().Positions...)
	for n := 0; n < 5; n++ {
		require.NoError(t, s.Step())
	}
	for i, p := range s.Particles().Positions {
		require.InDelta(t, 0, p.Sub(before[i]).Len(), 1e-9, "particle %d moved without gravity", i)
	}

	s.SetGravity(dynamo.V(0, g, 0))
	assert.Equal(t, dynamo.V(0, g, 0), s.Gravity())
	assert.Equal(t, dynamo.V(0, g, 0), s.Sample(0).Gravity)
	require.NoError(t, s.Step())
	assert.Less(t, meanHeight(s), meanOf(before))
}

func meanOf(pos []dynamo.Vec3) float64 {
	var sum float64
	for _, p := range pos {
		sum += p.Y
	}
	return sum / float64(len(pos))
}

func TestBackendsAgree(t *testing.T) {
	scene := config.DefaultScene()
	a, err := New(scene, compute.NewSerialBackend())
	require.NoError(t, err)
	b, err := New(scene, compute.NewCPUBackend(8))
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		require.NoError(t, a.Step())
		require.NoError(t, b.Step())
	}

	pa, pb := a.Particles(), b.Particles()
	require.Equal(t, pa.Count(), pb.Count())
	for i := range pa.Positions {
		require.InDelta(t, 0, pa.Positions[i].Sub(pb.Positions[i]).Len(), 1e-9)
		require.InDelta(t, 0, pa.Velocities[i].Sub(pb.Velocities[i]).Len(), 1e-9)
	}
}

func TestViews(t *testing.T) {
	s, err := New(config.DefaultScene(), nil)
	require.NoError(t, err)

	pv := s.Particles()
	gv := s.Grid()
	assert.False(t, pv.Stale(s))

	require.NoError(t, s.Step())
	assert.True(t, pv.Stale(s))
	assert.True(t, gv.Stale(s))
	assert.Equal(t, uint64(1), s.Generation())

	gv = s.Grid()
	cells := gv.Dims.Cells()
	for _, mode := range VolumeModes {
		field := gv.Volume(mode)
		require.Len(t, field, cells, "mode %v", mode)
		for _, x := range field {
			require.False(t, math.IsNaN(x))
		}
	}

	markers := gv.Volume(VolumeMarker)
	lo, hi := Range(markers)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestVolumeMode(t *testing.T) {
	m, err := ParseVolumeMode("pressure")
	require.NoError(t, err)
	assert.Equal(t, VolumePressure, m)
	assert.Equal(t, VolumeMarker, m.Next())
	assert.Equal(t, VolumeVelocity, VolumeMarker.Next())

	_, err = ParseVolumeMode("vorticity")
	assert.Error(t, err)
}

func TestRange(t *testing.T) {
	lo, hi := Range([]float64{3, math.NaN(), -1, math.Inf(1), 2})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 3.0, hi)

	lo, hi = Range(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func BenchmarkStep(b *testing.B) {
	s, err := New(config.GetPreset("dam"), nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Step(); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()
	b.ReportMetric(float64(s.Particles().Count()), "particles")
}
