package viz

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/solver"
)

func TestCanvasSetUnset(t *testing.T) {
	c := NewCanvas(3, 2)
	if c.DotsWide() != 6 || c.DotsHigh() != 8 {
		t.Fatalf("dots %dx%d", c.DotsWide(), c.DotsHigh())
	}
	c.Set(0, 0)
	c.Set(5, 7)
	c.Set(-1, 0)
	c.Set(6, 0)
	if c.Count() != 2 {
		t.Errorf("expected 2 dots, got %d", c.Count())
	}
	if !c.IsSet(5, 7) || c.IsSet(4, 7) {
		t.Error("wrong dot lit")
	}
	c.Unset(5, 7)
	if c.IsSet(5, 7) || c.Count() != 1 {
		t.Error("unset failed")
	}
	c.Clear()
	if c.Count() != 0 {
		t.Error("clear failed")
	}
	if lines := strings.Split(strings.TrimSuffix(c.String(), "\n"), "\n"); len(lines) != 2 {
		t.Errorf("expected 2 rows, got %d", len(lines))
	}
}

func TestDrawLine(t *testing.T) {
	c := NewCanvas(10, 10)
	c.DrawLine(0, 0, 9, 0)
	if c.Count() != 10 {
		t.Errorf("expected 10 dots, got %d", c.Count())
	}
}

func TestProjectorFront(t *testing.T) {
	pr := Projector{Min: dynamo.V(0, 0, 0), Max: dynamo.V(1, 1, 1), Mode: ProjectFront}
	x, y, ok := pr.Project(dynamo.V(0, 0, 0.5), 11, 11)
	if !ok || x != 0 || y != 10 {
		t.Errorf("origin -> (%d, %d, %v)", x, y, ok)
	}
	x, y, ok = pr.Project(dynamo.V(1, 1, 0.5), 11, 11)
	if !ok || x != 10 || y != 0 {
		t.Errorf("far corner -> (%d, %d, %v)", x, y, ok)
	}
	if _, _, ok := pr.Project(dynamo.V(2, 0, 0), 11, 11); ok {
		t.Error("outside point should not be visible")
	}
}

func TestProjectorSideAndTop(t *testing.T) {
	p := dynamo.V(0.25, 0.5, 1)
	side := Projector{Min: dynamo.V(0, 0, 0), Max: dynamo.V(1, 1, 1), Mode: ProjectSide}
	if x, y, _ := side.Project(p, 5, 5); x != 4 || y != 2 {
		t.Errorf("side -> (%d, %d)", x, y)
	}
	top := Projector{Min: dynamo.V(0, 0, 0), Max: dynamo.V(1, 1, 1), Mode: ProjectTop}
	if x, y, _ := top.Project(p, 5, 5); x != 1 || y != 4 {
		t.Errorf("top -> (%d, %d)", x, y)
	}
}

func TestPerspectiveCentre(t *testing.T) {
	pr := Projector{Min: dynamo.V(0, 0, 0), Max: dynamo.V(2, 2, 2), Mode: ProjectPerspective, Camera: NewCamera()}
	x, y, ok := pr.Project(dynamo.V(1, 1, 1), 40, 40)
	if !ok || x != 20 || y != 20 {
		t.Errorf("centre -> (%d, %d, %v)", x, y, ok)
	}
}

func TestProjectionCycle(t *testing.T) {
	p := ProjectFront
	for i := 0; i < len(projectionNames); i++ {
		p = p.Next()
	}
	if p != ProjectFront {
		t.Errorf("cycle ended at %s", p)
	}
	got, err := ParseProjection("top")
	if err != nil || got != ProjectTop {
		t.Errorf("parse top: %v %v", got, err)
	}
	if _, err := ParseProjection("iso"); err == nil {
		t.Error("expected error")
	}
}

func TestSlice(t *testing.T) {
	dims := dynamo.Dims{X: 2, Y: 3, Z: 4}
	field := make([]float64, dims.Cells())
	// value = j, so the front view shows rows of the cell height
	for k := 0; k < dims.Z; k++ {
		for j := 0; j < dims.Y; j++ {
			for i := 0; i < dims.X; i++ {
				field[i+dims.X*(j+dims.Y*k)] = float64(j)
			}
		}
	}
	front := Slice(field, dims, ProjectFront)
	if len(front) != 3 || len(front[0]) != 2 {
		t.Fatalf("front is %dx%d", len(front), len(front[0]))
	}
	if front[0][0] != 2 || front[2][1] != 0 {
		t.Errorf("front rows not flipped: %v", front)
	}
	side := Slice(field, dims, ProjectSide)
	if len(side) != 3 || len(side[0]) != 4 {
		t.Fatalf("side is %dx%d", len(side), len(side[0]))
	}
	top := Slice(field, dims, ProjectTop)
	if len(top) != 4 || len(top[0]) != 2 || top[1][1] != 1 {
		t.Errorf("top averages height: %v", top)
	}
}

func TestThemes(t *testing.T) {
	defer SetTheme(ThemeOcean.Name)
	SetTheme("magma")
	if CurrentTheme.Name != "magma" {
		t.Errorf("theme %s", CurrentTheme.Name)
	}
	NextTheme()
	if CurrentTheme.Name != "mono" {
		t.Errorf("next theme %s", CurrentTheme.Name)
	}
	if GetTheme("nope").Name != Themes[0].Name {
		t.Error("unknown theme should fall back")
	}
	if c := ThemeOcean.rampColor(1); c != ThemeOcean.Ramp[len(ThemeOcean.Ramp)-1] {
		t.Errorf("top of ramp %s", c)
	}
}

func TestSparkline(t *testing.T) {
	if got := SparklineChart(nil, 4); got != "────" {
		t.Errorf("empty sparkline %q", got)
	}
	if got := SparklineChart([]float64{1, 2, 3, 4, 5, 6}, 3); strings.Count(got, "▁") != 1 {
		t.Errorf("expected the last 3 values scaled, got %q", got)
	}
}

type fakeRecording struct {
	frames int
	closed bool
}

func (f *fakeRecording) ID() string { return "fake" }

func (f *fakeRecording) Frame(*sim.Scheduler, sim.TickReport) error {
	f.frames++
	return nil
}

func (f *fakeRecording) Close(*sim.Scheduler) error {
	f.closed = true
	return nil
}

func newTestScheduler(t *testing.T) *sim.Scheduler {
	t.Helper()
	scene := config.DefaultScene()
	scene.Grid.Dims = dynamo.Dims{X: 8, Y: 8, Z: 8}
	scene.Grid.Scale = 1.0 / 8.0
	scene.Fluid.MaxParticles = 2000
	scene.Fluid.Fill = []config.FillRegion{{Min: dynamo.V(1, 1, 1), Max: dynamo.V(4, 4, 4)}}
	factory := func(sc *config.Scene) (sim.Solver, error) {
		return solver.New(sc, compute.NewSerialBackend())
	}
	s, err := sim.New(scene, factory, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func key(k string) tea.KeyMsg {
	if k == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestLiveTicksAdvanceScheduler(t *testing.T) {
	s := newTestScheduler(t)
	m := NewModel(s, Options{})

	now := time.Now()
	m = update(t, m, TickMsg(now))
	m = update(t, m, TickMsg(now.Add(frameInterval)))
	if s.Clock().TotalSteps != 2 {
		t.Errorf("expected 2 steps, got %d", s.Clock().TotalSteps)
	}
	if s.Clock().FramesRendered != 2 {
		t.Errorf("expected 2 frames, got %d", s.Clock().FramesRendered)
	}

	m = update(t, m, key(" "))
	if _, ok := s.Status().(sim.Paused); !ok {
		t.Fatalf("space should pause, status %s", s.Status())
	}
	m = update(t, m, TickMsg(now.Add(2*frameInterval)))
	if s.Clock().TotalSteps != 2 {
		t.Error("paused view must not step")
	}

	if out := m.View(); !strings.Contains(out, "PAUSED") {
		t.Error("view should show paused status")
	}
}

func TestLiveKeys(t *testing.T) {
	s := newTestScheduler(t)
	m := NewModel(s, Options{FastForward: 0.5})

	m = update(t, m, key("f"))
	if s.Clock().TotalSteps != 30 {
		t.Errorf("fast forward ran %d steps", s.Clock().TotalSteps)
	}

	m = update(t, m, key("g"))
	if g := s.Scene().Gravity; g.Y <= 0 {
		t.Errorf("gravity not flipped: %v", g)
	}

	m = update(t, m, key("m"))
	if _, ok := s.Status().(sim.SimulateAndRender); !ok {
		t.Errorf("mode cycle gave %s", s.Status())
	}

	m = update(t, m, key("v"))
	if !m.showVolume || m.volume != solver.VolumeVelocity {
		t.Error("v should open the velocity volume")
	}
	for range solver.VolumeModes {
		m = update(t, m, key("v"))
	}
	if m.showVolume {
		t.Error("cycling past the last volume should hide it")
	}

	m = update(t, m, key("r"))
	if s.Clock().TotalSteps != 0 {
		t.Error("reset should zero the clock")
	}
	if m.err != nil {
		t.Errorf("unexpected error: %v", m.err)
	}
}

func TestLiveRecording(t *testing.T) {
	s := newTestScheduler(t)
	rec := &fakeRecording{}
	m := NewModel(s, Options{
		RecordFPS: 30,
		Record:    func(*sim.Scheduler) (Recording, error) { return rec, nil },
	})

	m = update(t, m, key("c"))
	if _, ok := s.Status().(sim.Record); !ok {
		t.Fatalf("expected record status, got %s", s.Status())
	}
	now := time.Now()
	for i := 0; i < 3; i++ {
		m = update(t, m, TickMsg(now.Add(time.Duration(i)*time.Second)))
	}
	if rec.frames != 3 || s.Clock().TotalSteps != 6 {
		t.Errorf("recorded %d frames over %d steps", rec.frames, s.Clock().TotalSteps)
	}

	m = update(t, m, key("c"))
	if !rec.closed || m.recording != nil {
		t.Error("second c should close the recording")
	}
	if _, ok := s.Status().(sim.Paused); !ok {
		t.Errorf("expected paused after recording, got %s", s.Status())
	}
}

func TestLiveVolumeView(t *testing.T) {
	s := newTestScheduler(t)
	m := NewModel(s, Options{})
	m = update(t, m, TickMsg(time.Now()))
	m = update(t, m, key("v"))
	if out := m.View(); !strings.Contains(out, "velocity") {
		t.Error("view should name the volume mode")
	}
}

func TestMenuLaunches(t *testing.T) {
	s := newTestScheduler(t)
	var launched string
	mm := NewMenu(func(scene *config.Scene) (*sim.Scheduler, error) {
		launched = scene.Name
		return s, nil
	}, Options{})

	next, _ := mm.Update(key("j"))
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Error("launch should start ticking")
	}
	if want := config.ListPresets()[1]; launched != want {
		t.Errorf("launched %q, want %q", launched, want)
	}
	if !strings.Contains(next.View(), "REALTIME") {
		t.Error("menu should hand over to the live view")
	}
}
