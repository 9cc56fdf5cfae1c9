package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/solver"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 120
	frameInterval   = (time.Second + 59) / 60 // 60 Hz rounded up to whole nanoseconds
)

type TickMsg time.Time

// Recording receives every frame while the live view records.
type Recording interface {
	ID() string
	Frame(s *sim.Scheduler, report sim.TickReport) error
	Close(s *sim.Scheduler) error
}

type Options struct {
	// Record opens a recording after the scheduler switched to Record. Nil
	// still records in the scheduler but keeps nothing on disk.
	Record      func(s *sim.Scheduler) (Recording, error)
	RecordFPS   float64
	FastForward float64
	Projection  Projection
}

// Model drives a scheduler from Bubble Tea ticks and draws the particles.
type Model struct {
	sched      *sim.Scheduler
	opts       Options
	canvas     *Canvas
	camera     *Camera
	projection Projection
	volume     solver.VolumeMode
	showVolume bool
	last       time.Time
	report     sim.TickReport
	frameTimes []float64
	stepCounts []float64
	residuals  []float64
	recording  Recording
	message    string
	err        error
	showHelp   bool
	quitting   bool
}

func NewModel(s *sim.Scheduler, opts Options) Model {
	if opts.RecordFPS <= 0 {
		opts.RecordFPS = s.Scene().Scheduler.RecordFPS
	}
	if opts.FastForward <= 0 {
		opts.FastForward = 1
	}
	return Model{
		sched:      s,
		opts:       opts,
		canvas:     NewCanvas(width, height),
		camera:     NewCamera(),
		projection: opts.Projection,
		frameTimes: make([]float64, 0, historyCapacity),
		stepCounts: make([]float64, 0, historyCapacity),
		residuals:  make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and advances the scheduler on ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		if m.quitting {
			return m, nil
		}
		m.advance(time.Time(msg))
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	switch msg.String() {
	case "q", "ctrl+c":
		m.stopRecording()
		m.quitting = true
		return m, tea.Quit
	case " ":
		m.sched.TogglePause()
	case "r":
		m.fail(m.sched.Reset())
		m.clearHistory()
	case "m":
		if m.recording != nil {
			m.message = "stop recording first"
			break
		}
		m.fail(m.sched.SetStatus(sim.NextStatus(m.sched.Status())))
	case "f":
		n, err := m.sched.FastForward(context.Background(), m.opts.FastForward)
		m.fail(err)
		m.message = fmt.Sprintf("fast forward: %d steps", n)
	case "c":
		if m.recording != nil {
			m.stopRecording()
		} else {
			m.startRecording()
		}
	case "g":
		g := m.sched.Scene().Gravity
		m.fail(m.sched.SetGravity(g.Scale(-1)))
	case "v":
		switch {
		case !m.showVolume:
			m.showVolume, m.volume = true, solver.VolumeModes[0]
		case int(m.volume) == len(solver.VolumeModes)-1:
			m.showVolume = false
		default:
			m.volume = m.volume.Next()
		}
	case "p":
		m.projection = m.projection.Next()
	case "t":
		NextTheme()
	case "left", "h":
		m.camera.RotateY(-0.1)
	case "right", "l":
		m.camera.RotateY(0.1)
	case "up", "k":
		m.camera.RotateX(-0.1)
	case "down", "j":
		m.camera.RotateX(0.1)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) fail(err error) {
	if err != nil {
		m.err = err
	}
}

// advance delivers the wall time since the previous tick to the scheduler.
func (m *Model) advance(now time.Time) {
	delta := frameInterval
	if !m.last.IsZero() {
		delta = now.Sub(m.last)
	}
	m.last = now

	start := time.Now()
	report, err := m.sched.Tick(context.Background(), delta)
	m.report = report
	if err != nil {
		m.err = err
		m.sched.Pause()
	}
	m.sched.FrameRendered()
	if m.recording != nil {
		if err := m.recording.Frame(m.sched, report); err != nil {
			m.err = err
			m.stopRecording()
		}
	}

	m.frameTimes = push(m.frameTimes, float64(time.Since(start).Microseconds())/1000)
	m.stepCounts = push(m.stepCounts, float64(report.Steps))
	if sv, ok := m.sched.Solver().(*solver.Solver); ok && report.Steps > 0 {
		m.residuals = push(m.residuals, sv.Diagnostics().Residual)
	}
}

func push(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

func (m *Model) clearHistory() {
	m.frameTimes = m.frameTimes[:0]
	m.stepCounts = m.stepCounts[:0]
	m.residuals = m.residuals[:0]
}

func (m *Model) startRecording() {
	if err := m.sched.StartRecording(m.opts.RecordFPS); err != nil {
		m.err = err
		return
	}
	m.clearHistory()
	if m.opts.Record == nil {
		return
	}
	rec, err := m.opts.Record(m.sched)
	if err != nil {
		m.err = err
		m.sched.StopRecording()
		return
	}
	m.recording = rec
	m.message = "recording " + rec.ID()
}

func (m *Model) stopRecording() {
	m.sched.StopRecording()
	if m.recording == nil {
		return
	}
	if err := m.recording.Close(m.sched); err != nil {
		m.err = err
	} else {
		m.message = "saved " + m.recording.ID()
	}
	m.recording = nil
}

// draw renders the current particles into the canvas.
func (m *Model) draw() {
	m.canvas.Clear()
	sv, ok := m.sched.Solver().(*solver.Solver)
	if !ok {
		return
	}
	lo, hi := sv.Bounds()
	pr := Projector{Min: lo, Max: hi, Mode: m.projection, Camera: m.camera}
	DrawBounds(m.canvas, pr)
	DrawParticles(m.canvas, sv.Particles().Positions, pr)
}

func (m Model) statusLine() string {
	st := m.sched.Status()
	label := strings.ToUpper(st.String())
	switch st.(type) {
	case sim.Paused:
		return StatusPaused.Render("❚❚ " + label)
	case sim.Record:
		return StatusRecording.Render("● " + label)
	}
	return StatusRunning.Render("▶ " + label)
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

// View renders the TUI interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var left string
	if m.showVolume {
		if sv, ok := m.sched.Solver().(*solver.Solver); ok {
			left = RenderVolume(sv.Grid(), m.volume, m.projection, width, height)
		}
	} else {
		m.draw()
		left = lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Render(m.canvas.String())
	}
	canvasView := canvasStyle.Render(left)

	clock := m.sched.Clock()
	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.sched.Scene().Name)) + "\n")
	s.WriteString(m.statusLine() + "\n\n")

	frameMS := 0.0
	if n := len(m.frameTimes); n > 0 {
		frameMS = m.frameTimes[n-1]
	}
	s.WriteString(row("ms/frame", fmt.Sprintf("%.2f", frameMS)))
	s.WriteString(row("steps/frame", fmt.Sprintf("%d", clock.StepsThisTick)))
	s.WriteString(row("sim time", fmt.Sprintf("%.3fs", clock.SimTime)))
	s.WriteString(row("wall time", fmt.Sprintf("%.3fs", clock.WallTime.Seconds())))
	s.WriteString(row("lag", fmt.Sprintf("%.3fs", clock.Lag())))
	s.WriteString(row("dropped", fmt.Sprintf("%.3fs", clock.Dropped)))
	s.WriteString(row("total steps", fmt.Sprintf("%d", clock.TotalSteps)))
	s.WriteString(row("frames", fmt.Sprintf("%d", clock.FramesRendered)))

	if sv, ok := m.sched.Solver().(*solver.Solver); ok {
		diag := sv.Diagnostics()
		s.WriteString(row("particles", fmt.Sprintf("%d", sv.Particles().Count())))
		s.WriteString(row("fluid cells", fmt.Sprintf("%d", diag.FluidCells)))
		residual := fmt.Sprintf("%.3g", diag.Residual)
		if !diag.Converged && diag.Step > 0 {
			residual = lipgloss.NewStyle().Foreground(CurrentTheme.Warning).Render(residual + " !")
		}
		s.WriteString(row("residual", residual))
		s.WriteString(row("gravity", sv.Gravity().String()))
	}
	view := m.projection.String()
	if m.showVolume {
		view += " / " + m.volume.String()
	}
	s.WriteString(row("view", view))

	if len(m.residuals) > 1 {
		chart := asciigraph.Plot(m.residuals, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Residual"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	if len(m.stepCounts) > 0 {
		s.WriteString(labelStyle.Render("steps") + SparklineChart(m.stepCounts, 30) + "\n")
	}

	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render(m.err.Error()) + "\n")
	} else if m.message != "" {
		s.WriteString("\n" + Subtle.Render(m.message) + "\n")
	}
	s.WriteString(helpStyle.Render(Separator(30) + "\nSP:Pause R:Reset M:Mode F:Forward\nC:Record G:Gravity V:Volume ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reset scene              ║
║  M        - Cycle mode               ║
║  F        - Fast forward             ║
║  C        - Start/stop recording     ║
║  G        - Flip gravity             ║
║  V        - Cycle volume view        ║
║  P        - Cycle projection         ║
║  T        - Cycle themes             ║
║  Arrows   - Orbit camera             ║
║  +/-      - Zoom                     ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// Run starts the live view full screen and blocks until it quits.
func Run(s *sim.Scheduler, opts Options) error {
	_, err := tea.NewProgram(NewModel(s, opts), tea.WithAltScreen()).Run()
	return err
}
