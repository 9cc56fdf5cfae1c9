package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/sim"
)

// Launcher builds a scheduler for the picked scene.
type Launcher func(scene *config.Scene) (*sim.Scheduler, error)

type menu struct {
	cursor  int
	presets []string
	launch  Launcher
	opts    Options
	live    *Model
	err     error
}

// NewMenu lists the presets and starts the live view on the chosen one.
func NewMenu(launch Launcher, opts Options) tea.Model {
	return menu{presets: config.ListPresets(), launch: launch, opts: opts}
}

func (m menu) Init() tea.Cmd { return nil }

func (m menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.live != nil {
		next, cmd := m.live.Update(msg)
		live := next.(Model)
		m.live = &live
		return m, cmd
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		s, err := m.launch(config.GetPreset(m.presets[m.cursor]))
		if err != nil {
			m.err = err
			return m, nil
		}
		live := NewModel(s, m.opts)
		m.live = &live
		return m, live.Init()
	}
	return m, nil
}

func describe(scene *config.Scene) string {
	return fmt.Sprintf("%s grid, %d regions, dt %.4g", scene.Grid.Dims, len(scene.Fluid.Fill), scene.Solver.Dt)
}

func (m menu) View() string {
	if m.live != nil {
		return m.live.View()
	}
	var b strings.Builder
	title := lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true)
	sub := lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
	pick := lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Bold(true)
	b.WriteString("\n\n    " + title.Render("FLUIDSIM") + "\n    " + sub.Render("PIC/FLIP fluid") + "\n    " + sub.Render("─────────────────────────") + "\n\n")
	for i, name := range m.presets {
		desc := describe(config.GetPreset(name))
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", pick.Render("▸"), pick.Render(fmt.Sprintf("%-10s", name)), sub.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", sub.Render(fmt.Sprintf("%-10s", name)), sub.Render(desc)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + Subtle.Render("j/k navigate  enter select  q quit") + "\n")
	return b.String()
}

// RunInteractive shows the preset menu full screen.
func RunInteractive(launch Launcher, opts Options) error {
	_, err := tea.NewProgram(NewMenu(launch, opts), tea.WithAltScreen()).Run()
	return err
}
