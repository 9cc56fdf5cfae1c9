package viz

import "github.com/charmbracelet/lipgloss"

// Theme colours the live view. Ramp runs from low to high values in volume
// slices.
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Ramp      []lipgloss.Color
}

var (
	ThemeOcean = Theme{
		Name:      "ocean",
		Primary:   lipgloss.Color("#4fc3f7"),
		Secondary: lipgloss.Color("#0288d1"),
		Accent:    lipgloss.Color("#80deea"),
		Muted:     lipgloss.Color("#546e7a"),
		Success:   lipgloss.Color("#00e676"),
		Warning:   lipgloss.Color("#ffab00"),
		Error:     lipgloss.Color("#ff5252"),
		Ramp: []lipgloss.Color{
			"#0a1a2f", "#0d3b66", "#1565c0", "#1e88e5", "#4fc3f7", "#b3e5fc", "#ffffff",
		},
	}

	ThemeMagma = Theme{
		Name:      "magma",
		Primary:   lipgloss.Color("#ff8a65"),
		Secondary: lipgloss.Color("#d84315"),
		Accent:    lipgloss.Color("#ffd54f"),
		Muted:     lipgloss.Color("#6d4c41"),
		Success:   lipgloss.Color("#aed581"),
		Warning:   lipgloss.Color("#ffca28"),
		Error:     lipgloss.Color("#ff1744"),
		Ramp: []lipgloss.Color{
			"#000004", "#3b0f70", "#8c2981", "#de4968", "#fe9f6d", "#fcfdbf",
		},
	}

	ThemeMono = Theme{
		Name:      "mono",
		Primary:   lipgloss.Color("#ffffff"),
		Secondary: lipgloss.Color("#cccccc"),
		Accent:    lipgloss.Color("#0088ff"),
		Muted:     lipgloss.Color("#888888"),
		Success:   lipgloss.Color("#00ff00"),
		Warning:   lipgloss.Color("#ffaa00"),
		Error:     lipgloss.Color("#ff0000"),
		Ramp: []lipgloss.Color{
			"#1c1c1c", "#444444", "#6c6c6c", "#949494", "#bcbcbc", "#eeeeee",
		},
	}

	Themes = []Theme{ThemeOcean, ThemeMagma, ThemeMono}

	CurrentTheme = ThemeOcean
)

// GetTheme returns a theme by name, falling back to the first one.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// rampColor picks the ramp entry for t in [0, 1].
func (t Theme) rampColor(x float64) lipgloss.Color {
	if len(t.Ramp) == 0 {
		return t.Primary
	}
	i := int(x * float64(len(t.Ramp)-1))
	if i < 0 {
		i = 0
	}
	if i >= len(t.Ramp) {
		i = len(t.Ramp) - 1
	}
	return t.Ramp[i]
}
