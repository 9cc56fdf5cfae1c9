package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/solver"
)

// Slice averages a per-cell field along the viewing axis of the projection,
// giving a rows x cols image with row 0 at the top.
func Slice(field []float64, dims dynamo.Dims, proj Projection) [][]float64 {
	var cols, rows, depth int
	var at func(u, v, d int) int
	switch proj {
	case ProjectSide:
		cols, rows, depth = dims.Z, dims.Y, dims.X
		at = func(u, v, d int) int { return d + dims.X*((rows-1-v)+dims.Y*u) }
	case ProjectTop:
		cols, rows, depth = dims.X, dims.Z, dims.Y
		at = func(u, v, d int) int { return u + dims.X*(d+dims.Y*v) }
	default:
		// perspective has no viewing axis and uses the front view
		cols, rows, depth = dims.X, dims.Y, dims.Z
		at = func(u, v, d int) int { return u + dims.X*((rows-1-v)+dims.Y*d) }
	}

	img := make([][]float64, rows)
	for v := range img {
		img[v] = make([]float64, cols)
		for u := range img[v] {
			sum := 0.0
			for d := 0; d < depth; d++ {
				sum += field[at(u, v, d)]
			}
			img[v][u] = sum / float64(depth)
		}
	}
	return img
}

// RenderVolume draws the volume mode of the grid as coloured blocks, one per
// cell, downsampled to fit within maxW x maxH characters.
func RenderVolume(view solver.GridView, mode solver.VolumeMode, proj Projection, maxW, maxH int) string {
	img := Slice(view.Volume(mode), view.Dims, proj)
	if len(img) == 0 || len(img[0]) == 0 || maxW <= 0 || maxH <= 0 {
		return ""
	}
	rows, cols := len(img), len(img[0])
	step := int(math.Ceil(math.Max(float64(cols)/float64(maxW), float64(rows)/float64(maxH))))
	step = max(step, 1)

	flat := make([]float64, 0, rows*cols)
	for _, r := range img {
		flat = append(flat, r...)
	}
	lo, hi := solver.Range(flat)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for v := 0; v < rows; v += step {
		for u := 0; u < cols; u += step {
			x := img[v][u]
			if math.IsNaN(x) || math.IsInf(x, 0) {
				b.WriteString(lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render("×"))
				continue
			}
			c := CurrentTheme.rampColor((x - lo) / span)
			b.WriteString(lipgloss.NewStyle().Foreground(c).Render("█"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
