package export

import (
	"strings"
	"testing"

	"github.com/san-kum/fluidsim/internal/viz"
)

func TestCanvasToSVG(t *testing.T) {
	c := viz.NewCanvas(4, 2)
	c.Set(0, 0)
	c.Set(7, 7)
	c.Set(3, 5)

	svg := CanvasToSVG(c, 2, "#4fc3f7")
	if got := strings.Count(svg, "<circle"); got != 3 {
		t.Errorf("expected 3 circles, got %d", got)
	}
	if !strings.Contains(svg, `width="16" height="16"`) {
		t.Errorf("unexpected size in %q", svg[:120])
	}
	if CanvasToSVG(nil, 1, "#fff") != "" {
		t.Error("nil canvas should render nothing")
	}
}

func TestImageToSVG(t *testing.T) {
	img := [][]float64{{0, 1}, {2, 3}}
	svg := ImageToSVG(img, 10, []string{"#000000", "#ffffff"})
	if got := strings.Count(svg, "<rect"); got != 4 {
		t.Errorf("expected 4 rects, got %d", got)
	}
	if !strings.Contains(svg, `fill="#000000"`) || !strings.Contains(svg, `fill="#ffffff"`) {
		t.Error("expected both ends of the ramp")
	}
}

func TestSeriesToSVG(t *testing.T) {
	if SeriesToSVG([]float64{1}, 100, 50, "#fff") != "" {
		t.Error("single value should render nothing")
	}
	svg := SeriesToSVG([]float64{1, 2, 3}, 100, 50, "#fff")
	if strings.Count(svg, " L") != 2 {
		t.Errorf("expected 2 segments in %q", svg)
	}
}
