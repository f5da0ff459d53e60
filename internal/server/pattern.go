package server

import (
	"math"

	"github.com/pixelstream/viewer/internal/frame"
)

var wheel = []frame.Color{
	{R: 1, G: 0, B: 0},
	{R: 1, G: 1, B: 0},
	{R: 0, G: 1, B: 0},
	{R: 0, G: 1, B: 1},
	{R: 0, G: 0, B: 1},
	{R: 1, G: 0, B: 1},
}

// Wheel returns the color at hue h on a six-stop color wheel. h wraps at 1.
func Wheel(h float64) frame.Color {
	h -= math.Floor(h)
	pos := h * float64(len(wheel))
	i := int(pos) % len(wheel)
	f := pos - math.Floor(pos)
	a, b := wheel[i], wheel[(i+1)%len(wheel)]
	return frame.Color{
		R: a.R + (b.R-a.R)*f,
		G: a.G + (b.G-a.G)*f,
		B: a.B + (b.B-a.B)*f,
	}
}

// patternColor is the test pattern: hue follows the angle around the
// center and rotates with tick, brightness falls off towards the corners.
func patternColor(x, y, w, h, tick int) frame.Color {
	cx, cy := float64(w-1)/2, float64(h-1)/2
	dx, dy := float64(x)-cx, float64(y)-cy

	hue := math.Atan2(dy, dx)/(2*math.Pi) + float64(tick)/200
	c := Wheel(hue)

	shade := 1.0
	if r := math.Hypot(cx, cy); r > 0 {
		shade = 1 - 0.6*math.Min(1, math.Hypot(dx, dy)/r)
	}
	return frame.Color{R: c.R * shade, G: c.G * shade, B: c.B * shade}
}

func patternRow(y, x0, n, w, h, tick int) []frame.Color {
	colors := make([]frame.Color, n)
	for i := range colors {
		colors[i] = patternColor(x0+i, y, w, h, tick)
	}
	return colors
}
