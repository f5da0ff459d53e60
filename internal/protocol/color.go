package protocol

import (
	"fmt"
	"math"

	"github.com/pixelstream/viewer/internal/frame"
)

// Scale is the numeric range color components use on the wire. In memory
// colors are always in [0,1]; the scale only applies at the boundary.
type Scale int

const (
	ScaleUnit Scale = iota // components in [0,1]
	ScaleByte              // components in [0,255]
)

func (s Scale) String() string {
	if s == ScaleByte {
		return "byte"
	}
	return "unit"
}

// ParseScale maps a config value to a Scale. The empty string selects ScaleUnit.
func ParseScale(s string) (Scale, error) {
	switch s {
	case "", "unit":
		return ScaleUnit, nil
	case "byte":
		return ScaleByte, nil
	default:
		return ScaleUnit, fmt.Errorf("unknown color scale %q", s)
	}
}

func (s Scale) max() float64 {
	if s == ScaleByte {
		return 255
	}
	return 1
}

// toColor normalizes a wire triple.
func (s Scale) toColor(v []float64) (frame.Color, error) {
	if len(v) != 3 {
		return frame.Color{}, fmt.Errorf("%w: color must have 3 components, got %d", ErrMalformed, len(v))
	}
	m := s.max()
	for _, c := range v {
		if math.IsNaN(c) || c < 0 || c > m {
			return frame.Color{}, fmt.Errorf("%w: color component %v outside [0,%v]", ErrMalformed, c, m)
		}
	}
	return frame.Color{R: v[0] / m, G: v[1] / m, B: v[2] / m}, nil
}

// fromColor converts an in-memory color to a wire triple.
func (s Scale) fromColor(c frame.Color) []float64 {
	if s == ScaleByte {
		return []float64{math.Round(c.R * 255), math.Round(c.G * 255), math.Round(c.B * 255)}
	}
	return []float64{c.R, c.G, c.B}
}
