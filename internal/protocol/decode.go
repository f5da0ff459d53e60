package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pixelstream/viewer/internal/frame"
)

// wireMessage mirrors the JSON schema. Integer fields stay raw so that
// negative, fractional and quoted values can be told apart from missing ones.
type wireMessage struct {
	Type   MessageType     `json:"type"`
	Seq    json.RawMessage `json:"seq"`
	W      json.RawMessage `json:"w"`
	H      json.RawMessage `json:"h"`
	X      json.RawMessage `json:"x"`
	Y      json.RawMessage `json:"y"`
	X0     json.RawMessage `json:"x0"`
	Color  json.RawMessage `json:"color"`
	Colors json.RawMessage `json:"colors"`
}

// Decoder turns raw messages into ops. It holds configuration only; Decode
// has no side effects.
type Decoder struct {
	Scale Scale
}

// Decode parses raw using the unit color scale.
func Decode(raw []byte) (Op, error) {
	return Decoder{}.Decode(raw)
}

// Decode parses a single protocol message.
func (d Decoder) Decode(raw []byte) (Op, error) {
	var m wireMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("%w: missing \"type\"", ErrMalformed)
	}

	seq, err := uintField(m.Seq, "seq")
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		return nil, fmt.Errorf("%w: \"seq\" must be >= 1", ErrMalformed)
	}

	switch m.Type {
	case MsgResize:
		w, h, err := dimensions(m.W, m.H)
		if err != nil {
			return nil, err
		}
		return Resize{Seq: seq, W: w, H: h}, nil

	case MsgPixel:
		x, err := coordField(m.X, "x")
		if err != nil {
			return nil, err
		}
		y, err := coordField(m.Y, "y")
		if err != nil {
			return nil, err
		}
		c, err := d.color(m.Color, "color")
		if err != nil {
			return nil, err
		}
		return SetPixel{Seq: seq, X: x, Y: y, Color: c}, nil

	case MsgRun:
		y, err := coordField(m.Y, "y")
		if err != nil {
			return nil, err
		}
		x0, err := coordField(m.X0, "x0")
		if err != nil {
			return nil, err
		}
		colors, err := d.colors(m.Colors)
		if err != nil {
			return nil, err
		}
		if len(colors) == 0 {
			return nil, fmt.Errorf("%w: empty run", ErrMalformed)
		}
		if len(colors) > MaxDimension {
			return nil, fmt.Errorf("%w: run of %d pixels exceeds %d", ErrMalformed, len(colors), MaxDimension)
		}
		return SetRun{Seq: seq, Y: y, X0: x0, Colors: colors}, nil

	case MsgFull:
		w, h, err := dimensions(m.W, m.H)
		if err != nil {
			return nil, err
		}
		colors, err := d.colors(m.Colors)
		if err != nil {
			return nil, err
		}
		if len(colors) != w*h {
			return nil, fmt.Errorf("%w: full frame %dx%d carries %d pixels", ErrMalformed, w, h, len(colors))
		}
		return FullFrame{Seq: seq, W: w, H: h, Colors: colors}, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
}

func uintField(raw json.RawMessage, name string) (uint64, error) {
	if raw == nil {
		return 0, fmt.Errorf("%w: missing %q", ErrMalformed, name)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q must be a non-negative integer, got %s", ErrMalformed, name, raw)
	}
	return n, nil
}

func intField(raw json.RawMessage, name string) (int, error) {
	n, err := uintField(raw, name)
	if err != nil {
		return 0, err
	}
	if n > MaxDimension {
		return 0, fmt.Errorf("%w: %q = %d exceeds %d", ErrMalformed, name, n, MaxDimension)
	}
	return int(n), nil
}

// coordField reads a pixel coordinate. Large values stay valid here and are
// rejected by the buffer as out of bounds, which still consumes the seq.
func coordField(raw json.RawMessage, name string) (int, error) {
	n, err := uintField(raw, name)
	if err != nil {
		return 0, err
	}
	return int(min(n, math.MaxInt32)), nil
}

func dimensions(rawW, rawH json.RawMessage) (int, int, error) {
	w, err := intField(rawW, "w")
	if err != nil {
		return 0, 0, err
	}
	h, err := intField(rawH, "h")
	if err != nil {
		return 0, 0, err
	}
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrMalformed, w, h)
	}
	if w*h > MaxPixels {
		return 0, 0, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrMalformed, w, h, MaxPixels)
	}
	return w, h, nil
}

func (d Decoder) color(raw json.RawMessage, name string) (frame.Color, error) {
	if raw == nil {
		return frame.Color{}, fmt.Errorf("%w: missing %q", ErrMalformed, name)
	}
	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return frame.Color{}, fmt.Errorf("%w: %q: %v", ErrMalformed, name, err)
	}
	return d.Scale.toColor(v)
}

func (d Decoder) colors(raw json.RawMessage) ([]frame.Color, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: missing \"colors\"", ErrMalformed)
	}
	var vs [][]float64
	if err := json.Unmarshal(raw, &vs); err != nil {
		return nil, fmt.Errorf("%w: \"colors\": %v", ErrMalformed, err)
	}
	out := make([]frame.Color, len(vs))
	for i, v := range vs {
		c, err := d.Scale.toColor(v)
		if err != nil {
			return nil, fmt.Errorf("colors[%d]: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// DecodeClient parses a message sent by a viewer. Anything that is not a
// JSON object is taken as a free-form greeting.
func DecodeClient(raw []byte) (ClientMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return ClientMessage{Type: MsgHello, Client: trimmed}, nil
	}
	var m ClientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch m.Type {
	case MsgHello, MsgResync:
		return m, nil
	case "":
		return ClientMessage{}, fmt.Errorf("%w: missing \"type\"", ErrMalformed)
	default:
		return ClientMessage{}, fmt.Errorf("%w: unknown client message %q", ErrMalformed, m.Type)
	}
}
