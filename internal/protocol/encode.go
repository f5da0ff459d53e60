package protocol

import (
	"encoding/json"
	"fmt"
)

type wireOut struct {
	Type   MessageType `json:"type"`
	Seq    uint64      `json:"seq"`
	W      *int        `json:"w,omitempty"`
	H      *int        `json:"h,omitempty"`
	X      *int        `json:"x,omitempty"`
	Y      *int        `json:"y,omitempty"`
	X0     *int        `json:"x0,omitempty"`
	Color  []float64   `json:"color,omitempty"`
	Colors [][]float64 `json:"colors,omitempty"`
}

// Encoder serializes ops for the wire.
type Encoder struct {
	Scale Scale
}

// Encode serializes op using the unit color scale.
func Encode(op Op) ([]byte, error) {
	return Encoder{}.Encode(op)
}

// Encode serializes a single op.
func (e Encoder) Encode(op Op) ([]byte, error) {
	out := wireOut{Type: op.Kind(), Seq: op.Sequence()}
	switch o := op.(type) {
	case Resize:
		out.W, out.H = &o.W, &o.H
	case SetPixel:
		out.X, out.Y = &o.X, &o.Y
		out.Color = e.Scale.fromColor(o.Color)
	case SetRun:
		out.Y, out.X0 = &o.Y, &o.X0
		out.Colors = make([][]float64, len(o.Colors))
		for i, c := range o.Colors {
			out.Colors[i] = e.Scale.fromColor(c)
		}
	case FullFrame:
		out.W, out.H = &o.W, &o.H
		out.Colors = make([][]float64, len(o.Colors))
		for i, c := range o.Colors {
			out.Colors[i] = e.Scale.fromColor(c)
		}
	default:
		return nil, fmt.Errorf("encode: unsupported op %T", op)
	}
	return json.Marshal(out)
}

// Greeting is sent once every time a connection opens.
func Greeting(client, id string) []byte {
	data, _ := json.Marshal(ClientMessage{Type: MsgHello, Client: client, ID: id})
	return data
}

// ResyncRequest asks the server to restart the stream with a full frame at seq 1.
func ResyncRequest() []byte {
	data, _ := json.Marshal(ClientMessage{Type: MsgResync})
	return data
}
