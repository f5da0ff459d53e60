// Package protocol defines the pixel stream wire format: one JSON object per
// websocket message, each describing a single sequenced update op. Types here
// are shared by the viewer and the frame server.
package protocol

import (
	"errors"

	"github.com/pixelstream/viewer/internal/frame"
)

// MessageType identifies the kind of message.
type MessageType string

const (
	MsgResize MessageType = "resize"
	MsgPixel  MessageType = "pixel"
	MsgRun    MessageType = "run"
	MsgFull   MessageType = "full"

	// Client to server.
	MsgHello  MessageType = "hello"
	MsgResync MessageType = "resync"
)

const (
	// MaxDimension bounds w and h of resize and full ops.
	MaxDimension = 1 << 14
	// MaxPixels bounds w*h so a single message cannot demand an absurd
	// allocation.
	MaxPixels = 1 << 24
)

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("protocol: malformed message")

// Op is a decoded update op. Every op carries the sequence number it applies at.
type Op interface {
	Sequence() uint64
	Kind() MessageType
	// Apply mutates b. A failing Apply leaves b unchanged.
	Apply(b *frame.Buffer) error
}

// Resize changes the frame dimensions.
type Resize struct {
	Seq  uint64
	W, H int
}

// SetPixel writes one pixel.
type SetPixel struct {
	Seq   uint64
	X, Y  int
	Color frame.Color
}

// SetRun writes consecutive pixels of row Y starting at X0.
type SetRun struct {
	Seq    uint64
	Y, X0  int
	Colors []frame.Color
}

// FullFrame replaces the frame with W×H row-major pixels.
type FullFrame struct {
	Seq    uint64
	W, H   int
	Colors []frame.Color
}

func (o Resize) Sequence() uint64    { return o.Seq }
func (o SetPixel) Sequence() uint64  { return o.Seq }
func (o SetRun) Sequence() uint64    { return o.Seq }
func (o FullFrame) Sequence() uint64 { return o.Seq }

func (Resize) Kind() MessageType    { return MsgResize }
func (SetPixel) Kind() MessageType  { return MsgPixel }
func (SetRun) Kind() MessageType    { return MsgRun }
func (FullFrame) Kind() MessageType { return MsgFull }

func (o Resize) Apply(b *frame.Buffer) error    { return b.Resize(o.W, o.H) }
func (o SetPixel) Apply(b *frame.Buffer) error  { return b.SetPixel(o.X, o.Y, o.Color) }
func (o SetRun) Apply(b *frame.Buffer) error    { return b.SetRun(o.Y, o.X0, o.Colors) }
func (o FullFrame) Apply(b *frame.Buffer) error { return b.Replace(o.W, o.H, o.Colors) }

// IsKeyframe reports whether op fully defines the frame on its own.
func IsKeyframe(op Op) bool {
	_, ok := op.(FullFrame)
	return ok
}

// ClientMessage is a message sent by the viewer to the server.
type ClientMessage struct {
	Type   MessageType `json:"type"`
	Client string      `json:"client,omitempty"`
	ID     string      `json:"id,omitempty"`
}
