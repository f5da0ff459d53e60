package server

import (
	"math/rand"

	"github.com/pixelstream/viewer/internal/frame"
	"github.com/pixelstream/viewer/internal/protocol"
)

// Stream generates the sequenced ops sent to one viewer: a full frame at
// seq 1, then one repainted row and a sparkle pixel per tick. Every
// resizeEvery ticks the frame toggles between its base size and half of it.
type Stream struct {
	baseW, baseH int
	w, h         int
	runLength    int
	resizeEvery  int
	rng          *rand.Rand

	seq  uint64
	tick int
}

// NewStream creates a generator for a w×h frame.
func NewStream(w, h, runLength, resizeEvery int, rng *rand.Rand) *Stream {
	if runLength <= 0 {
		runLength = w
	}
	return &Stream{
		baseW: w, baseH: h,
		w: w, h: h,
		runLength:   runLength,
		resizeEvery: resizeEvery,
		rng:         rng,
	}
}

// Seq returns the last sequence number handed out.
func (s *Stream) Seq() uint64 { return s.seq }

// Size returns the current frame size.
func (s *Stream) Size() (w, h int) { return s.w, s.h }

func (s *Stream) next() uint64 {
	s.seq++
	return s.seq
}

// Start restarts numbering and returns a full frame at seq 1.
func (s *Stream) Start() []protocol.Op {
	s.seq = 0
	colors := make([]frame.Color, 0, s.w*s.h)
	for y := 0; y < s.h; y++ {
		colors = append(colors, patternRow(y, 0, s.w, s.w, s.h, s.tick)...)
	}
	return []protocol.Op{protocol.FullFrame{Seq: s.next(), W: s.w, H: s.h, Colors: colors}}
}

// Next advances one tick.
func (s *Stream) Next() []protocol.Op {
	s.tick++
	var ops []protocol.Op

	if s.resizeEvery > 0 && s.tick%s.resizeEvery == 0 {
		if s.w == s.baseW && s.h == s.baseH {
			s.w, s.h = max(1, s.baseW/2), max(1, s.baseH/2)
		} else {
			s.w, s.h = s.baseW, s.baseH
		}
		ops = append(ops, protocol.Resize{Seq: s.next(), W: s.w, H: s.h})
	}

	y := s.tick % s.h
	for x0 := 0; x0 < s.w; x0 += s.runLength {
		n := min(s.runLength, s.w-x0)
		ops = append(ops, protocol.SetRun{
			Seq:    s.next(),
			Y:      y,
			X0:     x0,
			Colors: patternRow(y, x0, n, s.w, s.h, s.tick),
		})
	}

	ops = append(ops, protocol.SetPixel{
		Seq:   s.next(),
		X:     s.rng.Intn(s.w),
		Y:     s.rng.Intn(s.h),
		Color: frame.Color{R: 1, G: 1, B: 1},
	})
	return ops
}
