// Package reassembly applies sequenced update ops to a frame buffer strictly
// in order, buffering ops that arrive ahead of a gap.
package reassembly

import (
	"errors"
	"fmt"
	"time"

	"github.com/pixelstream/viewer/internal/frame"
	"github.com/pixelstream/viewer/internal/protocol"
)

var (
	// ErrGapTimeout means the earliest gap was not filled in time.
	ErrGapTimeout = errors.New("reassembly: gap timeout")
	// ErrGapUnrecoverable means the pending buffer overflowed.
	ErrGapUnrecoverable = errors.New("reassembly: gap unrecoverable")
)

const (
	DefaultCapacity   = 1024
	DefaultGapTimeout = 2 * time.Second
)

// Result describes what Push did with an op.
type Result struct {
	// Applied lists the sequence numbers applied to the buffer, in order.
	Applied []uint64
	// Buffered is true when the op was parked behind a gap.
	Buffered bool
	// Discarded is true for duplicates and stale ops.
	Discarded bool
	// Rejected holds buffer errors for ops that were consumed without
	// effect (for example out-of-bounds pixels).
	Rejected []error
}

// Queue enforces at-most-once, in-order application. It is not safe for
// concurrent use.
type Queue struct {
	buf        *frame.Buffer
	capacity   int
	gapTimeout time.Duration

	lastApplied uint64
	pending     map[uint64]protocol.Op
	gapSince    time.Time
	gapReported bool
	needFull    bool
	dropStale   bool
}

// New creates a queue applying to buf. Non-positive capacity or timeout
// select the defaults.
func New(buf *frame.Buffer, capacity int, gapTimeout time.Duration) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if gapTimeout <= 0 {
		gapTimeout = DefaultGapTimeout
	}
	return &Queue{
		buf:        buf,
		capacity:   capacity,
		gapTimeout: gapTimeout,
		pending:    make(map[uint64]protocol.Op),
	}
}

// LastApplied returns the highest sequence number applied so far.
func (q *Queue) LastApplied() uint64 { return q.lastApplied }

// Pending returns the number of buffered ops.
func (q *Queue) Pending() int { return len(q.pending) }

// Capacity returns the pending limit.
func (q *Queue) Capacity() int { return q.capacity }

// AwaitingFull reports whether the queue is waiting for a full frame at seq 1.
func (q *Queue) AwaitingFull() bool { return q.needFull }

// GapDeadline returns when the current gap times out. ok is false when
// there is no gap or it was already reported. While a resync is dropping
// old ops the missing full frame counts as the gap.
func (q *Queue) GapDeadline() (deadline time.Time, ok bool) {
	if q.dropStale {
		if q.gapSince.IsZero() || q.gapReported {
			return time.Time{}, false
		}
		return q.gapSince.Add(q.gapTimeout), true
	}
	if len(q.pending) == 0 || q.gapReported {
		return time.Time{}, false
	}
	return q.gapSince.Add(q.gapTimeout), true
}

// Reset forgets all sequencing state. The next op applied must be a full
// frame at seq 1; later ops that arrive first are buffered behind it. Use it
// for a fresh connection, where nothing from the old numbering can arrive.
func (q *Queue) Reset() {
	q.lastApplied = 0
	clear(q.pending)
	q.gapSince = time.Time{}
	q.gapReported = false
	q.needFull = true
	q.dropStale = false
}

// Resync is Reset for a live connection. Ops from the old numbering may
// still be in flight and are indistinguishable by seq, so everything is
// dropped until the full frame at seq 1 arrives.
func (q *Queue) Resync() {
	q.Reset()
	q.dropStale = true
}

// Push hands one op to the queue.
func (q *Queue) Push(op protocol.Op, now time.Time) (Result, error) {
	var res Result
	seq := op.Sequence()

	if q.dropStale && (seq != 1 || !protocol.IsKeyframe(op)) {
		if q.gapSince.IsZero() {
			q.gapSince = now
		}
		res.Discarded = true
		return res, nil
	}

	switch {
	case seq <= q.lastApplied:
		res.Discarded = true
		return res, nil

	case seq == q.lastApplied+1:
		if q.needFull && !protocol.IsKeyframe(op) {
			// Stale seq 1 from before the reset.
			res.Discarded = true
			return res, nil
		}
		q.needFull = false
		q.dropStale = false
		q.apply(op, &res)
		q.drain(&res)
		if len(q.pending) > 0 {
			// The gap moved; its clock starts over.
			q.gapSince = now
			q.gapReported = false
		}
		return res, nil

	default:
		if _, dup := q.pending[seq]; !dup && len(q.pending) >= q.capacity {
			n := len(q.pending)
			clear(q.pending)
			q.gapReported = false
			return res, fmt.Errorf("%w: %d ops pending behind seq %d", ErrGapUnrecoverable, n, q.lastApplied+1)
		}
		if len(q.pending) == 0 {
			q.gapSince = now
			q.gapReported = false
		}
		q.pending[seq] = op
		res.Buffered = true
		return res, nil
	}
}

// CheckGap returns ErrGapTimeout once per gap when the earliest missing op
// has been outstanding for at least the gap timeout.
func (q *Queue) CheckGap(now time.Time) error {
	deadline, ok := q.GapDeadline()
	if !ok || now.Before(deadline) {
		return nil
	}
	q.gapReported = true
	return fmt.Errorf("%w: seq %d missing for %v", ErrGapTimeout, q.lastApplied+1, now.Sub(q.gapSince))
}

func (q *Queue) drain(res *Result) {
	for {
		next, ok := q.pending[q.lastApplied+1]
		if !ok {
			return
		}
		delete(q.pending, q.lastApplied+1)
		q.apply(next, res)
	}
}

func (q *Queue) apply(op protocol.Op, res *Result) {
	seq := op.Sequence()
	if err := op.Apply(q.buf); err != nil {
		res.Rejected = append(res.Rejected, fmt.Errorf("seq %d (%s): %w", seq, op.Kind(), err))
	}
	q.lastApplied = seq
	q.buf.SetSeq(seq)
	res.Applied = append(res.Applied, seq)
}
