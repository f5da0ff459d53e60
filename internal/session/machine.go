// Package session owns the viewer's connection lifecycle. Machine is a pure
// state machine: callers feed it events and carry out the effects it returns,
// so every transition can be exercised without a live socket. Transport is the
// websocket side that produces those events.
package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransport wraps connection failures. They are retried.
	ErrTransport = errors.New("session: transport error")
	// ErrFatal is returned once reconnect attempts are exhausted.
	ErrFatal = errors.New("session: reconnect attempts exhausted")
)

// State is the connection state.
type State int

const (
	Connecting State = iota
	Open
	Reconnecting
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind names lifecycle events delivered to subscribers.
type EventKind string

const (
	EventConnecting EventKind = "connecting"
	EventOpen       EventKind = "open"
	EventMessage    EventKind = "message"
	EventGap        EventKind = "gap"
	EventClosed     EventKind = "closed"
)

// Event is a lifecycle notification.
type Event struct {
	Kind    EventKind
	Gen     uint64
	Attempt int
	Delay   time.Duration
	Err     error
}

// EffectKind is an action the caller must perform.
type EffectKind int

const (
	// EffectDial opens a new connection tagged with Gen.
	EffectDial EffectKind = iota
	// EffectStartRead begins reading from the connection tagged with Gen.
	EffectStartRead
	// EffectSendGreeting sends the hello message.
	EffectSendGreeting
	// EffectResetQueue resets the reassembly queue. InStream is set when
	// the connection stays up and old-numbered ops may still arrive.
	EffectResetQueue
	// EffectRequestFull sends a resync request.
	EffectRequestFull
	// EffectScheduleRedial arms a timer that fires RedialDue(Gen) after Delay.
	EffectScheduleRedial
	// EffectCloseTransport closes the connection tagged with Gen.
	EffectCloseTransport
	// EffectFatal surfaces Err to the embedding application.
	EffectFatal
)

// Effect is one action returned by a transition.
type Effect struct {
	Kind     EffectKind
	Gen      uint64
	Delay    time.Duration
	Err      error
	InStream bool
}

// Status is a read-only view of the machine.
type Status struct {
	State   State
	Gen     uint64
	Attempt int
	Delay   time.Duration
	Err     error
}

// Options configures a Machine.
type Options struct {
	Backoff Backoff
	// MaxAttempts is the number of consecutive reconnect attempts allowed
	// before giving up. Zero retries forever.
	MaxAttempts int
}

// Machine tracks one logical session across reconnects.
type Machine struct {
	opts    Options
	state   State
	started bool
	gen     uint64
	attempt int
	delay   time.Duration
	resumed bool // a connection was lost at least once
	err     error
	subs    []func(Event)
}

// NewMachine creates a machine in the Closed state. Call Start to connect.
func NewMachine(opts Options) *Machine {
	return &Machine{opts: opts, state: Closed}
}

// Subscribe registers fn for every lifecycle event.
func (m *Machine) Subscribe(fn func(Event)) {
	m.subs = append(m.subs, fn)
}

func (m *Machine) emit(ev Event) {
	for _, fn := range m.subs {
		fn(ev)
	}
}

// Status returns the current state.
func (m *Machine) Status() Status {
	return Status{State: m.state, Gen: m.gen, Attempt: m.attempt, Delay: m.delay, Err: m.err}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Gen returns the current generation. Every dial gets a new one.
func (m *Machine) Gen() uint64 { return m.gen }

// Current reports whether gen belongs to the live connection.
func (m *Machine) Current(gen uint64) bool {
	return gen == m.gen && m.state == Open
}

// Start begins the first connection attempt. It is a no-op unless the
// machine has never been started.
func (m *Machine) Start() []Effect {
	if m.started {
		return nil
	}
	m.started = true
	return m.dial()
}

func (m *Machine) dial() []Effect {
	m.gen++
	m.state = Connecting
	m.emit(Event{Kind: EventConnecting, Gen: m.gen, Attempt: m.attempt})
	return []Effect{{Kind: EffectDial, Gen: m.gen}}
}

// Connected reports that the dial tagged gen succeeded.
func (m *Machine) Connected(gen uint64) []Effect {
	if gen != m.gen || m.state != Connecting {
		return []Effect{{Kind: EffectCloseTransport, Gen: gen}}
	}
	m.state = Open
	m.attempt = 0
	m.delay = 0
	m.emit(Event{Kind: EventOpen, Gen: gen})

	effects := []Effect{
		{Kind: EffectStartRead, Gen: gen},
		{Kind: EffectSendGreeting, Gen: gen},
	}
	if m.resumed {
		// No continuity across reconnects.
		effects = append(effects,
			Effect{Kind: EffectResetQueue, Gen: gen},
			Effect{Kind: EffectRequestFull, Gen: gen},
		)
	}
	return effects
}

// Failed reports a dial failure or a dropped connection for gen.
func (m *Machine) Failed(gen uint64, err error) []Effect {
	if gen != m.gen || (m.state != Connecting && m.state != Open) {
		return nil
	}
	m.resumed = true
	effects := []Effect{{Kind: EffectCloseTransport, Gen: gen}}

	if m.opts.MaxAttempts > 0 && m.attempt >= m.opts.MaxAttempts {
		m.state = Closed
		m.err = fmt.Errorf("%w after %d attempts: %v", ErrFatal, m.attempt, err)
		m.gen++
		m.emit(Event{Kind: EventClosed, Gen: gen, Attempt: m.attempt, Err: m.err})
		return append(effects, Effect{Kind: EffectFatal, Gen: gen, Err: m.err})
	}

	m.attempt++
	m.delay = m.opts.Backoff.Delay(m.attempt)
	m.state = Reconnecting
	m.emit(Event{Kind: EventConnecting, Gen: gen, Attempt: m.attempt, Delay: m.delay, Err: err})
	return append(effects, Effect{Kind: EffectScheduleRedial, Gen: gen, Delay: m.delay})
}

// RedialDue reports that the backoff timer armed for gen fired.
func (m *Machine) RedialDue(gen uint64) []Effect {
	if gen != m.gen || m.state != Reconnecting {
		return nil
	}
	return m.dial()
}

// Message records an inbound message and reports whether it belongs to the
// live connection. Messages from superseded generations must be dropped.
func (m *Machine) Message(gen uint64) bool {
	if !m.Current(gen) {
		return false
	}
	m.emit(Event{Kind: EventMessage, Gen: gen})
	return true
}

// Gap reports a reassembly failure; the stream is resynchronized.
func (m *Machine) Gap(err error) []Effect {
	if m.state != Open {
		return nil
	}
	m.emit(Event{Kind: EventGap, Gen: m.gen, Err: err})
	return []Effect{
		{Kind: EffectResetQueue, Gen: m.gen, InStream: true},
		{Kind: EffectRequestFull, Gen: m.gen},
	}
}

// Shutdown closes the session for good. Timers and messages tagged with the
// old generation become stale.
func (m *Machine) Shutdown() []Effect {
	if m.state == Closed {
		return nil
	}
	gen := m.gen
	m.state = Closed
	m.gen++
	m.emit(Event{Kind: EventClosed, Gen: gen})
	return []Effect{{Kind: EffectCloseTransport, Gen: gen}}
}
