package session

import (
	"errors"
	"testing"
	"time"
)

func testOptions(maxAttempts int) Options {
	return Options{
		Backoff:     Backoff{Base: 100 * time.Millisecond, Max: time.Second},
		MaxAttempts: maxAttempts,
	}
}

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, len(effects))
	for i, e := range effects {
		out[i] = e.Kind
	}
	return out
}

func hasEffect(effects []Effect, k EffectKind) bool {
	for _, e := range effects {
		if e.Kind == k {
			return true
		}
	}
	return false
}

func find(effects []Effect, k EffectKind) Effect {
	for _, e := range effects {
		if e.Kind == k {
			return e
		}
	}
	return Effect{Kind: -1}
}

func TestStartDialsOnce(t *testing.T) {
	m := NewMachine(testOptions(3))
	if m.State() != Closed {
		t.Fatalf("initial state = %v, want closed", m.State())
	}
	effects := m.Start()
	if len(effects) != 1 || effects[0].Kind != EffectDial || effects[0].Gen != 1 {
		t.Fatalf("Start() = %+v, want one dial for gen 1", effects)
	}
	if m.State() != Connecting {
		t.Errorf("state = %v, want connecting", m.State())
	}
	if again := m.Start(); again != nil {
		t.Errorf("second Start() = %+v, want nil", again)
	}
}

func TestFirstOpenDoesNotResync(t *testing.T) {
	m := NewMachine(testOptions(3))
	m.Start()
	effects := m.Connected(1)

	if m.State() != Open {
		t.Fatalf("state = %v, want open", m.State())
	}
	if !hasEffect(effects, EffectStartRead) || !hasEffect(effects, EffectSendGreeting) {
		t.Errorf("Connected() = %v, want read + greeting", kinds(effects))
	}
	if hasEffect(effects, EffectResetQueue) || hasEffect(effects, EffectRequestFull) {
		t.Errorf("first open should not reset: %v", kinds(effects))
	}
}

func TestReconnectResetsQueueAndRequestsFull(t *testing.T) {
	m := NewMachine(testOptions(3))
	m.Start()
	m.Connected(1)

	effects := m.Failed(1, ErrTransport)
	if m.State() != Reconnecting {
		t.Fatalf("state = %v, want reconnecting", m.State())
	}
	redial := find(effects, EffectScheduleRedial)
	if redial.Delay != 100*time.Millisecond || redial.Gen != 1 {
		t.Fatalf("redial effect = %+v", redial)
	}
	if !hasEffect(effects, EffectCloseTransport) {
		t.Error("dropped connection not closed")
	}

	dial := m.RedialDue(1)
	if len(dial) != 1 || dial[0].Kind != EffectDial || dial[0].Gen != 2 {
		t.Fatalf("RedialDue() = %+v, want dial gen 2", dial)
	}

	effects = m.Connected(2)
	want := []EffectKind{EffectStartRead, EffectSendGreeting, EffectResetQueue, EffectRequestFull}
	got := kinds(effects)
	if len(got) != len(want) {
		t.Fatalf("Connected() after reconnect = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Connected() after reconnect = %v, want %v", got, want)
		}
	}
	if find(effects, EffectResetQueue).InStream {
		t.Error("reconnect reset should not be marked in-stream")
	}
	if m.Status().Attempt != 0 {
		t.Errorf("attempt = %d after open, want 0", m.Status().Attempt)
	}
}

func TestBackoffDoublesAndGivesUp(t *testing.T) {
	m := NewMachine(testOptions(3))
	m.Start()

	var delays []time.Duration
	for {
		gen := m.Gen()
		effects := m.Failed(gen, errors.New("refused"))
		if hasEffect(effects, EffectFatal) {
			fatal := find(effects, EffectFatal)
			if !errors.Is(fatal.Err, ErrFatal) {
				t.Errorf("fatal err = %v, want ErrFatal", fatal.Err)
			}
			break
		}
		delays = append(delays, find(effects, EffectScheduleRedial).Delay)
		m.RedialDue(gen)
		if len(delays) > 10 {
			t.Fatal("never gave up")
		}
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
	if m.State() != Closed || !errors.Is(m.Status().Err, ErrFatal) {
		t.Errorf("status = %+v, want closed with ErrFatal", m.Status())
	}
	// No further retries once closed.
	if effects := m.RedialDue(m.Gen()); effects != nil {
		t.Errorf("RedialDue after fatal = %+v", effects)
	}
}

func TestUnlimitedAttempts(t *testing.T) {
	m := NewMachine(testOptions(0))
	m.Start()
	for i := 0; i < 50; i++ {
		gen := m.Gen()
		if hasEffect(m.Failed(gen, ErrTransport), EffectFatal) {
			t.Fatalf("gave up after %d attempts with MaxAttempts=0", i+1)
		}
		m.RedialDue(gen)
	}
}

func TestStaleGenerationsIgnored(t *testing.T) {
	m := NewMachine(testOptions(3))
	m.Start()
	m.Connected(1)
	m.Failed(1, ErrTransport)
	m.RedialDue(1)
	m.Connected(2)

	if m.Message(1) {
		t.Error("message from gen 1 accepted on gen 2")
	}
	if !m.Message(2) {
		t.Error("message from live gen rejected")
	}
	if effects := m.Failed(1, ErrTransport); effects != nil {
		t.Errorf("stale failure produced effects %+v", effects)
	}
	if effects := m.RedialDue(1); effects != nil {
		t.Errorf("stale redial produced effects %+v", effects)
	}
	if m.State() != Open {
		t.Errorf("state = %v, want open", m.State())
	}
}

func TestShutdownCancelsTimers(t *testing.T) {
	m := NewMachine(testOptions(3))
	m.Start()
	m.Connected(1)
	m.Failed(1, ErrTransport)

	effects := m.Shutdown()
	if m.State() != Closed || !hasEffect(effects, EffectCloseTransport) {
		t.Fatalf("Shutdown() = %+v in state %v", effects, m.State())
	}
	if effects := m.RedialDue(1); effects != nil {
		t.Errorf("redial timer survived shutdown: %+v", effects)
	}
	if effects := m.Connected(1); !hasEffect(effects, EffectCloseTransport) || m.State() != Closed {
		t.Errorf("late connect after shutdown = %+v, state %v", effects, m.State())
	}
	if m.Shutdown() != nil {
		t.Error("second Shutdown() should be a no-op")
	}
}

func TestGapTriggersResyncOnlyWhenOpen(t *testing.T) {
	m := NewMachine(testOptions(3))
	m.Start()
	if effects := m.Gap(errors.New("gap")); effects != nil {
		t.Errorf("Gap() while connecting = %+v", effects)
	}
	m.Connected(1)
	effects := m.Gap(errors.New("gap"))
	if !hasEffect(effects, EffectResetQueue) || !hasEffect(effects, EffectRequestFull) {
		t.Errorf("Gap() = %v, want reset + resync", kinds(effects))
	}
	if !find(effects, EffectResetQueue).InStream {
		t.Error("gap reset on a live connection should be marked in-stream")
	}
}

func TestSubscribersSeeLifecycle(t *testing.T) {
	m := NewMachine(testOptions(1))
	var got []EventKind
	m.Subscribe(func(ev Event) { got = append(got, ev.Kind) })

	m.Start()
	m.Connected(1)
	m.Message(1)
	m.Gap(errors.New("gap"))
	m.Failed(1, ErrTransport)
	m.RedialDue(1)
	m.Failed(2, ErrTransport)

	want := []EventKind{EventConnecting, EventOpen, EventMessage, EventGap, EventConnecting, EventConnecting, EventClosed}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second}
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{40, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.n); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestBackoffJitter(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 4 * time.Second, Jitter: 0.5, Rand: func() float64 { return 0.5 }}
	if got := b.Delay(3); got != 5*time.Second {
		t.Errorf("Delay(3) = %v, want 5s (4s capped + 25%%)", got)
	}

	b.Rand = nil
	for i := 0; i < 100; i++ {
		d := b.Delay(1)
		if d < time.Second || d > 1500*time.Millisecond {
			t.Fatalf("Delay(1) = %v outside [1s, 1.5s]", d)
		}
	}
}
