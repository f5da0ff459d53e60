package debug

import (
	"strings"
	"testing"
	"time"
)

func newLog() Model {
	m := New()
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return at }
	return m
}

func TestAddRecordsEntry(t *testing.T) {
	m := newLog()
	m.Addf(KindGap, "seq %d missing", 3)
	if len(m.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(m.Entries))
	}
	e := m.Entries[0]
	if e.Kind != KindGap || e.Message != "seq 3 missing" || e.At.Hour() != 12 {
		t.Errorf("entry = %+v", e)
	}
}

func TestRetainsNewestAndCountsAll(t *testing.T) {
	m := newLog()
	for i := 0; i < capacity+50; i++ {
		m.Addf(KindSeq, "applied %d", i)
	}
	if len(m.Entries) != capacity {
		t.Fatalf("len(Entries) = %d, want %d", len(m.Entries), capacity)
	}
	if m.Entries[0].Message != "applied 50" {
		t.Errorf("oldest kept = %q, want %q", m.Entries[0].Message, "applied 50")
	}
	if m.Count(KindSeq) != capacity+50 {
		t.Errorf("Count(seq) = %d, want %d", m.Count(KindSeq), capacity+50)
	}
}

func TestScroll(t *testing.T) {
	tests := []struct {
		name   string
		moves  []int
		offset int
	}{
		{"clamped to oldest", []int{100}, 4},
		{"clamped to newest", []int{2, -10}, 0},
		{"steps", []int{1, 1, -1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newLog()
			for i := 0; i < 5; i++ {
				m.Add(KindConn, "msg")
			}
			for _, n := range tt.moves {
				m.Scroll(n)
			}
			if m.Offset != tt.offset {
				t.Errorf("Offset = %d, want %d", m.Offset, tt.offset)
			}
		})
	}

	m := newLog()
	m.Add(KindConn, "a")
	m.Add(KindConn, "b")
	m.Scroll(1)
	m.Add(KindErr, "c")
	if m.Offset != 0 {
		t.Error("a new entry should jump back to the newest line")
	}
}

func TestWindow(t *testing.T) {
	m := newLog()
	for i := 0; i < 10; i++ {
		m.Add(KindSeq, "x")
	}
	if s, e := m.window(4); s != 6 || e != 10 {
		t.Errorf("window(4) = %d,%d want 6,10", s, e)
	}
	m.Scroll(8)
	if s, e := m.window(4); s != 0 || e != 2 {
		t.Errorf("scrolled window(4) = %d,%d want 0,2", s, e)
	}
}

func TestView(t *testing.T) {
	m := newLog()
	if v := m.View(80, 20); !strings.Contains(v, "No events yet") {
		t.Error("empty log should say so")
	}

	m.Add(KindConn, "open gen=1")
	m.Add(KindErr, "malformed message")
	m.Add(KindErr, strings.Repeat("long ", 40))
	v := m.View(80, 20)
	for _, want := range []string{"open gen=1", "malformed message", "12:00:00.000", "err 2", "ws 1", "…"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
