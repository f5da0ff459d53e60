package detail

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestViewRows(t *testing.T) {
	v := View(Info{
		URL:          "ws://127.0.0.1:8080/connect",
		ClientID:     "0b6f0d4e",
		State:        "open",
		Gen:          3,
		Width:        64,
		Height:       32,
		Policy:       "preserve",
		Scale:        "unit",
		LastApplied:  120,
		Pending:      4,
		Capacity:     1024,
		GapIn:        1500 * time.Millisecond,
		AwaitingFull: true,
		Resyncs:      2,
	})
	for _, want := range []string{
		"ws://127.0.0.1:8080/connect",
		"64×32 (2048 px)",
		"4 / 1024",
		"in 1.5s",
		"full frame at seq 1",
		"[esc] close",
	} {
		if !strings.Contains(v, want) {
			t.Errorf("detail view missing %q", want)
		}
	}
}

func TestViewOptionalRows(t *testing.T) {
	v := View(Info{State: "connecting", Capacity: 8})
	if strings.Contains(v, "Gap timeout") || strings.Contains(v, "Waiting for") || strings.Contains(v, "Retry") {
		t.Error("quiet connection should omit gap, retry and full-frame rows")
	}
	if !strings.Contains(v, "none yet") {
		t.Error("frame row should say none yet")
	}

	v = View(Info{State: "reconnecting", Attempt: 2, Delay: time.Second, Err: errors.New("refused")})
	if !strings.Contains(v, "attempt 2") || !strings.Contains(v, "Error: refused") {
		t.Error("reconnecting view should show retry and error")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 8, "this is…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
