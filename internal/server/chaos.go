package server

import (
	"math/rand"

	"github.com/pixelstream/viewer/internal/config"
	"github.com/pixelstream/viewer/internal/protocol"
)

// Chaos perturbs an outgoing op stream so viewers see reordering,
// duplicates and gaps.
type Chaos struct {
	cfg  config.ChaosConfig
	rng  *rand.Rand
	held protocol.Op
	note func(action string)
}

// NewChaos creates a perturber. note, if non-nil, is called with "drop",
// "duplicate" or "reorder" each time one is applied.
func NewChaos(cfg config.ChaosConfig, rng *rand.Rand, note func(string)) *Chaos {
	return &Chaos{cfg: cfg, rng: rng, note: note}
}

// Enabled reports whether any perturbation is configured.
func (c *Chaos) Enabled() bool {
	return c.cfg.Drop > 0 || c.cfg.Duplicate > 0 || c.cfg.Reorder > 0
}

func (c *Chaos) hit(p float64) bool {
	return p > 0 && c.rng.Float64() < p
}

func (c *Chaos) record(action string) {
	if c.note != nil {
		c.note(action)
	}
}

// Apply returns ops after perturbation. A reordered op is held back and
// sent right after the next op, possibly in a later call.
func (c *Chaos) Apply(ops []protocol.Op) []protocol.Op {
	if !c.Enabled() {
		return ops
	}
	out := make([]protocol.Op, 0, len(ops)+1)
	for _, op := range ops {
		if c.hit(c.cfg.Drop) {
			c.record("drop")
			continue
		}
		if c.held == nil && c.hit(c.cfg.Reorder) {
			c.held = op
			c.record("reorder")
			continue
		}
		out = append(out, op)
		if c.hit(c.cfg.Duplicate) {
			out = append(out, op)
			c.record("duplicate")
		}
		if c.held != nil {
			out = append(out, c.held)
			c.held = nil
		}
	}
	return out
}

// Reset forgets any held op. Called when the stream restarts.
func (c *Chaos) Reset() {
	c.held = nil
}
