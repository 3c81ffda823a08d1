package dropper

import (
	"math/rand"
)

// Decider makes one drop decision per packet.
type Decider interface {
	Drop() bool
}

// Bernoulli implements a simple u<p drop decision.
type Bernoulli struct {
	p   float64
	rng *rand.Rand
}

func New(p float64, rng *rand.Rand) *Bernoulli { return &Bernoulli{p: p, rng: rng} }

func (b *Bernoulli) Drop() bool {
	if b.p <= 0 {
		return false
	}
	if b.p >= 1 {
		return true
	}
	return b.rng.Float64() < b.p
}

// Gilbert is a two-state burst loss model. In the bad state every packet is
// lost; the chain leaves it with probability 1/burst per packet and the
// long-run loss rate equals p.
type Gilbert struct {
	toBad, toGood float64
	bad           bool
	rng           *rand.Rand
}

// NewGilbert returns a burst model with mean loss p and mean burst length
// burst packets. burst <= 1 degrades to independent losses.
func NewGilbert(p, burst float64, rng *rand.Rand) Decider {
	if burst <= 1 || p <= 0 || p >= 1 {
		return New(p, rng)
	}
	toGood := 1 / burst
	return &Gilbert{toBad: p * toGood / (1 - p), toGood: toGood, rng: rng}
}

func (g *Gilbert) Drop() bool {
	if g.bad {
		if g.rng.Float64() < g.toGood {
			g.bad = false
		}
	} else if g.rng.Float64() < g.toBad {
		g.bad = true
	}
	return g.bad
}

// Fate combines a loss decision with duplication.
type Fate struct {
	loss Decider
	dup  *Bernoulli
}

func NewFate(loss Decider, dupRate float64, rng *rand.Rand) *Fate {
	return &Fate{loss: loss, dup: New(dupRate, rng)}
}

// Copies returns how many copies of the next packet reach the receiver.
func (f *Fate) Copies() int {
	if f.loss.Drop() {
		return 0
	}
	if f.dup.Drop() {
		return 2
	}
	return 1
}
