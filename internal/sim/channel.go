package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/dropper"
)

// ChannelScenario describes the impairments between encoder and decoder.
type ChannelScenario struct {
	LossRate float64 `yaml:"loss_rate"`
	// BurstLen is the mean loss burst length in packets; <= 1 means
	// independent losses.
	BurstLen float64 `yaml:"burst_len,omitempty"`
	DupRate  float64 `yaml:"dup_rate,omitempty"`
	// ReorderWindow holds up to that many packets and releases a random one
	// when full. 0 or 1 keeps the order.
	ReorderWindow int `yaml:"reorder_window,omitempty"`
	// Shuffle makes Apply return a uniformly random permutation, the way
	// reads come off a sequencer.
	Shuffle bool  `yaml:"shuffle,omitempty"`
	Seed    int64 `yaml:"seed"`
}

func (s *ChannelScenario) validate() error {
	if !(s.LossRate >= 0 && s.LossRate < 1) {
		return fmt.Errorf("sim: loss rate %g not in [0,1)", s.LossRate)
	}
	if !(s.DupRate >= 0 && s.DupRate <= 1) {
		return fmt.Errorf("sim: dup rate %g not in [0,1]", s.DupRate)
	}
	if s.ReorderWindow < 0 {
		return fmt.Errorf("sim: negative reorder window")
	}
	return nil
}

// ChannelStats counts what the channel did.
type ChannelStats struct {
	Sent       int64
	Dropped    int64
	Duplicated int64
	Delivered  int64
}

// Channel is a lossy, duplicating, reordering packet channel. Packets are
// immutable, so a duplicate is the same pointer delivered twice.
type Channel struct {
	sc   ChannelScenario
	rng  *rand.Rand
	fate *dropper.Fate

	sent       atomic.Int64
	dropped    atomic.Int64
	duplicated atomic.Int64
	delivered  atomic.Int64
}

func NewChannel(sc ChannelScenario) (*Channel, error) {
	if err := sc.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(sc.Seed))
	return &Channel{
		sc:   sc,
		rng:  rng,
		fate: dropper.NewFate(dropper.NewGilbert(sc.LossRate, sc.BurstLen, rng), sc.DupRate, rng),
	}, nil
}

func (c *Channel) Scenario() ChannelScenario { return c.sc }

func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Sent:       c.sent.Load(),
		Dropped:    c.dropped.Load(),
		Duplicated: c.duplicated.Load(),
		Delivered:  c.delivered.Load(),
	}
}

// admit returns the copies of p that survive loss and duplication.
func (c *Channel) admit(p *fec.EncodedPacket, dst []*fec.EncodedPacket) []*fec.EncodedPacket {
	c.sent.Add(1)
	n := c.fate.Copies()
	switch n {
	case 0:
		c.dropped.Add(1)
	case 2:
		c.duplicated.Add(1)
	}
	for i := 0; i < n; i++ {
		dst = append(dst, p)
	}
	return dst
}

// Apply runs a finite batch through the channel.
func (c *Channel) Apply(pkts []*fec.EncodedPacket) []*fec.EncodedPacket {
	out := make([]*fec.EncodedPacket, 0, len(pkts))
	w := newWindow(c.sc.ReorderWindow, c.rng)
	var adm []*fec.EncodedPacket
	for _, p := range pkts {
		adm = c.admit(p, adm[:0])
		for _, q := range adm {
			if r := w.push(q); r != nil {
				out = append(out, r)
			}
		}
	}
	out = append(out, w.flush()...)
	if c.sc.Shuffle {
		c.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	c.delivered.Add(int64(len(out)))
	return out
}

// Run forwards packets from in to out until in is closed or ctx is done. It
// closes out before returning. Shuffle is ignored on a stream.
func (c *Channel) Run(ctx context.Context, in <-chan *fec.EncodedPacket, out chan<- *fec.EncodedPacket) error {
	defer close(out)
	w := newWindow(c.sc.ReorderWindow, c.rng)
	send := func(p *fec.EncodedPacket) error {
		select {
		case out <- p:
			c.delivered.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var adm []*fec.EncodedPacket
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-in:
			if !ok {
				for _, r := range w.flush() {
					if err := send(r); err != nil {
						return err
					}
				}
				return nil
			}
			adm = c.admit(p, adm[:0])
			for _, q := range adm {
				if r := w.push(q); r != nil {
					if err := send(r); err != nil {
						return err
					}
				}
			}
		}
	}
}

// window is a bounded reorder buffer.
type window struct {
	size int
	buf  []*fec.EncodedPacket
	rng  *rand.Rand
}

func newWindow(size int, rng *rand.Rand) *window {
	return &window{size: size, rng: rng}
}

// push adds p and returns a packet to release, or nil while the window fills.
func (w *window) push(p *fec.EncodedPacket) *fec.EncodedPacket {
	if w.size <= 1 {
		return p
	}
	w.buf = append(w.buf, p)
	if len(w.buf) < w.size {
		return nil
	}
	i := w.rng.Intn(len(w.buf))
	r := w.buf[i]
	last := len(w.buf) - 1
	w.buf[i] = w.buf[last]
	w.buf = w.buf[:last]
	return r
}

func (w *window) flush() []*fec.EncodedPacket {
	out := w.buf
	w.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	w.buf = nil
	return out
}
