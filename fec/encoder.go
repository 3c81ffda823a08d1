package fec

import (
	"math"
	"math/rand"
	randv2 "math/rand/v2"
)

// EncodedPacket is one fountain-coded packet. It is immutable after creation;
// holders must not modify Neighbors or Payload.
type EncodedPacket struct {
	ID        uint64
	Neighbors []SymbolID
	Payload   []byte
	EmitTime  float64
	// Seed and Focus let a receiver regenerate Neighbors from ID alone.
	Seed  int64
	Focus int
}

// Degree returns the number of symbols XORed into the packet.
func (p *EncodedPacket) Degree() int { return len(p.Neighbors) }

// EncoderConfig holds the virtual clock and seeding of an Encoder.
type EncoderConfig struct {
	Seed             int64   `yaml:"seed"`
	PacketsPerSecond float64 `yaml:"packets_per_second"`
	FramesPerSecond  float64 `yaml:"frames_per_second"`
	// PriorityFirst emits the first N symbols as systematic degree-1 packets
	// before any coded packet.
	PriorityFirst int `yaml:"priority_first"`
	// MaxPackets stops the encoder after that many packets. 0 means unbounded.
	MaxPackets uint64 `yaml:"max_packets,omitempty"`
}

// DefaultEncoderConfig returns a clock of twenty packets per frame.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{Seed: 1, PacketsPerSecond: 500, FramesPerSecond: 25}
}

func (c *EncoderConfig) validate(layout *Layout) error {
	if !(c.PacketsPerSecond > 0) || math.IsInf(c.PacketsPerSecond, 0) {
		return &ConfigError{Field: "packets_per_second", Value: c.PacketsPerSecond, Reason: "must be finite and > 0"}
	}
	if !(c.FramesPerSecond > 0) || math.IsInf(c.FramesPerSecond, 0) {
		return &ConfigError{Field: "frames_per_second", Value: c.FramesPerSecond, Reason: "must be finite and > 0"}
	}
	if c.PriorityFirst < 0 || c.PriorityFirst > layout.NumSymbols() {
		return &ConfigError{Field: "priority_first", Value: float64(c.PriorityFirst), Reason: "must be in [0, number of symbols]"}
	}
	return nil
}

// pcgSource adapts a PCG generator to math/rand.Source so per-packet sources
// are cheap to seed.
type pcgSource struct{ pcg *randv2.PCG }

func (s pcgSource) Int63() int64    { return int64(s.pcg.Uint64() >> 1) }
func (s pcgSource) Seed(seed int64) { s.pcg.Seed(uint64(seed), 0) }

// PacketRand returns the random source that drives packet id under seed.
func PacketRand(seed int64, id uint64) *rand.Rand {
	return rand.New(pcgSource{randv2.NewPCG(uint64(seed), id)})
}

// Regenerator recomputes the timing and neighbors of any packet id. Encoder
// and decoder sides build identical regenerators from the shared layout and
// configuration.
type Regenerator struct {
	sampler *DegreeSampler
	cfg     EncoderConfig
}

// NewRegenerator validates cfg against the sampler's layout.
func NewRegenerator(sampler *DegreeSampler, cfg EncoderConfig) (*Regenerator, error) {
	if err := cfg.validate(sampler.layout); err != nil {
		return nil, err
	}
	return &Regenerator{sampler: sampler, cfg: cfg}, nil
}

// Seed is the encoder seed the neighbor sets are drawn under.
func (r *Regenerator) Seed() int64 { return r.cfg.Seed }

// EmitTime is the virtual emission time of packet id in seconds.
func (r *Regenerator) EmitTime(id uint64) float64 {
	return float64(id) / r.cfg.PacketsPerSecond
}

// Focus is the frame packet id is biased toward.
func (r *Regenerator) Focus(id uint64) int {
	f := math.Floor(float64(id)*r.cfg.FramesPerSecond/r.cfg.PacketsPerSecond + 1e-9)
	if f > float64(r.sampler.layout.NumFrames()) {
		f = float64(r.sampler.layout.NumFrames())
	}
	return r.sampler.layout.ClampFrame(int(f))
}

// Neighbors returns the neighbor set of packet id.
func (r *Regenerator) Neighbors(id uint64) []SymbolID {
	if id < uint64(r.cfg.PriorityFirst) {
		return []SymbolID{SymbolID(id)}
	}
	return r.sampler.Draw(PacketRand(r.cfg.Seed, id), r.Focus(id))
}

// Encoder produces an unbounded, pull-based sequence of packets.
type Encoder struct {
	cat   *FrameCatalog
	regen *Regenerator
	next  uint64
}

// NewEncoder binds a sampler to the catalog it was built for.
func NewEncoder(cat *FrameCatalog, sampler *DegreeSampler, cfg EncoderConfig) (*Encoder, error) {
	if sampler.layout != cat.Layout {
		return nil, &CatalogError{Frame: -1, Reason: "sampler was built for a different layout"}
	}
	regen, err := NewRegenerator(sampler, cfg)
	if err != nil {
		return nil, err
	}
	return &Encoder{cat: cat, regen: regen}, nil
}

// Layout returns the catalog layout.
func (e *Encoder) Layout() *Layout { return e.cat.Layout }

// Emitted returns how many packets Next has produced.
func (e *Encoder) Emitted() uint64 { return e.next }

// Clock returns the virtual time of the next packet.
func (e *Encoder) Clock() float64 { return e.regen.EmitTime(e.next) }

// Next produces the next packet. It returns false only once MaxPackets is
// reached.
func (e *Encoder) Next() (*EncodedPacket, bool) {
	if max := e.regen.cfg.MaxPackets; max > 0 && e.next >= max {
		return nil, false
	}
	id := e.next
	e.next++
	neighbors := e.regen.Neighbors(id)
	payload := make([]byte, e.cat.symbolSize)
	for _, s := range neighbors {
		xorBytes(payload, e.cat.Payload(s))
	}
	return &EncodedPacket{
		ID:        id,
		Neighbors: neighbors,
		Payload:   payload,
		EmitTime:  e.regen.EmitTime(id),
		Seed:      e.regen.cfg.Seed,
		Focus:     e.regen.Focus(id),
	}, true
}

// Batch returns ceil(NumSymbols*(1+overhead)) packets, fewer if MaxPackets is
// hit first.
func (e *Encoder) Batch(overhead float64) []*EncodedPacket {
	if !(overhead >= 0) || math.IsInf(overhead, 0) {
		overhead = 0
	}
	n := int(math.Ceil(float64(e.cat.NumSymbols()) * (1 + overhead)))
	out := make([]*EncodedPacket, 0, n)
	for i := 0; i < n; i++ {
		p, ok := e.Next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}
