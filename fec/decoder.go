package fec

import (
	"bytes"
	"fmt"
)

// packetNode is a stored packet with at least two unresolved neighbors.
type packetNode struct {
	id      uint64
	payload []byte
	live    int
	// liveXor is the XOR of the ids of the unresolved neighbors. Once a single
	// neighbor is left it is that neighbor's id.
	liveXor SymbolID
	done    bool
}

// readyItem is a packet that reveals exactly one symbol.
type readyItem struct {
	pkt     uint64
	sym     SymbolID
	payload []byte
	cascade bool
}

// Decoder is a streaming peeling decoder for one Layout. Packets may arrive in
// any order, with loss and duplication. A Decoder is not safe for concurrent
// use; one goroutine owns it.
type Decoder struct {
	layout *Layout

	state    DecoderState
	seen     map[uint64]struct{}
	arena    []packetNode
	rev      [][]int // symbol -> arena slots referencing it
	resolved [][]byte
	// frameLeft counts the unresolved symbols of every frame.
	frameLeft []int
	ready     []readyItem

	// stamp and mark detect repeated neighbors in O(degree).
	stamp uint32
	mark  []uint32

	conflicts []DecodeConflict
	stats     DecoderStats
	lastAt    float64
}

// NewDecoder returns a decoder in StateInit.
func NewDecoder(layout *Layout) *Decoder {
	d := &Decoder{layout: layout}
	d.Reset()
	return d
}

// Reset drops every packet and resolved symbol and returns to StateInit.
func (d *Decoder) Reset() {
	n := d.layout.NumSymbols()
	d.state = StateInit
	d.seen = make(map[uint64]struct{})
	d.arena = d.arena[:0]
	d.rev = make([][]int, n)
	d.resolved = make([][]byte, n)
	d.frameLeft = make([]int, d.layout.NumFrames())
	for i, f := range d.layout.frames {
		d.frameLeft[i] = f.NumSymbols
	}
	d.ready = d.ready[:0]
	d.stamp = 0
	d.mark = make([]uint32, n)
	d.conflicts = nil
	d.stats = DecoderStats{}
	d.lastAt = 0
}

// Layout returns the layout the decoder was built for.
func (d *Decoder) Layout() *Layout { return d.layout }

// AddPacket is Receive stamped with the packet's own emit time.
func (d *Decoder) AddPacket(p *EncodedPacket) ([]Event, error) {
	return d.Receive(p, p.EmitTime)
}

// Receive feeds one packet observed at time at and runs the peeling cascade to
// a fixed point. It returns the events raised by this packet in resolution
// order. A packet whose id was seen before is ignored. A malformed packet is
// rejected with an error wrapping ErrInvalidPacket and leaves the decoder
// unchanged.
func (d *Decoder) Receive(p *EncodedPacket, at float64) ([]Event, error) {
	if _, dup := d.seen[p.ID]; dup {
		d.stats.Duplicates++
		return nil, nil
	}
	if err := d.check(p); err != nil {
		d.stats.Invalid++
		return nil, err
	}
	d.seen[p.ID] = struct{}{}
	d.stats.Received++
	d.lastAt = at

	buf := make([]byte, len(p.Payload))
	copy(buf, p.Payload)
	live := 0
	var liveXor SymbolID
	for _, s := range p.Neighbors {
		if r := d.resolved[s]; r != nil {
			xorBytes(buf, r)
			continue
		}
		live++
		liveXor ^= s
	}

	switch live {
	case 0:
		d.stats.Redundant++
		if !isZero(buf) {
			d.conflict(DecodeConflict{Kind: ConflictRedundant, PacketID: p.ID})
		}
	case 1:
		d.ready = append(d.ready, readyItem{pkt: p.ID, sym: liveXor, payload: buf})
	default:
		slot := len(d.arena)
		d.arena = append(d.arena, packetNode{id: p.ID, payload: buf, live: live, liveXor: liveXor})
		for _, s := range p.Neighbors {
			if d.resolved[s] == nil {
				d.rev[s] = append(d.rev[s], slot)
			}
		}
		d.stats.Stored++
	}

	events := d.peel(at)
	switch {
	case d.stats.Resolved == d.layout.NumSymbols():
		d.state = StateComplete
	case len(events) > 0:
		d.state = StateReceiving
	default:
		d.state = StateStalled
	}
	return events, nil
}

func (d *Decoder) check(p *EncodedPacket) error {
	if len(p.Neighbors) == 0 {
		return fmt.Errorf("%w: packet %d has degree 0", ErrInvalidPacket, p.ID)
	}
	if len(p.Payload) != d.layout.symbolSize {
		return fmt.Errorf("%w: packet %d payload is %d bytes, want %d", ErrInvalidPacket, p.ID, len(p.Payload), d.layout.symbolSize)
	}
	d.stamp++
	if d.stamp == 0 {
		// wrapped: old marks could collide with the new stamp
		clear(d.mark)
		d.stamp = 1
	}
	for _, s := range p.Neighbors {
		if int(s) >= d.layout.numSymbols {
			return fmt.Errorf("%w: packet %d references symbol %d of %d", ErrInvalidPacket, p.ID, s, d.layout.numSymbols)
		}
		if d.mark[s] == d.stamp {
			return fmt.Errorf("%w: packet %d lists symbol %d twice", ErrInvalidPacket, p.ID, s)
		}
		d.mark[s] = d.stamp
	}
	return nil
}

// peel drains the ready queue. Every resolution touches each stored packet
// referencing the symbol once, so the total work is bounded by the live edges.
func (d *Decoder) peel(at float64) []Event {
	var events []Event
	for head := 0; head < len(d.ready); head++ {
		r := d.ready[head]
		d.ready[head] = readyItem{}
		if have := d.resolved[r.sym]; have != nil {
			d.stats.Redundant++
			if !bytes.Equal(have, r.payload) {
				d.conflict(DecodeConflict{Kind: ConflictValue, PacketID: r.pkt, Symbol: r.sym})
			}
			continue
		}
		events = d.resolve(r, at, events)
	}
	d.ready = d.ready[:0]
	return events
}

func (d *Decoder) resolve(r readyItem, at float64, events []Event) []Event {
	s := r.sym
	d.resolved[s] = r.payload
	d.stats.Resolved++
	if r.cascade {
		d.stats.Cascades++
	}
	events = append(events, SymbolResolved{
		Symbol:      s,
		Payload:     r.payload,
		PacketCount: d.stats.Received,
		Cascade:     r.cascade,
	})
	f := d.layout.FrameOf(s)
	d.frameLeft[f]--
	if d.frameLeft[f] == 0 {
		events = append(events, FrameResolved{
			FrameIndex:            f,
			ResolvedAtPacketCount: d.stats.Received,
			ResolvedAtTime:        at,
		})
	}

	for _, slot := range d.rev[s] {
		n := &d.arena[slot]
		if n.done {
			continue
		}
		xorBytes(n.payload, r.payload)
		n.live--
		n.liveXor ^= s
		if n.live == 1 {
			d.ready = append(d.ready, readyItem{pkt: n.id, sym: n.liveXor, payload: n.payload, cascade: true})
			n.done = true
			n.payload = nil
			d.stats.Stored--
		}
	}
	d.rev[s] = nil
	return events
}

func (d *Decoder) conflict(c DecodeConflict) {
	d.conflicts = append(d.conflicts, c)
	d.stats.Conflicts++
}

// State returns the lifecycle state.
func (d *Decoder) State() DecoderState { return d.state }

// FractionResolved returns the resolved share of all symbols, in [0,1].
func (d *Decoder) FractionResolved() float64 {
	return float64(d.stats.Resolved) / float64(d.layout.NumSymbols())
}

// IsComplete reports whether every symbol is resolved.
func (d *Decoder) IsComplete() bool { return d.state == StateComplete }

// IsStalled reports whether the decoder needs more packets to make progress.
// A decoder that has not received anything yet is not stalled.
func (d *Decoder) IsStalled() bool { return d.state == StateStalled }

// Symbol returns the payload of id, or nil while it is unresolved. The slice
// must not be modified.
func (d *Decoder) Symbol(id SymbolID) []byte {
	if int(id) >= len(d.resolved) {
		return nil
	}
	return d.resolved[id]
}

// Resolved returns a copy of the resolved symbol table, indexed by SymbolID
// with nil for unresolved symbols.
func (d *Decoder) Resolved() [][]byte {
	out := make([][]byte, len(d.resolved))
	for i, r := range d.resolved {
		if r != nil {
			out[i] = append([]byte(nil), r...)
		}
	}
	return out
}

// IsFrameResolved reports whether every symbol of frame i is resolved.
func (d *Decoder) IsFrameResolved(i int) bool {
	return i >= 0 && i < len(d.frameLeft) && d.frameLeft[i] == 0
}

// FrameData returns the unpadded bytes of frame i once it is resolved.
func (d *Decoder) FrameData(i int) ([]byte, bool) {
	if !d.IsFrameResolved(i) {
		return nil, false
	}
	f := d.layout.frames[i]
	out := make([]byte, 0, f.NumSymbols*d.layout.symbolSize)
	for off := 0; off < f.NumSymbols; off++ {
		out = append(out, d.resolved[f.Symbol(off)]...)
	}
	return out[:f.Length], true
}

// Conflicts returns the consistency failures seen so far.
func (d *Decoder) Conflicts() []DecodeConflict {
	return append([]DecodeConflict(nil), d.conflicts...)
}

// Stats returns the decoder counters.
func (d *Decoder) Stats() DecoderStats { return d.stats }

// LastArrival is the time passed with the most recent accepted packet.
func (d *Decoder) LastArrival() float64 { return d.lastAt }
