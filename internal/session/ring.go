package session

import (
	"sync/atomic"

	"github.com/streamdna/biasedlt/fec"
)

// arrival is one packet handed from the network side to the decoder.
type arrival struct {
	pkt *fec.EncodedPacket
	at  float64
}

type slot struct {
	seq atomic.Uint64
	v   arrival
}

// ring is a bounded multi-producer single-consumer queue. A slot's sequence
// number tells producers and the consumer whose turn it is.
type ring struct {
	buf  []slot
	mask uint64
	head atomic.Uint64 // consumer index
	tail atomic.Uint64 // producer index
}

func newRing(capacity int) *ring {
	// round up to power of two
	n := 1
	for n < capacity {
		n <<= 1
	}
	r := &ring{buf: make([]slot, n), mask: uint64(n - 1)}
	for i := range r.buf {
		r.buf[i].seq.Store(uint64(i))
	}
	return r
}

func (r *ring) tryPush(x arrival) bool {
	for {
		pos := r.tail.Load()
		s := &r.buf[pos&r.mask]
		seq := s.seq.Load()
		switch dif := int64(seq) - int64(pos); {
		case dif == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				s.v = x
				s.seq.Store(pos + 1)
				return true
			}
		case dif < 0:
			return false // full
		}
		// another producer moved tail; retry
	}
}

// tryPopBatch fills dst with up to len(dst) items; caller is the single consumer.
func (r *ring) tryPopBatch(dst []arrival) int {
	head := r.head.Load()
	n := 0
	for n < len(dst) {
		pos := head + uint64(n)
		s := &r.buf[pos&r.mask]
		if s.seq.Load() != pos+1 {
			break
		}
		dst[n] = s.v
		s.v = arrival{}
		s.seq.Store(pos + r.mask + 1)
		n++
	}
	r.head.Store(head + uint64(n))
	return n
}

// depth approximates the number of queued items.
func (r *ring) depth() int {
	d := int64(r.tail.Load()) - int64(r.head.Load())
	if d < 0 {
		return 0
	}
	if d > int64(len(r.buf)) {
		return len(r.buf)
	}
	return int(d)
}

func (r *ring) capacity() int { return len(r.buf) }
