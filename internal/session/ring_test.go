package session

import (
	"sync"
	"testing"
	"time"

	"github.com/streamdna/biasedlt/fec"
)

func pkt(id uint64) arrival { return arrival{pkt: &fec.EncodedPacket{ID: id}, at: float64(id)} }

// Test that tryPush on a full ring is fast and non-blocking.
func TestRingTryPushNonBlocking(t *testing.T) {
	r := newRing(8)
	for i := 0; i < 8; i++ {
		if !r.tryPush(pkt(uint64(i))) {
			t.Fatalf("unexpected full at %d", i)
		}
	}
	if r.depth() != 8 {
		t.Fatalf("depth=%d", r.depth())
	}
	const iters = 2000
	start := time.Now()
	for i := 0; i < iters; i++ {
		if r.tryPush(pkt(uint64(i))) {
			t.Fatalf("push succeeded on full ring at %d", i)
		}
	}
	dur := time.Since(start)
	t.Logf("avg=%.1fns total=%s", float64(dur.Nanoseconds())/iters, dur)
}

func TestRingFIFOAndWrap(t *testing.T) {
	r := newRing(5)
	if r.capacity() != 8 {
		t.Fatalf("capacity=%d", r.capacity())
	}
	buf := make([]arrival, 3)
	next := uint64(0)
	for round := 0; round < 10; round++ {
		for i := 0; i < 5; i++ {
			if !r.tryPush(pkt(uint64(round*5 + i))) {
				t.Fatalf("full at round %d", round)
			}
		}
		for got := 0; got < 5; {
			n := r.tryPopBatch(buf)
			if n == 0 {
				t.Fatalf("empty after %d pops", got)
			}
			for _, a := range buf[:n] {
				if a.pkt.ID != next {
					t.Fatalf("got id %d, want %d", a.pkt.ID, next)
				}
				next++
			}
			got += n
		}
	}
	if n := r.tryPopBatch(buf); n != 0 {
		t.Fatalf("ring not empty: %d", n)
	}
}

// Test that concurrent producers lose nothing and keep per-producer order.
func TestRingConcurrentProducers(t *testing.T) {
	const producers, each = 4, 5000
	r := newRing(64)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				a := pkt(uint64(p*each + i))
				for !r.tryPush(a) {
					time.Sleep(time.Microsecond)
				}
			}
		}(p)
	}
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	buf := make([]arrival, 16)
	deadline := time.Now().Add(10 * time.Second)
	for total := 0; total < producers*each; {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %d items", total)
		}
		n := r.tryPopBatch(buf)
		for _, a := range buf[:n] {
			p, i := int(a.pkt.ID)/each, int(a.pkt.ID)%each
			if i <= last[p] {
				t.Fatalf("producer %d out of order: %d after %d", p, i, last[p])
			}
			last[p] = i
		}
		total += n
	}
	wg.Wait()
}
