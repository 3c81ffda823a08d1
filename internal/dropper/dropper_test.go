package dropper

import (
	"math/rand"
	"testing"
)

func TestBernoulliEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	never, always := New(0, rng), New(1, rng)
	for i := 0; i < 1000; i++ {
		if never.Drop() {
			t.Fatal("p=0 dropped")
		}
		if !always.Drop() {
			t.Fatal("p=1 kept")
		}
	}
}

func TestBernoulliRate(t *testing.T) {
	b := New(0.2, rand.New(rand.NewSource(2)))
	const n = 100000
	drops := 0
	for i := 0; i < n; i++ {
		if b.Drop() {
			drops++
		}
	}
	if r := float64(drops) / n; r < 0.19 || r > 0.21 {
		t.Fatalf("rate=%.3f", r)
	}
}

func TestGilbertRateAndBursts(t *testing.T) {
	g := NewGilbert(0.1, 5, rand.New(rand.NewSource(3)))
	if _, ok := g.(*Gilbert); !ok {
		t.Fatalf("got %T", g)
	}
	const n = 400000
	drops, bursts := 0, 0
	prev := false
	for i := 0; i < n; i++ {
		d := g.Drop()
		if d {
			drops++
			if !prev {
				bursts++
			}
		}
		prev = d
	}
	if r := float64(drops) / n; r < 0.09 || r > 0.11 {
		t.Fatalf("rate=%.3f", r)
	}
	if mean := float64(drops) / float64(bursts); mean < 4 || mean > 6 {
		t.Fatalf("mean burst=%.2f", mean)
	}
	if _, ok := NewGilbert(0.1, 1, rand.New(rand.NewSource(3))).(*Bernoulli); !ok {
		t.Fatal("burst<=1 should be independent")
	}
}

func TestFateCopies(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	f := NewFate(New(0.25, rng), 0.5, rng)
	counts := [3]int{}
	for i := 0; i < 40000; i++ {
		counts[f.Copies()]++
	}
	if counts[0] < 9000 || counts[0] > 11000 {
		t.Fatalf("lost=%d", counts[0])
	}
	if counts[2] < 13500 || counts[2] > 16500 {
		t.Fatalf("duplicated=%d", counts[2])
	}
}
