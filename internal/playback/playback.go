// Package playback turns frame resolution events into an in-order playout.
package playback

import (
	"math"

	"github.com/streamdna/biasedlt/fec"
)

// Buffer releases frames in index order once every earlier frame resolved.
type Buffer struct {
	resolved []bool
	at       []float64
	packets  []int
	head     int
}

func NewBuffer(numFrames int) *Buffer {
	return &Buffer{
		resolved: make([]bool, numFrames),
		at:       make([]float64, numFrames),
		packets:  make([]int, numFrames),
	}
}

// Observe consumes decoder events and returns the frames that became
// playable, in order.
func (b *Buffer) Observe(events []fec.Event) []int {
	for _, ev := range events {
		fr, ok := ev.(fec.FrameResolved)
		if !ok || fr.FrameIndex < 0 || fr.FrameIndex >= len(b.resolved) || b.resolved[fr.FrameIndex] {
			continue
		}
		b.resolved[fr.FrameIndex] = true
		b.at[fr.FrameIndex] = fr.ResolvedAtTime
		b.packets[fr.FrameIndex] = fr.ResolvedAtPacketCount
	}
	var out []int
	for b.head < len(b.resolved) && b.resolved[b.head] {
		out = append(out, b.head)
		b.head++
	}
	return out
}

// Playable is the length of the resolved prefix.
func (b *Buffer) Playable() int { return b.head }

func (b *Buffer) Done() bool { return b.head == len(b.resolved) }

// ReadyAt returns the time at which frame i could first be shown: the latest
// resolution time over frames 0..i. Unresolved frames report +Inf.
func (b *Buffer) ReadyAt() []float64 {
	out := make([]float64, len(b.resolved))
	cur := 0.0
	for i := range out {
		if !b.resolved[i] || math.IsInf(cur, 1) {
			cur = math.Inf(1)
		} else if b.at[i] > cur {
			cur = b.at[i]
		}
		out[i] = cur
	}
	return out
}

// Report summarizes a playout at a fixed frame rate.
type Report struct {
	StartupDelay float64
	Stalls       int
	StallTime    float64
	Played       int
}

// Simulate plays frames at fps starting once the first frame is ready and
// the startup delay elapsed. A frame not ready at its slot stalls playback
// until it is.
func (b *Buffer) Simulate(fps, startup float64) Report {
	ready := b.ReadyAt()
	var r Report
	if len(ready) == 0 || math.IsInf(ready[0], 1) || fps <= 0 {
		return r
	}
	clock := ready[0] + startup
	r.StartupDelay = clock
	step := 1 / fps
	for i, t := range ready {
		if math.IsInf(t, 1) {
			break
		}
		if t > clock {
			r.Stalls++
			r.StallTime += t - clock
			clock = t
		}
		r.Played = i + 1
		clock += step
	}
	return r
}
