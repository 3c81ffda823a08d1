// Package trial runs repeated encode/decode experiments and summarizes how
// many packets each frame needed.
package trial

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/dropper"
	"github.com/streamdna/biasedlt/internal/sim"
)

// Arm names one code configuration under test.
type Arm string

const (
	// ArmBiased uses the configuration as given.
	ArmBiased Arm = "biased"
	// ArmFlat keeps the degree-1 mass but removes every frame preference.
	ArmFlat Arm = "flat"
	// ArmNoSingles sets theta0 to zero.
	ArmNoSingles Arm = "theta0=0"
	// ArmRaptorQ encodes the whole catalog as one RaptorQ block.
	ArmRaptorQ Arm = "raptorq"
)

func ParseArm(s string) (Arm, error) {
	switch a := Arm(s); a {
	case ArmBiased, ArmFlat, ArmNoSingles, ArmRaptorQ:
		return a, nil
	}
	return "", fmt.Errorf("trial: unknown arm %q", s)
}

// Configure returns cfg adjusted for arm.
func Configure(arm Arm, cfg config.Encoding) config.Encoding {
	switch arm {
	case ArmFlat:
		cfg.Bias.Alpha = 0
		cfg.Bias.IFrameMultiplier = 1
		cfg.Sampler.FocusWeight = 0
		cfg.Sampler.IFrameWeight = 0
		cfg.Sampler.Policy = fec.PolicyUniform
	case ArmNoSingles:
		cfg.Bias.Theta0 = 0
	}
	return cfg
}

// Outcome is one trial.
type Outcome struct {
	Arm      Arm
	Seed     int64
	Complete bool
	// Packets is the number of distinct packets received when the decoder
	// completed, or when the trial gave up.
	Packets int
	// FramePackets[i] is the received packet count at which frame i resolved,
	// -1 if it never did.
	FramePackets []int
}

// Options bound a trial.
type Options struct {
	// MaxPackets caps the packets sent per trial.
	MaxPackets int
	Channel    sim.ChannelScenario
}

// Fountain streams packets from a fresh encoder seeded with seed into a fresh
// decoder until it completes or MaxPackets were sent.
func Fountain(cat *fec.FrameCatalog, arm Arm, cfg config.Encoding, seed int64, opts Options) (Outcome, error) {
	if opts.MaxPackets <= 0 {
		return Outcome{}, errors.New("trial: MaxPackets must be > 0")
	}
	cfg = Configure(arm, cfg)
	cfg.Encoder.Seed = seed
	cfg.Encoder.MaxPackets = uint64(opts.MaxPackets)
	sampler, _, err := cfg.Build(cat.Layout)
	if err != nil {
		return Outcome{}, err
	}
	enc, err := fec.NewEncoder(cat, sampler, cfg.Encoder)
	if err != nil {
		return Outcome{}, err
	}
	sc := opts.Channel
	sc.Shuffle = false
	sc.ReorderWindow = 0
	sc.Seed = seed
	ch, err := sim.NewChannel(sc)
	if err != nil {
		return Outcome{}, err
	}

	out := newOutcome(arm, seed, cat.NumFrames())
	dec := fec.NewDecoder(cat.Layout)
	batch := make([]*fec.EncodedPacket, 1)
	for !dec.IsComplete() {
		p, ok := enc.Next()
		if !ok {
			break
		}
		batch[0] = p
		for _, q := range ch.Apply(batch) {
			events, err := dec.Receive(q, q.EmitTime)
			if err != nil {
				return out, err
			}
			for _, ev := range events {
				if fr, ok := ev.(fec.FrameResolved); ok {
					out.FramePackets[fr.FrameIndex] = fr.ResolvedAtPacketCount
				}
			}
		}
	}
	out.Complete = dec.IsComplete()
	out.Packets = dec.Stats().Received
	return out, nil
}

// RaptorQ sends MaxPackets RaptorQ symbols through the same loss model. All
// frames resolve together once the block decodes.
func RaptorQ(cat *fec.FrameCatalog, seed int64, opts Options) (Outcome, error) {
	out := newOutcome(ArmRaptorQ, seed, cat.NumFrames())
	k := cat.NumSymbols()
	overhead := float64(opts.MaxPackets)/float64(k) - 1
	pkts, err := fec.RaptorQEncodeCatalog(cat, overhead)
	if err != nil {
		return out, err
	}
	rng := rand.New(rand.NewSource(seed))
	loss := dropper.NewGilbert(opts.Channel.LossRate, opts.Channel.BurstLen, rng)
	recv := pkts[:0:0]
	for _, p := range pkts {
		if !loss.Drop() {
			recv = append(recv, p)
		}
	}
	used, _, ok := fec.RaptorQPacketsToComplete(cat.Layout, recv)
	out.Complete, out.Packets = ok, used
	if ok {
		for i := range out.FramePackets {
			out.FramePackets[i] = used
		}
	}
	return out, nil
}

// Run executes trials for arm with seeds base, base+1, ...
func Run(cat *fec.FrameCatalog, arm Arm, cfg config.Encoding, trials int, base int64, opts Options) ([]Outcome, error) {
	outs := make([]Outcome, 0, trials)
	for t := 0; t < trials; t++ {
		var (
			o   Outcome
			err error
		)
		if arm == ArmRaptorQ {
			o, err = RaptorQ(cat, base+int64(t), opts)
		} else {
			o, err = Fountain(cat, arm, cfg, base+int64(t), opts)
		}
		if err != nil {
			return outs, err
		}
		outs = append(outs, o)
	}
	return outs, nil
}

func newOutcome(arm Arm, seed int64, frames int) Outcome {
	fp := make([]int, frames)
	for i := range fp {
		fp[i] = -1
	}
	return Outcome{Arm: arm, Seed: seed, FramePackets: fp}
}

// Summary aggregates the outcomes of one arm.
type Summary struct {
	Arm          Arm
	Trials       int
	CompleteRate float64
	// MeanComplete averages Packets over complete trials.
	MeanComplete float64
	// MeanFrame[i] averages FramePackets[i], counting an unresolved frame as
	// the trial's Packets.
	MeanFrame []float64
	// MedianFirst is the median packet count of the first resolved frame.
	MedianFirst float64
	// Ordered is the share of trials where frame 0 resolved at or before the
	// last frame.
	Ordered float64
}

func Summarize(outs []Outcome) Summary {
	var s Summary
	if len(outs) == 0 {
		return s
	}
	s.Arm = outs[0].Arm
	s.Trials = len(outs)
	frames := len(outs[0].FramePackets)
	s.MeanFrame = make([]float64, frames)
	var complete, ordered int
	var sumComplete float64
	firsts := make([]float64, 0, len(outs))
	for _, o := range outs {
		if o.Complete {
			complete++
			sumComplete += float64(o.Packets)
		}
		first := math.Inf(1)
		for i, p := range o.FramePackets {
			v := float64(p)
			if p < 0 {
				v = float64(o.Packets)
			} else if v < first {
				first = v
			}
			s.MeanFrame[i] += v / float64(len(outs))
		}
		firsts = append(firsts, first)
		if f0, fl := o.FramePackets[0], o.FramePackets[frames-1]; f0 >= 0 && (fl < 0 || f0 <= fl) {
			ordered++
		}
	}
	s.CompleteRate = float64(complete) / float64(len(outs))
	if complete > 0 {
		s.MeanComplete = sumComplete / float64(complete)
	}
	s.Ordered = float64(ordered) / float64(len(outs))
	sort.Float64s(firsts)
	s.MedianFirst = firsts[len(firsts)/2]
	return s
}
