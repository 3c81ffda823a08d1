package session

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/metrics"
	"github.com/streamdna/biasedlt/internal/sim"
)

var _ = Describe("Pipeline", func() {
	var (
		cat *fec.FrameCatalog
		cfg config.Encoding
	)

	BeforeEach(func() {
		cat = testCatalog(6, 3, 16, 7)
		cfg = config.Default()
		cfg.SymbolSize = 16
	})

	expectCatalog := func(dec *fec.Decoder) {
		for i := 0; i < cat.NumFrames(); i++ {
			data, ok := dec.FrameData(i)
			Expect(ok).To(BeTrue(), "frame %d", i)
			Expect(data).To(Equal(cat.FrameBytes(i)))
		}
	}

	It("decodes the whole catalog over a clean channel", func(ctx SpecContext) {
		dec := fec.NewDecoder(cat.Layout)
		p, err := NewPipeline(testEncoder(cat, &cfg), dec, PipelineOptions{})
		Expect(err).NotTo(HaveOccurred())
		var frames []int
		p.OnEvents(func(_ float64, events []fec.Event) {
			for _, ev := range events {
				if fr, ok := ev.(fec.FrameResolved); ok {
					frames = append(frames, fr.FrameIndex)
				}
			}
		})

		res, err := p.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Complete).To(BeTrue())
		Expect(res.Fraction).To(Equal(1.0))
		Expect(res.Decoder.Received).To(BeNumerically("<=", int(res.Sent)))
		Expect(frames).To(ConsistOf(0, 1, 2, 3, 4, 5))
		expectCatalog(dec)
	}, SpecTimeout(10*time.Second))

	It("survives loss, duplication and reordering", func(ctx SpecContext) {
		dec := fec.NewDecoder(cat.Layout)
		p, err := NewPipeline(testEncoder(cat, &cfg), dec, PipelineOptions{
			Rate:    20000,
			Burst:   16,
			Channel: sim.ChannelScenario{LossRate: 0.3, DupRate: 0.1, ReorderWindow: 8, Seed: 3},
		})
		Expect(err).NotTo(HaveOccurred())

		reg := prometheus.NewRegistry()
		m, err := metrics.NewDecoder(reg, "test")
		Expect(err).NotTo(HaveOccurred())
		p.SetMetrics(m)

		res, err := p.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Complete).To(BeTrue())
		Expect(res.Channel.Dropped).To(BeNumerically(">", 0))
		Expect(res.Decoder.Conflicts).To(BeZero())
		expectCatalog(dec)

		families, err := reg.Gather()
		Expect(err).NotTo(HaveOccurred())
		var fraction float64
		for _, mf := range families {
			if mf.GetName() == "test_decoder_fraction_resolved" {
				fraction = mf.GetMetric()[0].GetGauge().GetValue()
			}
		}
		Expect(fraction).To(Equal(1.0))
	}, SpecTimeout(10*time.Second))

	It("stops when the encoder runs out of packets", func(ctx SpecContext) {
		cfg.Encoder.MaxPackets = 5
		dec := fec.NewDecoder(cat.Layout)
		p, err := NewPipeline(testEncoder(cat, &cfg), dec, PipelineOptions{IngressRing: 2})
		Expect(err).NotTo(HaveOccurred())

		res, err := p.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Complete).To(BeFalse())
		Expect(res.Sent).To(Equal(uint64(5)))
		Expect(res.Decoder.Received).To(Equal(5))
		Expect(res.RingDrops).To(BeZero())
	}, SpecTimeout(10*time.Second))

	It("returns the context error when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p, err := NewPipeline(testEncoder(cat, &cfg), fec.NewDecoder(cat.Layout), PipelineOptions{})
		Expect(err).NotTo(HaveOccurred())
		_, err = p.Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("rejects a decoder for another catalog", func() {
		other := testCatalog(2, 1, 16, 1)
		_, err := NewPipeline(testEncoder(cat, &cfg), fec.NewDecoder(other.Layout), PipelineOptions{})
		Expect(err).To(HaveOccurred())
	})
})
