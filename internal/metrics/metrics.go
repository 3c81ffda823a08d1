// Package metrics exports decoder and channel counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/sim"
)

// Decoder holds the collectors of one decoding session.
type Decoder struct {
	packets        *prometheus.CounterVec
	symbols        *prometheus.CounterVec
	frames         prometheus.Counter
	conflicts      prometheus.Counter
	fraction       prometheus.Gauge
	packetsToFrame prometheus.Histogram
	channel        *prometheus.CounterVec

	last     fec.DecoderStats
	lastChan sim.ChannelStats
}

// NewDecoder creates the collectors and registers them with reg.
func NewDecoder(reg prometheus.Registerer, namespace string) (*Decoder, error) {
	m := &Decoder{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "decoder", Name: "packets_total",
			Help: "Packets offered to the decoder by outcome.",
		}, []string{"outcome"}),
		symbols: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "decoder", Name: "symbols_resolved_total",
			Help: "Resolved symbols, split by direct arrival or cascade.",
		}, []string{"via"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "decoder", Name: "frames_resolved_total",
			Help: "Frames whose last symbol resolved.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "decoder", Name: "conflicts_total",
			Help: "Consistency failures seen while peeling.",
		}),
		fraction: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "decoder", Name: "fraction_resolved",
			Help: "Share of symbols resolved.",
		}),
		packetsToFrame: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "decoder", Name: "packets_to_frame",
			Help:    "Distinct packets received when a frame resolved.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
		channel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "channel", Name: "packets_total",
			Help: "Packets handled by the simulated channel by fate.",
		}, []string{"fate"}),
	}
	for _, c := range []prometheus.Collector{m.packets, m.symbols, m.frames, m.conflicts, m.fraction, m.packetsToFrame, m.channel} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveEvents records the events returned by one Receive call.
func (m *Decoder) ObserveEvents(events []fec.Event) {
	for _, ev := range events {
		switch e := ev.(type) {
		case fec.SymbolResolved:
			if e.Cascade {
				m.symbols.WithLabelValues("cascade").Inc()
			} else {
				m.symbols.WithLabelValues("arrival").Inc()
			}
		case fec.FrameResolved:
			m.frames.Inc()
			m.packetsToFrame.Observe(float64(e.ResolvedAtPacketCount))
		}
	}
}

// ObserveStats adds the counter deltas since the previous call.
func (m *Decoder) ObserveStats(s fec.DecoderStats, fraction float64) {
	add := func(outcome string, cur, prev int) {
		if cur > prev {
			m.packets.WithLabelValues(outcome).Add(float64(cur - prev))
		}
	}
	add("accepted", s.Received, m.last.Received)
	add("duplicate", s.Duplicates, m.last.Duplicates)
	add("invalid", s.Invalid, m.last.Invalid)
	add("redundant", s.Redundant, m.last.Redundant)
	if s.Conflicts > m.last.Conflicts {
		m.conflicts.Add(float64(s.Conflicts - m.last.Conflicts))
	}
	m.fraction.Set(fraction)
	m.last = s
}

// ObserveChannel adds the channel counter deltas since the previous call.
func (m *Decoder) ObserveChannel(s sim.ChannelStats) {
	add := func(fate string, cur, prev int64) {
		if cur > prev {
			m.channel.WithLabelValues(fate).Add(float64(cur - prev))
		}
	}
	add("sent", s.Sent, m.lastChan.Sent)
	add("dropped", s.Dropped, m.lastChan.Dropped)
	add("duplicated", s.Duplicated, m.lastChan.Duplicated)
	add("delivered", s.Delivered, m.lastChan.Delivered)
	m.lastChan = s
}

// Restart forgets the previous snapshots after the decoder was reset. The
// counters keep their totals.
func (m *Decoder) Restart() {
	m.last = fec.DecoderStats{}
	m.lastChan = sim.ChannelStats{}
	m.fraction.Set(0)
}
