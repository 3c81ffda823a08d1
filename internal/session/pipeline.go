// Package session runs encoder, channel and decoder as one streaming session,
// either in process or behind a gRPC service.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/metrics"
	"github.com/streamdna/biasedlt/internal/sim"
)

// PipelineOptions configures an in-process session.
type PipelineOptions struct {
	// Rate paces the encoder in packets per wall-clock second. Zero means
	// unpaced.
	Rate  rate.Limit
	Burst int
	// IngressRing is the ring size between channel and decoder (default 4096).
	IngressRing int
	// DropOnFull drops arrivals when the ring is full instead of waiting.
	DropOnFull bool
	Channel    sim.ChannelScenario
}

func (o *PipelineOptions) setDefaults() {
	if o.Rate <= 0 {
		o.Rate = rate.Inf
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.IngressRing <= 0 {
		o.IngressRing = 4096
	}
}

// Result summarizes a finished session.
type Result struct {
	Complete  bool
	Sent      uint64
	Fraction  float64
	Decoder   fec.DecoderStats
	Channel   sim.ChannelStats
	RingDrops int64
	Elapsed   time.Duration
}

// Pipeline connects an encoder to a decoder through a simulated channel.
// The decoder is owned by the consumer goroutine while Run executes.
type Pipeline struct {
	enc  *fec.Encoder
	dec  *fec.Decoder
	ch   *sim.Channel
	lim  *rate.Limiter
	ring *ring
	opts PipelineOptions

	metrics  *metrics.Decoder
	onEvents func(at float64, events []fec.Event)

	ringDrops atomic.Int64
}

func NewPipeline(enc *fec.Encoder, dec *fec.Decoder, opts PipelineOptions) (*Pipeline, error) {
	if el, dl := enc.Layout(), dec.Layout(); el.NumSymbols() != dl.NumSymbols() || el.NumFrames() != dl.NumFrames() {
		return nil, errors.New("session: encoder and decoder layouts differ")
	}
	opts.setDefaults()
	ch, err := sim.NewChannel(opts.Channel)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		enc:  enc,
		dec:  dec,
		ch:   ch,
		lim:  rate.NewLimiter(opts.Rate, opts.Burst),
		ring: newRing(opts.IngressRing),
		opts: opts,
	}, nil
}

// SetMetrics exports decoder and channel counters while running.
func (p *Pipeline) SetMetrics(m *metrics.Decoder) { p.metrics = m }

// OnEvents registers a callback run on the decoder goroutine for every
// packet that produced events.
func (p *Pipeline) OnEvents(fn func(at float64, events []fec.Event)) { p.onEvents = fn }

// Run streams packets until the decoder completes, the encoder runs out of
// packets, or ctx is done.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	t0 := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	stop, cancel := context.WithCancel(gctx)
	defer cancel()

	quiet := func(err error) error {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil
		}
		return err
	}

	sent := make(chan *fec.EncodedPacket, 64)
	delivered := make(chan *fec.EncodedPacket, 64)
	var ingressDone atomic.Bool

	g.Go(func() error {
		defer close(sent)
		return quiet(p.produce(stop, sent))
	})
	g.Go(func() error {
		return quiet(p.ch.Run(stop, sent, delivered))
	})
	g.Go(func() error {
		defer ingressDone.Store(true)
		return quiet(p.ingest(stop, delivered))
	})
	g.Go(func() error {
		return quiet(p.consume(stop, cancel, &ingressDone))
	})
	err := g.Wait()

	res := Result{
		Complete:  p.dec.IsComplete(),
		Sent:      p.enc.Emitted(),
		Fraction:  p.dec.FractionResolved(),
		Decoder:   p.dec.Stats(),
		Channel:   p.ch.Stats(),
		RingDrops: p.ringDrops.Load(),
		Elapsed:   time.Since(t0),
	}
	if err != nil {
		return res, fmt.Errorf("session: %w", err)
	}
	return res, nil
}

func (p *Pipeline) produce(ctx context.Context, out chan<- *fec.EncodedPacket) error {
	for {
		if err := p.lim.Wait(ctx); err != nil {
			return err
		}
		pkt, ok := p.enc.Next()
		if !ok {
			return nil
		}
		select {
		case out <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) ingest(ctx context.Context, in <-chan *fec.EncodedPacket) error {
	for pkt := range in {
		a := arrival{pkt: pkt, at: pkt.EmitTime}
		for !p.ring.tryPush(a) {
			if p.opts.DropOnFull {
				p.ringDrops.Add(1)
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			time.Sleep(100 * time.Microsecond)
		}
	}
	return nil
}

func (p *Pipeline) consume(ctx context.Context, done context.CancelFunc, ingressDone *atomic.Bool) error {
	const batch = 64
	buf := make([]arrival, batch)
	for {
		drained := ingressDone.Load()
		n := p.ring.tryPopBatch(buf)
		if n == 0 {
			if drained {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			time.Sleep(time.Millisecond)
			continue
		}
		for _, a := range buf[:n] {
			events, err := p.dec.Receive(a.pkt, a.at)
			if err != nil {
				continue
			}
			if len(events) > 0 {
				if p.metrics != nil {
					p.metrics.ObserveEvents(events)
				}
				if p.onEvents != nil {
					p.onEvents(a.at, events)
				}
			}
		}
		if p.metrics != nil {
			p.metrics.ObserveStats(p.dec.Stats(), p.dec.FractionResolved())
			p.metrics.ObserveChannel(p.ch.Stats())
		}
		if p.dec.IsComplete() {
			done()
			return nil
		}
	}
}
