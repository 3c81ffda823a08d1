package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/fecwire"
	"github.com/streamdna/biasedlt/internal/metrics"
	"github.com/streamdna/biasedlt/internal/playback"
)

var ErrNotConfigured = errors.New("session: not configured")

// Observation is reported after Reset and after every ingested packet.
type Observation struct {
	State    fec.DecoderState
	Fraction float64
	Received int
	Playable int
	Complete bool
	// Symbols and Frames are what the last packet resolved.
	Symbols int
	Frames  []int
	// Err is set when the last packet was rejected.
	Err string
}

// Server is a remote decoding session: the client configures a catalog
// layout, then streams wire packets and gets an observation back for each.
type Server struct {
	mu      sync.Mutex
	metrics *metrics.Decoder

	cfg   *config.Encoding
	regen *fec.Regenerator
	dec   *fec.Decoder
	play  *playback.Buffer
}

// NewServer returns an unconfigured server. m may be nil.
func NewServer(m *metrics.Decoder) *Server { return &Server{metrics: m} }

func (s *Server) Configure(ctx context.Context, hdr *fecwire.CatalogHeader, cfg *config.Encoding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	layout, err := hdr.Layout()
	if err != nil {
		return err
	}
	_, regen, err := cfg.Build(layout)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.regen = regen
	s.dec = fec.NewDecoder(layout)
	s.play = playback.NewBuffer(layout.NumFrames())
	if s.metrics != nil {
		s.metrics.Restart()
	}
	return nil
}

func (s *Server) Reset(ctx context.Context) (*Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dec == nil {
		return nil, ErrNotConfigured
	}
	s.dec.Reset()
	s.play = playback.NewBuffer(s.dec.Layout().NumFrames())
	if s.metrics != nil {
		s.metrics.Restart()
	}
	return s.observe(nil, nil), nil
}

// Step decodes one wire packet. Rejected packets are reported in the
// observation, not as an error.
func (s *Server) Step(b []byte) (*Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dec == nil {
		return nil, ErrNotConfigured
	}
	pkt, _, err := fecwire.ParsePacket(b, s.regen)
	if err != nil {
		return s.observe(nil, err), nil
	}
	events, err := s.dec.Receive(pkt, pkt.EmitTime)
	if s.metrics != nil {
		s.metrics.ObserveEvents(events)
		s.metrics.ObserveStats(s.dec.Stats(), s.dec.FractionResolved())
	}
	return s.observe(events, err), nil
}

// Ingest runs Step for every message until recv returns io.EOF.
func (s *Server) Ingest(recv func() ([]byte, error), send func(*Observation) error) error {
	for {
		b, err := recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		obs, err := s.Step(b)
		if err != nil {
			return err
		}
		if err := send(obs); err != nil {
			return err
		}
	}
}

func (s *Server) observe(events []fec.Event, err error) *Observation {
	obs := &Observation{
		State:    s.dec.State(),
		Fraction: s.dec.FractionResolved(),
		Received: s.dec.Stats().Received,
		Complete: s.dec.IsComplete(),
	}
	for _, ev := range events {
		if fr, ok := ev.(fec.FrameResolved); ok {
			obs.Frames = append(obs.Frames, fr.FrameIndex)
		} else {
			obs.Symbols++
		}
	}
	s.play.Observe(events)
	obs.Playable = s.play.Playable()
	if err != nil {
		obs.Err = err.Error()
	}
	return obs
}
