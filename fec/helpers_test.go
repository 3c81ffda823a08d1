package fec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// gopKinds returns frame kinds with an I-frame every gop frames.
func gopKinds(frames, gop int) []FrameKind {
	kinds := make([]FrameKind, frames)
	for i := range kinds {
		if i%gop == 0 {
			kinds[i] = FrameI
		} else {
			kinds[i] = FrameP
		}
	}
	return kinds
}

// testCatalog builds frames×perFrame random symbols of size bytes.
func testCatalog(t testing.TB, frames, perFrame, size int, seed int64) *FrameCatalog {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	symbols := make([][][]byte, frames)
	for f := range symbols {
		symbols[f] = make([][]byte, perFrame)
		for s := range symbols[f] {
			b := make([]byte, size)
			rng.Read(b)
			symbols[f][s] = b
		}
	}
	cat, err := NewFrameCatalogFromSymbols(gopKinds(frames, 5), symbols)
	require.NoError(t, err)
	return cat
}

func testEncoder(t testing.TB, cat *FrameCatalog, bias BiasConfig, samp SamplerConfig, enc EncoderConfig) *Encoder {
	t.Helper()
	sched, err := NewBiasScheduler(bias, cat.Layout)
	require.NoError(t, err)
	sampler, err := NewDegreeSampler(sched, samp, nil)
	require.NoError(t, err)
	e, err := NewEncoder(cat, sampler, enc)
	require.NoError(t, err)
	return e
}

func drain(e *Encoder, n int) []*EncodedPacket {
	out := make([]*EncodedPacket, 0, n)
	for i := 0; i < n; i++ {
		p, ok := e.Next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	return out
}
