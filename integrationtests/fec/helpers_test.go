package fec_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
)

// newCatalog builds frames×perFrame symbols of random bytes with an I-frame
// every fifth frame.
func newCatalog(t *testing.T, frames, perFrame, size int, seed int64) *fec.FrameCatalog {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]fec.FrameData, frames)
	for i := range data {
		b := make([]byte, perFrame*size)
		rng.Read(b)
		kind := fec.FrameP
		if i%5 == 0 {
			kind = fec.FrameI
		}
		data[i] = fec.FrameData{Kind: kind, Data: b}
	}
	cat, err := fec.NewFrameCatalog(size, data)
	require.NoError(t, err)
	return cat
}

// scenarioConfig keeps the default clock of twenty packets per frame.
func scenarioConfig(theta0, alpha float64) config.Encoding {
	cfg := config.Default()
	cfg.SymbolSize = 16
	cfg.Bias.Theta0 = theta0
	cfg.Bias.Alpha = alpha
	return cfg
}
