package session

import (
	"math/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
)

func TestSession(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Suite")
}

// testCatalog builds frames of random bytes, the last one shorter than the
// others, with an I-frame every third frame.
func testCatalog(frames, perFrame, size int, seed int64) *fec.FrameCatalog {
	rng := rand.New(rand.NewSource(seed))
	data := make([]fec.FrameData, frames)
	for i := range data {
		n := perFrame * size
		if i == frames-1 {
			n -= size / 2
		}
		b := make([]byte, n)
		rng.Read(b)
		kind := fec.FrameP
		if i%3 == 0 {
			kind = fec.FrameI
		}
		data[i] = fec.FrameData{Kind: kind, Data: b}
	}
	cat, err := fec.NewFrameCatalog(size, data)
	Expect(err).NotTo(HaveOccurred())
	return cat
}

func testEncoder(cat *fec.FrameCatalog, cfg *config.Encoding) *fec.Encoder {
	sampler, _, err := cfg.Build(cat.Layout)
	Expect(err).NotTo(HaveOccurred())
	enc, err := fec.NewEncoder(cat, sampler, cfg.Encoder)
	Expect(err).NotTo(HaveOccurred())
	return enc
}
