package trial

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/sim"
)

func testCatalog(t *testing.T, frames, perFrame, size int) *fec.FrameCatalog {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	data := make([]fec.FrameData, frames)
	for i := range data {
		b := make([]byte, perFrame*size)
		rng.Read(b)
		data[i] = fec.FrameData{Kind: fec.FrameP, Data: b}
	}
	data[0].Kind = fec.FrameI
	cat, err := fec.NewFrameCatalog(size, data)
	require.NoError(t, err)
	return cat
}

func TestConfigure(t *testing.T) {
	cfg := config.Default()
	flat := Configure(ArmFlat, cfg)
	require.Zero(t, flat.Bias.Alpha)
	require.Zero(t, flat.Sampler.FocusWeight)
	require.Equal(t, cfg.Bias.Theta0, flat.Bias.Theta0)
	require.Zero(t, Configure(ArmNoSingles, cfg).Bias.Theta0)
	require.Equal(t, cfg, Configure(ArmBiased, cfg))

	_, err := ParseArm("lt")
	require.Error(t, err)
	a, err := ParseArm("raptorq")
	require.NoError(t, err)
	require.Equal(t, ArmRaptorQ, a)
}

func TestFountainCompletes(t *testing.T) {
	cat := testCatalog(t, 5, 2, 8)
	outs, err := Run(cat, ArmBiased, config.Default(), 5, 1, Options{MaxPackets: 2000})
	require.NoError(t, err)
	require.Len(t, outs, 5)
	for _, o := range outs {
		require.True(t, o.Complete)
		for i, p := range o.FramePackets {
			require.Positive(t, p, "frame %d", i)
			require.LessOrEqual(t, p, o.Packets)
		}
	}
	s := Summarize(outs)
	require.Equal(t, 1.0, s.CompleteRate)
	require.GreaterOrEqual(t, s.MeanComplete, 10.0)
	require.Len(t, s.MeanFrame, 5)
}

func TestNoSinglesNeverStarts(t *testing.T) {
	cat := testCatalog(t, 3, 2, 8)
	o, err := Fountain(cat, ArmNoSingles, config.Default(), 1, Options{MaxPackets: 50})
	require.NoError(t, err)
	require.False(t, o.Complete)
	require.Equal(t, []int{-1, -1, -1}, o.FramePackets)

	_, err = Fountain(cat, ArmNoSingles, config.Default(), 1, Options{})
	require.Error(t, err)
}

func TestRaptorQLossy(t *testing.T) {
	cat := testCatalog(t, 4, 3, 16)
	o, err := RaptorQ(cat, 3, Options{MaxPackets: 40, Channel: sim.ChannelScenario{LossRate: 0.2}})
	require.NoError(t, err)
	if o.Complete {
		require.Equal(t, []int{o.Packets, o.Packets, o.Packets, o.Packets}, o.FramePackets)
	}
	o, err = RaptorQ(cat, 3, Options{MaxPackets: 24})
	require.NoError(t, err)
	require.True(t, o.Complete)
	require.GreaterOrEqual(t, o.Packets, 12)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Outcome{
		{Arm: ArmFlat, Complete: true, Packets: 10, FramePackets: []int{4, 10}},
		{Arm: ArmFlat, Complete: false, Packets: 20, FramePackets: []int{-1, 6}},
	})
	require.Equal(t, ArmFlat, s.Arm)
	require.Equal(t, 0.5, s.CompleteRate)
	require.Equal(t, 10.0, s.MeanComplete)
	require.Equal(t, []float64{12, 8}, s.MeanFrame)
	require.Equal(t, 0.5, s.Ordered)
	require.Equal(t, 6.0, s.MedianFirst)
	require.Equal(t, Summary{}, Summarize(nil))
}
