package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamdna/biasedlt/fec"
)

func TestSaveLoad(t *testing.T) {
	cfg := Default()
	cfg.Compact = true
	cfg.Bias.Theta0 = 0.3
	cfg.Bias.Baseline = fec.BaselineRobust
	cfg.Sampler.Policy = fec.PolicyDecay
	cfg.Sampler.DecayBeta = 0.2
	cfg.Channel.LossRate = 0.1
	cfg.Files.Timeline = "timeline.jsonl"

	path := filepath.Join(t.TempDir(), "encoding.yaml")
	require.NoError(t, cfg.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, *got)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encoding.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol_size: 32\nbias:\n  alpha: 0.25\n"), 0o644))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 32, got.SymbolSize)
	require.Equal(t, 0.25, got.Bias.Alpha)
	require.Equal(t, fec.DefaultBiasConfig().Theta0, got.Bias.Theta0)
	require.Equal(t, fec.DefaultEncoderConfig(), got.Encoder)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("symbol_size: [1"), 0o644))
	_, err = Load(bad)
	require.ErrorContains(t, err, "parse yaml")

	neg := filepath.Join(dir, "neg.yaml")
	require.NoError(t, os.WriteFile(neg, []byte("symbol_size: 0\n"), 0o644))
	_, err = Load(neg)
	require.ErrorContains(t, err, "symbol_size")
}

func TestBuild(t *testing.T) {
	layout, err := fec.NewLayout(8, []fec.FrameSpec{{Kind: fec.FrameI, NumSymbols: 3}, {Kind: fec.FrameP, NumSymbols: 2}})
	require.NoError(t, err)
	cfg := Default()
	sampler, regen, err := cfg.Build(layout)
	require.NoError(t, err)
	require.Same(t, layout, sampler.Layout())
	require.NotEmpty(t, regen.Neighbors(7))

	cfg.Bias.Theta0 = 2
	_, _, err = cfg.Build(layout)
	var ce *fec.ConfigError
	require.ErrorAs(t, err, &ce)

	cfg = Default()
	cfg.Encoder.PacketsPerSecond = 0
	_, _, err = cfg.Build(layout)
	require.ErrorAs(t, err, &ce)
}

func TestSplit(t *testing.T) {
	data := make([]byte, 25)
	frames := Segmentation{FrameSize: 10, GOP: 2}.Split(data)
	require.Len(t, frames, 3)
	require.Equal(t, []fec.FrameKind{fec.FrameI, fec.FrameP, fec.FrameI},
		[]fec.FrameKind{frames[0].Kind, frames[1].Kind, frames[2].Kind})
	require.Len(t, frames[2].Data, 5)

	frames = Segmentation{}.Split(data)
	require.Len(t, frames, 1)
	require.Len(t, frames[0].Data, 25)

	frames = Segmentation{FrameSize: 10}.Split(nil)
	require.Len(t, frames, 1)
	require.Empty(t, frames[0].Data)
}
