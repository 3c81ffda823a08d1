package fec

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestSampler(t *testing.T, layout *Layout, bias BiasConfig, samp SamplerConfig) *DegreeSampler {
	t.Helper()
	sched, err := NewBiasScheduler(bias, layout)
	require.NoError(t, err)
	s, err := NewDegreeSampler(sched, samp, nil)
	require.NoError(t, err)
	return s
}

func requireDistinct(t *testing.T, ids []SymbolID, numSymbols int) {
	t.Helper()
	seen := make(map[SymbolID]bool, len(ids))
	for _, id := range ids {
		require.Less(t, int(id), numSymbols)
		require.False(t, seen[id], "duplicate neighbor %d in %v", id, ids)
		seen[id] = true
	}
}

func TestDrawDistinctNeighbors(t *testing.T) {
	for _, tc := range []struct {
		name             string
		frames, perFrame int
	}{
		{"sparse", 20, 5},
		{"dense", 1, 5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			layout := testCatalog(t, tc.frames, tc.perFrame, 4, 1).Layout
			bias := DefaultBiasConfig()
			bias.Theta0 = 0
			s := newTestSampler(t, layout, bias, DefaultSamplerConfig())
			rng := rand.New(rand.NewSource(5))
			for i := 0; i < 5000; i++ {
				focus := i % layout.NumFrames()
				ids := s.Draw(rng, focus)
				require.GreaterOrEqual(t, len(ids), 2)
				require.LessOrEqual(t, len(ids), s.Scheduler().MaxDegree())
				require.True(t, layout.Frame(focus).Contains(ids[0]), "anchor must come from the focus frame")
				requireDistinct(t, ids, layout.NumSymbols())
			}
		})
	}
}

func TestDrawDegreeOneInFocusFrame(t *testing.T) {
	layout := testCatalog(t, 6, 3, 4, 1).Layout
	bias := DefaultBiasConfig()
	bias.Theta0 = 1
	bias.Alpha = 0
	s := newTestSampler(t, layout, bias, SamplerConfig{FocusWeight: 1})
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 1000; i++ {
		focus := i % layout.NumFrames()
		ids := s.Draw(rng, focus)
		require.Len(t, ids, 1)
		require.True(t, layout.Frame(focus).Contains(ids[0]))
	}
}

func TestDrawDegreeOneInReferenceFrame(t *testing.T) {
	layout := testCatalog(t, 10, 3, 4, 1).Layout
	bias := DefaultBiasConfig()
	bias.Theta0 = 1
	bias.Alpha = 0
	s := newTestSampler(t, layout, bias, SamplerConfig{IFrameWeight: 1})
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 200; i++ {
		ids := s.Draw(rng, 7)
		require.Len(t, ids, 1)
		require.True(t, layout.Frame(5).Contains(ids[0]), "got %d", ids[0])
	}
}

func TestDrawReachesEverySymbol(t *testing.T) {
	layout := testCatalog(t, 10, 3, 4, 1).Layout
	s := newTestSampler(t, layout, DefaultBiasConfig(), DefaultSamplerConfig())
	rng := rand.New(rand.NewSource(11))
	hits := make([]int, layout.NumSymbols())
	for i := 0; i < 20000; i++ {
		// a late focus so degree-1 packets rarely land on early frames
		for _, id := range s.Draw(rng, layout.NumFrames()-1) {
			hits[id]++
		}
	}
	for id, h := range hits {
		require.Positive(t, h, "symbol %d never selected", id)
	}
}

func TestDrawDeterministic(t *testing.T) {
	layout := testCatalog(t, 8, 4, 4, 1).Layout
	s := newTestSampler(t, layout, DefaultBiasConfig(), DefaultSamplerConfig())
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		require.Equal(t, s.Draw(a, i%8), s.Draw(b, i%8))
	}
}

func TestDrawUsesNeighborPolicy(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	policy := NewMockNeighborPolicy(mockCtrl)

	layout := testCatalog(t, 4, 3, 4, 1).Layout
	bias := DefaultBiasConfig()
	bias.Theta0 = 0
	bias.MaxDegree = 3
	sched, err := NewBiasScheduler(bias, layout)
	require.NoError(t, err)
	s, err := NewDegreeSampler(sched, DefaultSamplerConfig(), policy)
	require.NoError(t, err)

	policy.EXPECT().Pick(gomock.Any(), layout, 2, gomock.Len(1), gomock.Any()).DoAndReturn(
		func(_ Rand, _ *Layout, _ int, chosen []SymbolID, n int) []SymbolID {
			for i := 0; i < n; i++ {
				chosen = append(chosen, SymbolID(i))
			}
			return chosen
		},
	).Times(50)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		ids := s.Draw(rng, 2)
		require.GreaterOrEqual(t, len(ids), 2)
		require.True(t, layout.Frame(2).Contains(ids[0]))
		for j, id := range ids[1:] {
			require.Equal(t, SymbolID(j), id)
		}
	}
}

func TestDecayPolicyFavorsEarlyFrames(t *testing.T) {
	layout := testCatalog(t, 10, 3, 4, 1).Layout
	bias := DefaultBiasConfig()
	bias.Theta0 = 0
	s := newTestSampler(t, layout, bias, SamplerConfig{FocusWeight: 0.9, Policy: PolicyDecay, DecayBeta: 0.5})
	rng := rand.New(rand.NewSource(2))
	perFrame := make([]int, layout.NumFrames())
	for i := 0; i < 5000; i++ {
		ids := s.Draw(rng, 5)
		requireDistinct(t, ids, layout.NumSymbols())
		for _, id := range ids[1:] {
			perFrame[layout.FrameOf(id)]++
		}
	}
	require.Greater(t, perFrame[0], perFrame[9]*5)
	for f, n := range perFrame {
		require.Positive(t, n, "frame %d unreachable", f)
	}
}

func TestSamplerConfigErrors(t *testing.T) {
	layout := testCatalog(t, 2, 2, 4, 1).Layout
	sched, err := NewBiasScheduler(DefaultBiasConfig(), layout)
	require.NoError(t, err)
	for name, cfg := range map[string]SamplerConfig{
		"focus_weight": {FocusWeight: 1.2},
		"sum":          {FocusWeight: 0.7, IFrameWeight: 0.7},
		"policy":       {FocusWeight: 0.5, Policy: "zipf"},
		"decay_beta":   {FocusWeight: 0.5, Policy: PolicyDecay, DecayBeta: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewDegreeSampler(sched, cfg, nil)
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "got %v", err)
		})
	}
}
