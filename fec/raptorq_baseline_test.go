package fec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRaptorQBaselineRoundTrip(t *testing.T) {
	cat := testCatalog(t, 10, 3, 16, 8)
	enc, err := NewRaptorQEncoder(catalogBytes(cat), cat.SymbolSize())
	require.NoError(t, err)
	k := int(enc.BaseSymbolsNum())
	require.Equal(t, 30, k)

	pkts, err := RaptorQEncodeCatalog(cat, 0.5)
	require.NoError(t, err)
	require.Len(t, pkts, 45)
	require.Equal(t, enc.GenSymbol(40), pkts[40].Data)

	// systematic prefix alone
	used, frames, ok := RaptorQPacketsToComplete(cat.Layout, pkts[:k])
	require.True(t, ok)
	require.Equal(t, k, used)
	for i, f := range frames {
		require.Equal(t, cat.FrameBytes(i), f)
	}

	// lose the first five source symbols and recover from repair symbols
	used, frames, ok = RaptorQPacketsToComplete(cat.Layout, pkts[5:])
	require.True(t, ok)
	require.GreaterOrEqual(t, used, k)
	for i, f := range frames {
		require.Equal(t, cat.FrameBytes(i), f)
	}
}

func TestRaptorQBaselineNotEnough(t *testing.T) {
	cat := testCatalog(t, 4, 2, 16, 8)
	pkts, err := RaptorQEncodeCatalog(cat, 0)
	require.NoError(t, err)
	used, _, ok := RaptorQPacketsToComplete(cat.Layout, pkts[:len(pkts)-1])
	require.False(t, ok)
	require.Equal(t, len(pkts)-1, used)
}
