package timeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamdna/biasedlt/fec"
)

func testLayout(t *testing.T) *fec.Layout {
	t.Helper()
	l, err := fec.NewLayout(4, []fec.FrameSpec{{Kind: fec.FrameI, NumSymbols: 2}, {Kind: fec.FrameP, NumSymbols: 1}})
	require.NoError(t, err)
	return l
}

func TestEntriesAndJSON(t *testing.T) {
	events := []fec.Event{
		fec.SymbolResolved{Symbol: 2, PacketCount: 1},
		fec.FrameResolved{FrameIndex: 1, ResolvedAtPacketCount: 1, ResolvedAtTime: 0.25},
		fec.SymbolResolved{Symbol: 0, PacketCount: 3, Cascade: true},
	}
	entries := Entries(testLayout(t), 0.25, events)
	require.Equal(t, []Entry{
		{Kind: KindSymbol, Packet: 1, Time: 0.25, Symbol: 2, Frame: 1},
		{Kind: KindFrame, Packet: 1, Time: 0.25, Frame: 1},
		{Kind: KindSymbol, Packet: 3, Time: 0.25, Symbol: 0, Frame: 0, Cascade: true},
	}, entries)

	var buf bytes.Buffer
	w := NewJSONWriter(&buf)
	require.NoError(t, w.Write(entries...))
	require.NoError(t, w.Flush())
	require.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
	require.Contains(t, buf.String(), `"cascade":true`)

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestRecorderCSV(t *testing.T) {
	r := NewRecorder()
	r.Observe([]Entry{
		{Kind: KindSymbol, Packet: 8, Symbol: 1},
		{Kind: KindSymbol, Packet: 3, Symbol: 0},
		{Kind: KindFrame, Packet: 8, Frame: 0, Time: 0.5},
	})
	r.Observe([]Entry{{Kind: KindSymbol, Packet: 12, Symbol: 1}})
	require.Equal(t, 2, r.Symbols())
	require.Equal(t, 8, r.Horizon())
	p, ok := r.FramePacket(0)
	require.True(t, ok)
	require.Equal(t, 8, p)
	_, ok = r.FramePacket(1)
	require.False(t, ok)

	var buf bytes.Buffer
	require.NoError(t, r.WriteChunkCSV(&buf))
	require.Equal(t, "chunk_idx,first_packet\n0,3\n1,8\n", buf.String())

	buf.Reset()
	require.NoError(t, r.WriteFrameCSV(&buf))
	require.Equal(t, "frame_idx,first_packet,time\n0,8,0.500000\n", buf.String())
}
