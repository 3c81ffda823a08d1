// Package timeline records when symbols and frames resolved during a decode.
package timeline

import (
	"bufio"
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/francoispqt/gojay"

	"github.com/streamdna/biasedlt/fec"
)

// Entry kinds.
const (
	KindSymbol = "symbol"
	KindFrame  = "frame"
)

// Entry is one line of the JSON timeline.
type Entry struct {
	Kind    string
	Packet  int
	Time    float64
	Symbol  uint32
	Frame   int
	Cascade bool
}

func (e *Entry) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("kind", e.Kind)
	enc.IntKey("packet", e.Packet)
	enc.Float64Key("time", e.Time)
	if e.Kind == KindSymbol {
		enc.Uint64Key("symbol", uint64(e.Symbol))
		enc.BoolKeyOmitEmpty("cascade", e.Cascade)
	}
	enc.IntKey("frame", e.Frame)
}

func (e *Entry) IsNil() bool { return e == nil }

func (e *Entry) UnmarshalJSONObject(dec *gojay.Decoder, k string) error {
	switch k {
	case "kind":
		return dec.String(&e.Kind)
	case "packet":
		return dec.Int(&e.Packet)
	case "time":
		return dec.Float64(&e.Time)
	case "symbol":
		var v uint64
		if err := dec.Uint64(&v); err != nil {
			return err
		}
		e.Symbol = uint32(v)
	case "cascade":
		return dec.Bool(&e.Cascade)
	case "frame":
		return dec.Int(&e.Frame)
	}
	return nil
}

func (e *Entry) NKeys() int { return 0 }

// Entries converts decoder events observed at time at.
func Entries(layout *fec.Layout, at float64, events []fec.Event) []Entry {
	out := make([]Entry, 0, len(events))
	for _, ev := range events {
		switch e := ev.(type) {
		case fec.SymbolResolved:
			out = append(out, Entry{
				Kind:    KindSymbol,
				Packet:  e.PacketCount,
				Time:    at,
				Symbol:  uint32(e.Symbol),
				Frame:   layout.FrameOf(e.Symbol),
				Cascade: e.Cascade,
			})
		case fec.FrameResolved:
			out = append(out, Entry{
				Kind:   KindFrame,
				Packet: e.ResolvedAtPacketCount,
				Time:   e.ResolvedAtTime,
				Frame:  e.FrameIndex,
			})
		}
	}
	return out
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	w *bufio.Writer
}

func NewJSONWriter(w io.Writer) *JSONWriter { return &JSONWriter{w: bufio.NewWriter(w)} }

func (j *JSONWriter) Write(entries ...Entry) error {
	for i := range entries {
		b, err := gojay.MarshalJSONObject(&entries[i])
		if err != nil {
			return err
		}
		j.w.Write(b)
		if err := j.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func (j *JSONWriter) Flush() error { return j.w.Flush() }

// ReadJSON parses a timeline written by JSONWriter.
func ReadJSON(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	var out []Entry
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := gojay.UnmarshalJSONObject(line, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// Recorder keeps the first packet count at which each symbol and frame
// resolved.
type Recorder struct {
	symbols map[uint32]int
	frames  map[int]Entry
}

func NewRecorder() *Recorder {
	return &Recorder{symbols: make(map[uint32]int), frames: make(map[int]Entry)}
}

func (r *Recorder) Observe(entries []Entry) {
	for _, e := range entries {
		switch e.Kind {
		case KindSymbol:
			if _, ok := r.symbols[e.Symbol]; !ok {
				r.symbols[e.Symbol] = e.Packet
			}
		case KindFrame:
			if _, ok := r.frames[e.Frame]; !ok {
				r.frames[e.Frame] = e
			}
		}
	}
}

// FramePacket returns the packet count at which frame f resolved.
func (r *Recorder) FramePacket(f int) (int, bool) {
	e, ok := r.frames[f]
	return e.Packet, ok
}

// Horizon is the largest packet count recorded for any symbol.
func (r *Recorder) Horizon() int {
	h := 0
	for _, p := range r.symbols {
		if p > h {
			h = p
		}
	}
	return h
}

func (r *Recorder) Symbols() int { return len(r.symbols) }

// WriteChunkCSV writes the chunk_idx,first_packet table, one row per symbol.
func (r *Recorder) WriteChunkCSV(w io.Writer) error {
	ids := make([]uint32, 0, len(r.symbols))
	for id := range r.symbols {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"chunk_idx", "first_packet"})
	for _, id := range ids {
		_ = cw.Write([]string{strconv.FormatUint(uint64(id), 10), strconv.Itoa(r.symbols[id])})
	}
	cw.Flush()
	return cw.Error()
}

// WriteFrameCSV writes frame_idx,first_packet,time, one row per frame.
func (r *Recorder) WriteFrameCSV(w io.Writer) error {
	idx := make([]int, 0, len(r.frames))
	for f := range r.frames {
		idx = append(idx, f)
	}
	sort.Ints(idx)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"frame_idx", "first_packet", "time"})
	for _, f := range idx {
		e := r.frames[f]
		_ = cw.Write([]string{strconv.Itoa(f), strconv.Itoa(e.Packet), strconv.FormatFloat(e.Time, 'f', 6, 64)})
	}
	cw.Flush()
	return cw.Error()
}
