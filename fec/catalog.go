package fec

import (
	"fmt"
	"math"
	"sort"
)

// FrameKind is the media role of a frame.
type FrameKind uint8

const (
	FrameI FrameKind = iota
	FrameP
	FrameB
	FrameAudio
)

func (k FrameKind) String() string {
	switch k {
	case FrameI:
		return "I"
	case FrameP:
		return "P"
	case FrameB:
		return "B"
	case FrameAudio:
		return "Audio"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// ParseFrameKind is the inverse of FrameKind.String.
func ParseFrameKind(s string) (FrameKind, error) {
	switch s {
	case "I", "i":
		return FrameI, nil
	case "P", "p":
		return FrameP, nil
	case "B", "b":
		return FrameB, nil
	case "Audio", "audio", "A", "a":
		return FrameAudio, nil
	}
	return 0, fmt.Errorf("fec: unknown frame kind %q", s)
}

// SymbolID identifies one source symbol. Ids are assigned frame by frame, so
// the symbols of a frame form a contiguous range.
type SymbolID uint32

// Frame describes one frame of the catalog. Symbols FirstSymbol through
// FirstSymbol+NumSymbols-1 belong to it.
type Frame struct {
	Index       int
	Kind        FrameKind
	FirstSymbol SymbolID
	NumSymbols  int
	// Length is the frame size in bytes before zero padding.
	Length int
}

// Symbol returns the id of the symbol at offset off within the frame.
func (f Frame) Symbol(off int) SymbolID { return f.FirstSymbol + SymbolID(off) }

// Contains reports whether id belongs to the frame.
func (f Frame) Contains(id SymbolID) bool {
	return id >= f.FirstSymbol && int(id-f.FirstSymbol) < f.NumSymbols
}

// Layout is the payload-free part of a catalog. It is shared out of band
// between encoder and decoder and never changes once built.
type Layout struct {
	symbolSize int
	frames     []Frame
	numSymbols int
}

// FrameSpec describes one frame for NewLayout.
type FrameSpec struct {
	Kind       FrameKind
	NumSymbols int
	Length     int // 0 means NumSymbols*symbolSize
}

// NewLayout builds a layout from frame descriptions.
func NewLayout(symbolSize int, specs []FrameSpec) (*Layout, error) {
	if symbolSize <= 0 {
		return nil, &CatalogError{Frame: -1, Reason: fmt.Sprintf("symbol size %d", symbolSize)}
	}
	if len(specs) == 0 {
		return nil, &CatalogError{Frame: -1, Reason: "no frames"}
	}
	l := &Layout{symbolSize: symbolSize, frames: make([]Frame, len(specs))}
	next := 0
	for i, s := range specs {
		if s.NumSymbols <= 0 {
			return nil, &CatalogError{Frame: i, Reason: "zero-length frame"}
		}
		// SymbolID is 32 bits wide.
		if uint64(next)+uint64(s.NumSymbols) > math.MaxUint32 || s.NumSymbols > math.MaxInt/symbolSize {
			return nil, &CatalogError{Frame: i, Reason: fmt.Sprintf("%d symbols of %d bytes exceed the symbol id space", s.NumSymbols, symbolSize)}
		}
		length := s.Length
		if length == 0 {
			length = s.NumSymbols * symbolSize
		}
		if length < 0 || length > s.NumSymbols*symbolSize || length <= (s.NumSymbols-1)*symbolSize {
			return nil, &CatalogError{Frame: i, Reason: fmt.Sprintf("length %d does not fit %d symbols of %d bytes", length, s.NumSymbols, symbolSize)}
		}
		l.frames[i] = Frame{
			Index:       i,
			Kind:        s.Kind,
			FirstSymbol: SymbolID(next),
			NumSymbols:  s.NumSymbols,
			Length:      length,
		}
		next += s.NumSymbols
	}
	l.numSymbols = next
	return l, nil
}

func (l *Layout) SymbolSize() int { return l.symbolSize }
func (l *Layout) NumSymbols() int { return l.numSymbols }
func (l *Layout) NumFrames() int  { return len(l.frames) }

// Frame returns frame i. It panics if i is out of range.
func (l *Layout) Frame(i int) Frame { return l.frames[i] }

// Frames returns a copy of all frames.
func (l *Layout) Frames() []Frame {
	out := make([]Frame, len(l.frames))
	copy(out, l.frames)
	return out
}

// FrameOf returns the index of the frame holding id.
func (l *Layout) FrameOf(id SymbolID) int {
	return sort.Search(len(l.frames), func(i int) bool {
		f := l.frames[i]
		return f.FirstSymbol+SymbolID(f.NumSymbols) > id
	})
}

// ClampFrame clamps i into [0, NumFrames-1].
func (l *Layout) ClampFrame(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(l.frames) {
		return len(l.frames) - 1
	}
	return i
}

// ReferenceFrame returns the nearest I-frame at or before frame i, or i itself
// when there is none.
func (l *Layout) ReferenceFrame(i int) int {
	for j := i; j >= 0; j-- {
		if l.frames[j].Kind == FrameI {
			return j
		}
	}
	return i
}

// Specs returns the FrameSpecs this layout was built from.
func (l *Layout) Specs() []FrameSpec {
	out := make([]FrameSpec, len(l.frames))
	for i, f := range l.frames {
		out[i] = FrameSpec{Kind: f.Kind, NumSymbols: f.NumSymbols, Length: f.Length}
	}
	return out
}

// FrameCatalog is a Layout together with the symbol payloads.
type FrameCatalog struct {
	*Layout
	symbols [][]byte
}

// FrameData is one frame handed to NewFrameCatalog.
type FrameData struct {
	Kind FrameKind
	Data []byte
}

// NewFrameCatalog splits every frame into symbolSize-byte symbols, zero
// padding the last symbol of each frame.
func NewFrameCatalog(symbolSize int, frames []FrameData) (*FrameCatalog, error) {
	specs := make([]FrameSpec, len(frames))
	for i, f := range frames {
		if len(f.Data) == 0 {
			return nil, &CatalogError{Frame: i, Reason: "zero-length frame"}
		}
		if symbolSize > 0 {
			specs[i] = FrameSpec{Kind: f.Kind, NumSymbols: (len(f.Data) + symbolSize - 1) / symbolSize, Length: len(f.Data)}
		}
	}
	layout, err := NewLayout(symbolSize, specs)
	if err != nil {
		return nil, err
	}
	c := &FrameCatalog{Layout: layout, symbols: make([][]byte, layout.numSymbols)}
	for i, f := range frames {
		fr := layout.frames[i]
		for off := 0; off < fr.NumSymbols; off++ {
			sym := make([]byte, symbolSize)
			copy(sym, f.Data[off*symbolSize:])
			c.symbols[fr.Symbol(off)] = sym
		}
	}
	return c, nil
}

// NewFrameCatalogFromSymbols builds a catalog from pre-cut symbols. All
// symbols must have the same length.
func NewFrameCatalogFromSymbols(kinds []FrameKind, symbols [][][]byte) (*FrameCatalog, error) {
	if len(kinds) != len(symbols) {
		return nil, &CatalogError{Frame: -1, Reason: fmt.Sprintf("%d kinds for %d frames", len(kinds), len(symbols))}
	}
	size := -1
	specs := make([]FrameSpec, len(symbols))
	for i, fs := range symbols {
		for _, s := range fs {
			if size < 0 {
				size = len(s)
			}
			if len(s) != size {
				return nil, &CatalogError{Frame: i, Reason: fmt.Sprintf("symbol size %d, want %d", len(s), size)}
			}
		}
		specs[i] = FrameSpec{Kind: kinds[i], NumSymbols: len(fs)}
	}
	if size < 0 && len(symbols) > 0 {
		return nil, &CatalogError{Frame: 0, Reason: "zero-length frame"}
	}
	layout, err := NewLayout(size, specs)
	if err != nil {
		return nil, err
	}
	c := &FrameCatalog{Layout: layout, symbols: make([][]byte, 0, layout.numSymbols)}
	for _, fs := range symbols {
		for _, s := range fs {
			c.symbols = append(c.symbols, append([]byte(nil), s...))
		}
	}
	return c, nil
}

// Payload returns the padded payload of symbol id. The slice must not be
// modified.
func (c *FrameCatalog) Payload(id SymbolID) []byte { return c.symbols[id] }

// FrameBytes returns the unpadded bytes of frame i.
func (c *FrameCatalog) FrameBytes(i int) []byte {
	f := c.frames[i]
	out := make([]byte, 0, f.NumSymbols*c.symbolSize)
	for off := 0; off < f.NumSymbols; off++ {
		out = append(out, c.symbols[f.Symbol(off)]...)
	}
	return out[:f.Length]
}
