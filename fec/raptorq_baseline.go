package fec

import (
	"errors"
	"math"

	rqq "github.com/xssnick/raptorq"
)

// Packet is one symbol of a block code, identified by its symbol index.
type Packet struct {
	Index int
	Data  []byte
}

// RaptorQEncoder wraps a systematic RaptorQ encoder over one contiguous block.
// It is the unbiased baseline the fountain decoder is compared with: RaptorQ
// yields nothing until the whole block decodes.
type RaptorQEncoder struct {
	L int
	e *rqq.Encoder
}

// RaptorQDecoder collects RaptorQ symbols for one block.
type RaptorQDecoder struct {
	K    int
	L    int
	size int
	d    *rqq.Decoder
}

// NewRaptorQEncoder creates an encoder for data cut into L-byte symbols.
func NewRaptorQEncoder(data []byte, L int) (*RaptorQEncoder, error) {
	if L <= 0 {
		return nil, errors.New("fec: bad raptorq symbol size")
	}
	rq := rqq.NewRaptorQ(uint32(L))
	enc, err := rq.CreateEncoder(data)
	if err != nil {
		return nil, err
	}
	return &RaptorQEncoder{L: L, e: enc}, nil
}

// GenSymbol returns symbol id. Ids below BaseSymbolsNum are source symbols.
func (e *RaptorQEncoder) GenSymbol(id uint32) []byte { return e.e.GenSymbol(id) }

// BaseSymbolsNum returns the number of source symbols.
func (e *RaptorQEncoder) BaseSymbolsNum() uint32 { return e.e.BaseSymbolsNum() }

// NewRaptorQDecoder creates a decoder for a block of dataSize bytes.
func NewRaptorQDecoder(dataSize, L int) (*RaptorQDecoder, error) {
	if dataSize <= 0 || L <= 0 {
		return nil, errors.New("fec: bad raptorq block size")
	}
	rq := rqq.NewRaptorQ(uint32(L))
	dec, err := rq.CreateDecoder(uint32(dataSize))
	if err != nil {
		return nil, err
	}
	return &RaptorQDecoder{K: int(dec.FastSymbolsNumRequired()), L: L, size: dataSize, d: dec}, nil
}

// AddSymbol feeds one symbol and reports whether a decode may be attempted.
func (d *RaptorQDecoder) AddSymbol(id uint32, data []byte) (bool, error) {
	return d.d.AddSymbol(id, data)
}

// Decode attempts to rebuild the block.
func (d *RaptorQDecoder) Decode() (bool, []byte, error) {
	return d.d.Decode()
}

// catalogBytes concatenates the unpadded frames of cat.
func catalogBytes(cat *FrameCatalog) []byte {
	var out []byte
	for i := 0; i < cat.NumFrames(); i++ {
		out = append(out, cat.FrameBytes(i)...)
	}
	return out
}

// blockSize is the byte length catalogBytes produces for layout.
func blockSize(layout *Layout) int {
	n := 0
	for _, f := range layout.frames {
		n += f.Length
	}
	return n
}

// RaptorQEncodeCatalog encodes the whole catalog as one RaptorQ block and
// returns ceil(K*(1+overhead)) symbols, K being the source symbol count.
func RaptorQEncodeCatalog(cat *FrameCatalog, overhead float64) ([]Packet, error) {
	enc, err := NewRaptorQEncoder(catalogBytes(cat), cat.SymbolSize())
	if err != nil {
		return nil, err
	}
	if !(overhead >= 0) || math.IsInf(overhead, 0) {
		overhead = 0
	}
	n := int(math.Ceil(float64(enc.BaseSymbolsNum()) * (1 + overhead)))
	out := make([]Packet, n)
	for i := range out {
		out[i] = Packet{Index: i, Data: enc.GenSymbol(uint32(i))}
	}
	return out, nil
}

// RaptorQPacketsToComplete feeds recv in order and returns how many packets
// were consumed when the block first decoded, together with the frames. It
// returns ok=false if recv never suffices.
func RaptorQPacketsToComplete(layout *Layout, recv []Packet) (used int, frames [][]byte, ok bool) {
	dec, err := NewRaptorQDecoder(blockSize(layout), layout.SymbolSize())
	if err != nil {
		return 0, nil, false
	}
	for i, p := range recv {
		if p.Index < 0 {
			continue
		}
		can, err := dec.AddSymbol(uint32(p.Index), p.Data)
		if err != nil || !can {
			continue
		}
		done, data, err := dec.Decode()
		if err != nil || !done {
			continue
		}
		if len(data) < blockSize(layout) {
			return i + 1, nil, false
		}
		return i + 1, splitFrames(layout, data), true
	}
	return len(recv), nil, false
}

func splitFrames(layout *Layout, data []byte) [][]byte {
	out := make([][]byte, len(layout.frames))
	off := 0
	for i, f := range layout.frames {
		out[i] = data[off : off+f.Length]
		off += f.Length
	}
	return out
}
