package fecwire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/streamdna/biasedlt/fec"
)

// CatalogHeader is the out-of-band metadata a decoder needs before any packet.
// Layout:
//
//	MAGIC    4B   "BLTC"
//	VERSION  u16  0x0001
//	SYMBOL   u32  bytes per symbol
//	FRAMES   u32  frame count
//	SIZE     u64  total unpadded bytes
//	SHA256   32B  digest of the concatenated frames
//	RESERVED 8B   zeros
//
// followed by FRAMES entries of KIND u8, NSYM u32, LENGTH u32.
const (
	catalogMagic     = "BLTC"
	catalogHeaderLen = 4 + 2 + 4 + 4 + 8 + 32 + 8
	frameEntryLen    = 1 + 4 + 4
)

type CatalogHeader struct {
	Version    uint16
	SymbolSize uint32
	TotalSize  uint64
	SHA256     [32]byte
	Frames     []fec.FrameSpec
}

// NewCatalogHeader describes cat and digests its frames.
func NewCatalogHeader(cat *fec.FrameCatalog) (*CatalogHeader, error) {
	h := &CatalogHeader{Version: 1, SymbolSize: uint32(cat.SymbolSize()), Frames: cat.Specs()}
	var all bytes.Buffer
	for i := 0; i < cat.NumFrames(); i++ {
		all.Write(cat.FrameBytes(i))
	}
	sum, n, err := ComputeSHA256(&all)
	if err != nil {
		return nil, err
	}
	h.SHA256, h.TotalSize = sum, n
	return h, nil
}

func (h *CatalogHeader) MarshalBinary() []byte {
	b := make([]byte, catalogHeaderLen+frameEntryLen*len(h.Frames))
	copy(b[0:4], catalogMagic)
	binary.LittleEndian.PutUint16(b[4:6], h.Version)
	binary.LittleEndian.PutUint32(b[6:10], h.SymbolSize)
	binary.LittleEndian.PutUint32(b[10:14], uint32(len(h.Frames)))
	binary.LittleEndian.PutUint64(b[14:22], h.TotalSize)
	copy(b[22:54], h.SHA256[:])
	// reserved zeros 54:62
	off := catalogHeaderLen
	for _, f := range h.Frames {
		b[off] = uint8(f.Kind)
		binary.LittleEndian.PutUint32(b[off+1:off+5], uint32(f.NumSymbols))
		binary.LittleEndian.PutUint32(b[off+5:off+9], uint32(f.Length))
		off += frameEntryLen
	}
	return b
}

func (h *CatalogHeader) UnmarshalBinary(b []byte) error {
	if len(b) < catalogHeaderLen {
		return errors.New("short header")
	}
	if string(b[0:4]) != catalogMagic {
		return errors.New("bad magic")
	}
	h.Version = binary.LittleEndian.Uint16(b[4:6])
	if h.Version != 1 {
		return errors.New("unsupported version")
	}
	h.SymbolSize = binary.LittleEndian.Uint32(b[6:10])
	n := int(binary.LittleEndian.Uint32(b[10:14]))
	h.TotalSize = binary.LittleEndian.Uint64(b[14:22])
	copy(h.SHA256[:], b[22:54])
	if len(b) < catalogHeaderLen+n*frameEntryLen {
		return errors.New("short frame table")
	}
	h.Frames = make([]fec.FrameSpec, n)
	off := catalogHeaderLen
	for i := range h.Frames {
		h.Frames[i] = fec.FrameSpec{
			Kind:       fec.FrameKind(b[off]),
			NumSymbols: int(binary.LittleEndian.Uint32(b[off+1 : off+5])),
			Length:     int(binary.LittleEndian.Uint32(b[off+5 : off+9])),
		}
		off += frameEntryLen
	}
	return nil
}

// Layout rebuilds the layout described by the header.
func (h *CatalogHeader) Layout() (*fec.Layout, error) {
	return fec.NewLayout(int(h.SymbolSize), h.Frames)
}

// Verify checks reassembled frames against the recorded size and digest.
func (h *CatalogHeader) Verify(frames [][]byte) error {
	sum, n, err := ComputeSHA256(io.MultiReader(readers(frames)...))
	if err != nil {
		return err
	}
	if n != h.TotalSize {
		return fmt.Errorf("size mismatch: %d != %d", n, h.TotalSize)
	}
	if sum != h.SHA256 {
		return errors.New("sha256 mismatch")
	}
	return nil
}

func readers(frames [][]byte) []io.Reader {
	out := make([]io.Reader, len(frames))
	for i, f := range frames {
		out[i] = bytes.NewReader(f)
	}
	return out
}

// WriteCatalogHeader writes h to w.
func WriteCatalogHeader(w io.Writer, h *CatalogHeader) error {
	_, err := w.Write(h.MarshalBinary())
	return err
}

// ReadCatalogHeader reads a header and its frame table from r.
func ReadCatalogHeader(r io.Reader) (*CatalogHeader, error) {
	fixed := make([]byte, catalogHeaderLen)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint32(fixed[10:14]))
	if n > 1<<24 {
		return nil, fmt.Errorf("fecwire: frame count %d too large", n)
	}
	b := make([]byte, catalogHeaderLen+n*frameEntryLen)
	copy(b, fixed)
	if _, err := io.ReadFull(r, b[catalogHeaderLen:]); err != nil {
		return nil, err
	}
	h := new(CatalogHeader)
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return h, nil
}

// ComputeSHA256 computes the SHA256 of r and the number of bytes read.
func ComputeSHA256(r io.Reader) ([32]byte, uint64, error) {
	h := sha256.New()
	var buf [64 * 1024]byte
	var nTotal uint64
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			nTotal += uint64(n)
			_, _ = h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return [32]byte{}, 0, err
		}
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nTotal, nil
}
