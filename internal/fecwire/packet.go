package fecwire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/streamdna/biasedlt/fec"
)

const Version uint8 = 1

// Packet flags.
const (
	// FlagCompact marks a packet whose neighbor ids are omitted; the receiver
	// regenerates them from (seed, id).
	FlagCompact uint8 = 1 << 0
)

var (
	ErrShort    = errors.New("fecwire: short buffer")
	ErrVersion  = errors.New("fecwire: unsupported version")
	ErrChecksum = errors.New("fecwire: checksum mismatch")
	// ErrSeed rejects a compact packet drawn under another encoder seed.
	ErrSeed = errors.New("fecwire: compact packet seed mismatch")
)

// PacketHeader precedes every packet on the wire.
type PacketHeader struct {
	Version    uint8
	Flags      uint8
	Degree     uint16
	ID         uint64
	Seed       int64
	Focus      uint32
	EmitTime   float64
	PayloadLen uint32
}

const HeaderLen = 1 + 1 + 2 + 8 + 8 + 4 + 8 + 4

func (h *PacketHeader) MarshalBinary(b []byte) []byte {
	if len(b) < HeaderLen {
		b = make([]byte, HeaderLen)
	}
	b[0] = h.Version
	b[1] = h.Flags
	binary.LittleEndian.PutUint16(b[2:4], h.Degree)
	binary.LittleEndian.PutUint64(b[4:12], h.ID)
	binary.LittleEndian.PutUint64(b[12:20], uint64(h.Seed))
	binary.LittleEndian.PutUint32(b[20:24], h.Focus)
	binary.LittleEndian.PutUint64(b[24:32], math.Float64bits(h.EmitTime))
	binary.LittleEndian.PutUint32(b[32:36], h.PayloadLen)
	return b[:HeaderLen]
}

func (h *PacketHeader) UnmarshalBinary(b []byte) bool {
	if len(b) < HeaderLen {
		return false
	}
	h.Version = b[0]
	h.Flags = b[1]
	h.Degree = binary.LittleEndian.Uint16(b[2:4])
	h.ID = binary.LittleEndian.Uint64(b[4:12])
	h.Seed = int64(binary.LittleEndian.Uint64(b[12:20]))
	h.Focus = binary.LittleEndian.Uint32(b[20:24])
	h.EmitTime = math.Float64frombits(binary.LittleEndian.Uint64(b[24:32]))
	h.PayloadLen = binary.LittleEndian.Uint32(b[32:36])
	return true
}

// bodyLen is the length of everything after the header, checksum included.
func (h *PacketHeader) bodyLen() int {
	n := int(h.PayloadLen) + 4
	if h.Flags&FlagCompact == 0 {
		n += 4 * int(h.Degree)
	}
	return n
}

// EncodedLen returns the wire size of p.
func EncodedLen(p *fec.EncodedPacket, compact bool) int {
	n := HeaderLen + len(p.Payload) + 4
	if !compact {
		n += 4 * len(p.Neighbors)
	}
	return n
}

// AppendPacket appends the wire form of p to b.
func AppendPacket(b []byte, p *fec.EncodedPacket, compact bool) []byte {
	h := PacketHeader{
		Version:    Version,
		Degree:     uint16(len(p.Neighbors)),
		ID:         p.ID,
		Seed:       p.Seed,
		Focus:      uint32(p.Focus),
		EmitTime:   p.EmitTime,
		PayloadLen: uint32(len(p.Payload)),
	}
	if compact {
		h.Flags |= FlagCompact
	}
	start := len(b)
	var hb [HeaderLen]byte
	b = append(b, h.MarshalBinary(hb[:])...)
	if !compact {
		for _, s := range p.Neighbors {
			b = binary.LittleEndian.AppendUint32(b, uint32(s))
		}
	}
	b = append(b, p.Payload...)
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b[start:]))
}

// ParsePacket decodes one packet from the front of b and returns it with the
// number of bytes consumed. regen is required for compact packets and may be
// nil otherwise.
func ParsePacket(b []byte, regen *fec.Regenerator) (*fec.EncodedPacket, int, error) {
	var h PacketHeader
	if !h.UnmarshalBinary(b) {
		return nil, 0, ErrShort
	}
	if h.Version != Version {
		return nil, 0, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	n := HeaderLen + h.bodyLen()
	if len(b) < n {
		return nil, 0, ErrShort
	}
	if crc32.ChecksumIEEE(b[:n-4]) != binary.LittleEndian.Uint32(b[n-4:n]) {
		return nil, 0, ErrChecksum
	}
	p, err := build(&h, b[HeaderLen:n-4], regen)
	if err != nil {
		return nil, 0, err
	}
	return p, n, nil
}

func build(h *PacketHeader, body []byte, regen *fec.Regenerator) (*fec.EncodedPacket, error) {
	p := &fec.EncodedPacket{
		ID:       h.ID,
		Seed:     h.Seed,
		Focus:    int(h.Focus),
		EmitTime: h.EmitTime,
	}
	if h.Flags&FlagCompact != 0 {
		if regen == nil {
			return nil, errors.New("fecwire: compact packet without regenerator")
		}
		if h.Seed != regen.Seed() {
			return nil, fmt.Errorf("%w: packet %d has seed %d, regenerator %d", ErrSeed, h.ID, h.Seed, regen.Seed())
		}
		p.Neighbors = regen.Neighbors(h.ID)
		if len(p.Neighbors) != int(h.Degree) {
			return nil, fmt.Errorf("fecwire: packet %d regenerates degree %d, header says %d", h.ID, len(p.Neighbors), h.Degree)
		}
	} else {
		p.Neighbors = make([]fec.SymbolID, h.Degree)
		for i := range p.Neighbors {
			p.Neighbors[i] = fec.SymbolID(binary.LittleEndian.Uint32(body[4*i:]))
		}
		body = body[4*int(h.Degree):]
	}
	p.Payload = append([]byte(nil), body...)
	return p, nil
}

// WritePacket writes the wire form of p to w.
func WritePacket(w io.Writer, p *fec.EncodedPacket, compact bool) error {
	_, err := w.Write(AppendPacket(make([]byte, 0, EncodedLen(p, compact)), p, compact))
	return err
}

// ReadPacket reads one packet from r. It returns io.EOF only when r is
// exhausted at a packet boundary.
func ReadPacket(r io.Reader, regen *fec.Regenerator) (*fec.EncodedPacket, error) {
	var hb [HeaderLen]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrShort
		}
		return nil, err
	}
	var h PacketHeader
	h.UnmarshalBinary(hb[:])
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	buf := make([]byte, HeaderLen+h.bodyLen())
	copy(buf, hb[:])
	if _, err := io.ReadFull(r, buf[HeaderLen:]); err != nil {
		return nil, ErrShort
	}
	p, _, err := ParsePacket(buf, regen)
	return p, err
}
