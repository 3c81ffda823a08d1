package fec

import (
	"errors"
	"fmt"
)

// ErrInvalidPacket is returned by the decoder for packets that cannot belong to
// the configured layout. Such packets are ignored.
var ErrInvalidPacket = errors.New("fec: invalid packet")

// ConfigError reports an invalid bias, sampler or encoder parameter.
type ConfigError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("fec: bad config %s=%g: %s", e.Field, e.Value, e.Reason)
}

// CatalogError reports a catalog that cannot be encoded.
type CatalogError struct {
	Frame  int // -1 when the error is not tied to a frame
	Reason string
}

func (e *CatalogError) Error() string {
	if e.Frame < 0 {
		return "fec: bad catalog: " + e.Reason
	}
	return fmt.Sprintf("fec: bad catalog: frame %d: %s", e.Frame, e.Reason)
}

// ConflictKind tells which consistency check failed.
type ConflictKind uint8

const (
	// ConflictRedundant: a packet whose neighbors were all resolved did not
	// reduce to the zero block.
	ConflictRedundant ConflictKind = iota
	// ConflictValue: a packet revealed a value for an already resolved symbol
	// that differs from the stored one.
	ConflictValue
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictRedundant:
		return "redundant-nonzero"
	case ConflictValue:
		return "value-mismatch"
	default:
		return fmt.Sprintf("ConflictKind(%d)", uint8(k))
	}
}

// DecodeConflict is recorded by the decoder when two independently derived
// values disagree. It does not abort decoding; the first resolved value wins.
type DecodeConflict struct {
	Kind     ConflictKind
	PacketID uint64
	// Symbol is the symbol whose value disagreed. It is meaningless for
	// ConflictRedundant.
	Symbol SymbolID
}

func (c DecodeConflict) Error() string {
	if c.Kind == ConflictRedundant {
		return fmt.Sprintf("fec: decode conflict: packet %d reduced to a non-zero block", c.PacketID)
	}
	return fmt.Sprintf("fec: decode conflict: packet %d disagrees on symbol %d", c.PacketID, c.Symbol)
}
