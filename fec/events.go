package fec

import "fmt"

// DecoderState is the lifecycle state of a Decoder.
type DecoderState uint8

const (
	// StateInit: no packet accepted since construction or Reset.
	StateInit DecoderState = iota
	// StateReceiving: the last accepted packet resolved at least one symbol.
	StateReceiving
	// StateStalled: the last accepted packet resolved nothing and symbols are
	// still missing. More packets resume decoding.
	StateStalled
	// StateComplete: every symbol is resolved.
	StateComplete
)

func (s DecoderState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReceiving:
		return "receiving"
	case StateStalled:
		return "stalled"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("DecoderState(%d)", uint8(s))
	}
}

// Event is emitted by the decoder while it resolves symbols.
type Event interface {
	event()
}

// SymbolResolved reports that a symbol's payload became known.
type SymbolResolved struct {
	Symbol SymbolID
	// Payload is owned by the decoder and must not be modified.
	Payload []byte
	// PacketCount is the number of distinct packets accepted so far.
	PacketCount int
	// Cascade is set when the symbol was revealed by propagation rather than
	// directly by the packet that just arrived.
	Cascade bool
}

// FrameResolved reports that the last symbol of a frame resolved.
type FrameResolved struct {
	FrameIndex            int
	ResolvedAtPacketCount int
	ResolvedAtTime        float64
}

func (SymbolResolved) event() {}
func (FrameResolved) event()  {}

// DecoderStats counts what the decoder did with its input. Duplicates and
// Invalid are diagnostics only: they move without any change to the resolved
// symbols, the state or the conflicts.
type DecoderStats struct {
	Received   int // distinct packets accepted
	Duplicates int // packets ignored because their id was seen before
	Invalid    int // packets rejected with ErrInvalidPacket
	Redundant  int // packets that carried no new information
	Stored     int // packets currently waiting in the graph
	Cascades   int // symbols resolved by propagation
	Resolved   int
	Conflicts  int
}
