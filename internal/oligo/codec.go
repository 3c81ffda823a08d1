// Package oligo packages encoded packets into DNA strands: an optional
// Reed-Solomon inner code over byte shards, scrambling, and a 2-bit base
// mapping.
package oligo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/klauspost/reedsolomon"
)

var (
	ErrCorrupt   = errors.New("oligo: uncorrectable strand")
	ErrBadBase   = errors.New("oligo: invalid base")
	ErrRejected  = errors.New("oligo: strand rejected by screen")
	ErrTooLong   = errors.New("oligo: packet longer than the length prefix allows")
	errShortBody = errors.New("oligo: short body")
)

// Config controls how bytes become strands.
type Config struct {
	// DataShards and ParityShards configure the inner code. ParityShards 0
	// disables it.
	DataShards   int `yaml:"data_shards"`
	ParityShards int `yaml:"parity_shards"`
	// Scramble XORs every strand with a keystream derived from ScrambleSeed
	// to break up long runs.
	Scramble     bool  `yaml:"scramble"`
	ScrambleSeed int64 `yaml:"scramble_seed,omitempty"`
	// MaxHomopolymer and the GC bounds screen strands. Zero disables a check.
	MaxHomopolymer int     `yaml:"max_homopolymer,omitempty"`
	GCMin          float64 `yaml:"gc_min,omitempty"`
	GCMax          float64 `yaml:"gc_max,omitempty"`
}

func DefaultConfig() Config {
	return Config{DataShards: 8, ParityShards: 2, Scramble: true, ScrambleSeed: 1, MaxHomopolymer: 6}
}

// Codec converts packets to strands and back. It is safe for concurrent use.
type Codec struct {
	cfg Config
	rs  reedsolomon.Encoder
}

func New(cfg Config) (*Codec, error) {
	c := &Codec{cfg: cfg}
	if cfg.ParityShards < 0 {
		return nil, fmt.Errorf("oligo: parity shards %d", cfg.ParityShards)
	}
	if cfg.ParityShards > 0 {
		if cfg.DataShards <= 0 {
			return nil, fmt.Errorf("oligo: data shards %d", cfg.DataShards)
		}
		rs, err := reedsolomon.New(cfg.DataShards, cfg.ParityShards)
		if err != nil {
			return nil, err
		}
		c.rs = rs
	}
	if cfg.GCMax != 0 && !(cfg.GCMin >= 0 && cfg.GCMin <= cfg.GCMax && cfg.GCMax <= 1) {
		return nil, fmt.Errorf("oligo: gc bounds [%g,%g]", cfg.GCMin, cfg.GCMax)
	}
	return c, nil
}

// Encode turns data into a strand. It returns ErrRejected when the strand
// fails the screen; the caller should skip that packet.
func (c *Codec) Encode(data []byte) (string, error) {
	if len(data) > math.MaxUint16 {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLong, len(data))
	}
	body := binary.LittleEndian.AppendUint16(nil, uint16(len(data)))
	body = append(body, data...)
	if c.rs != nil {
		shards, err := c.rs.Split(body)
		if err != nil {
			return "", err
		}
		if err := c.rs.Encode(shards); err != nil {
			return "", err
		}
		body = bytes.Join(shards, nil)
	}
	if c.cfg.Scramble {
		c.scramble(body)
	}
	seq := ToBases(body)
	if err := c.Screen(seq); err != nil {
		return "", err
	}
	return seq, nil
}

// Decode recovers the bytes of a strand. With the inner code enabled, one
// corrupted shard is corrected.
func (c *Codec) Decode(seq string) ([]byte, error) {
	body, err := FromBases(seq)
	if err != nil {
		return nil, err
	}
	if c.cfg.Scramble {
		c.scramble(body)
	}
	if c.rs != nil {
		if body, err = c.correct(body); err != nil {
			return nil, err
		}
	}
	if len(body) < 2 {
		return nil, errShortBody
	}
	n := int(binary.LittleEndian.Uint16(body))
	if len(body) < 2+n {
		return nil, errShortBody
	}
	return body[2 : 2+n], nil
}

func (c *Codec) correct(body []byte) ([]byte, error) {
	total := c.cfg.DataShards + c.cfg.ParityShards
	if len(body) == 0 || len(body)%total != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrCorrupt, len(body))
	}
	size := len(body) / total
	shards := make([][]byte, total)
	for i := range shards {
		shards[i] = body[i*size : (i+1)*size]
	}
	ok, err := c.rs.Verify(shards)
	if err != nil {
		return nil, err
	}
	if !ok {
		if shards, ok = c.repairOne(shards); !ok {
			return nil, ErrCorrupt
		}
	}
	var out bytes.Buffer
	if err := c.rs.Join(&out, shards, c.cfg.DataShards*size); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// repairOne treats each shard in turn as erased and keeps the first
// reconstruction that verifies.
func (c *Codec) repairOne(shards [][]byte) ([][]byte, bool) {
	for i := range shards {
		try := make([][]byte, len(shards))
		copy(try, shards)
		try[i] = nil
		if err := c.rs.Reconstruct(try); err != nil {
			continue
		}
		if ok, err := c.rs.Verify(try); err == nil && ok {
			return try, true
		}
	}
	return nil, false
}

func (c *Codec) scramble(b []byte) {
	ks := rand.New(rand.NewSource(c.cfg.ScrambleSeed))
	for i := range b {
		b[i] ^= byte(ks.Intn(256))
	}
}

// Screen checks the homopolymer and GC constraints.
func (c *Codec) Screen(seq string) error {
	if c.cfg.MaxHomopolymer > 0 {
		if run := LongestRun(seq); run > c.cfg.MaxHomopolymer {
			return fmt.Errorf("%w: homopolymer of %d", ErrRejected, run)
		}
	}
	if c.cfg.GCMax > 0 {
		if gc := GCContent(seq); gc < c.cfg.GCMin || gc > c.cfg.GCMax {
			return fmt.Errorf("%w: gc content %.2f", ErrRejected, gc)
		}
	}
	return nil
}
