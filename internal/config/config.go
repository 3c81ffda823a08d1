// Package config reads and writes the encoding configuration shared by the
// encode and decode commands.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/oligo"
	"github.com/streamdna/biasedlt/internal/sim"
)

// Encoding is everything a decoder needs, besides the catalog header, to
// interpret a set of strands.
type Encoding struct {
	SymbolSize int `yaml:"symbol_size"`
	// Overhead is the fraction of extra packets emitted on top of the number
	// of symbols.
	Overhead float64 `yaml:"overhead"`
	// Compact strands omit neighbor ids; the decoder regenerates them.
	Compact bool `yaml:"compact"`

	Segment Segmentation        `yaml:"segment"`
	Bias    fec.BiasConfig      `yaml:"bias"`
	Sampler fec.SamplerConfig   `yaml:"sampler"`
	Encoder fec.EncoderConfig   `yaml:"encoder"`
	Oligo   oligo.Config        `yaml:"oligo"`
	Channel sim.ChannelScenario `yaml:"channel"`
	Files   Files               `yaml:"files"`
}

// Segmentation splits an input without frame boundaries into frames.
type Segmentation struct {
	FrameSize int `yaml:"frame_size"`
	// GOP is the distance between I-frames. 0 marks only the first frame as I.
	GOP int `yaml:"gop"`
}

// Files names the artifacts written next to the configuration.
type Files struct {
	Catalog  string `yaml:"catalog"`
	Strands  string `yaml:"strands"`
	Timeline string `yaml:"timeline,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Encoding {
	return Encoding{
		SymbolSize: 64,
		Overhead:   0.5,
		Segment:    Segmentation{FrameSize: 1024, GOP: 10},
		Bias:       fec.DefaultBiasConfig(),
		Sampler:    fec.DefaultSamplerConfig(),
		Encoder:    fec.DefaultEncoderConfig(),
		Oligo:      oligo.DefaultConfig(),
		Files:      Files{Catalog: "catalog.bin", Strands: "strands.fasta"},
	}
}

// Validate checks the fields that are not validated by the constructors
// that consume them.
func (c *Encoding) Validate() error {
	if c.SymbolSize <= 0 {
		return fmt.Errorf("config: symbol_size %d must be > 0", c.SymbolSize)
	}
	if !(c.Overhead >= 0) {
		return fmt.Errorf("config: overhead %g must be >= 0", c.Overhead)
	}
	if c.Segment.FrameSize < 0 || c.Segment.GOP < 0 {
		return errors.New("config: negative segmentation")
	}
	if c.Files.Strands == "" {
		return errors.New("config: files.strands is empty")
	}
	return nil
}

// Load reads a YAML file. Missing fields keep their Default values.
func Load(path string) (*Encoding, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(b []byte) (*Encoding, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Encoding) Marshal() ([]byte, error) { return yaml.Marshal(c) }

// Save writes c as YAML.
func (c *Encoding) Save(path string) error {
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Build constructs the sampler and regenerator for layout.
func (c *Encoding) Build(layout *fec.Layout) (*fec.DegreeSampler, *fec.Regenerator, error) {
	sched, err := fec.NewBiasScheduler(c.Bias, layout)
	if err != nil {
		return nil, nil, fmt.Errorf("bias: %w", err)
	}
	sampler, err := fec.NewDegreeSampler(sched, c.Sampler, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("sampler: %w", err)
	}
	regen, err := fec.NewRegenerator(sampler, c.Encoder)
	if err != nil {
		return nil, nil, fmt.Errorf("encoder: %w", err)
	}
	return sampler, regen, nil
}

// Split cuts data into frames of FrameSize bytes. Frames at multiples of GOP
// are I-frames, the rest P-frames. A zero FrameSize yields a single frame.
func (s Segmentation) Split(data []byte) []fec.FrameData {
	size := s.FrameSize
	if size <= 0 || size > len(data) {
		size = len(data)
	}
	var out []fec.FrameData
	for off := 0; off < len(data) || len(out) == 0; off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		kind := fec.FrameP
		if len(out) == 0 || (s.GOP > 0 && len(out)%s.GOP == 0) {
			kind = fec.FrameI
		}
		out = append(out, fec.FrameData{Kind: kind, Data: data[off:end]})
		if size == 0 {
			break
		}
	}
	return out
}
