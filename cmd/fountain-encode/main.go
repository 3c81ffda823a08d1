package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/fecwire"
	"github.com/streamdna/biasedlt/internal/oligo"
)

func main() {
	var (
		in         = flag.String("in", "", "input file")
		framesPath = flag.String("frames", "", "optional CSV of kind,length rows describing the frames of -in")
		cfgPath    = flag.String("config", "", "optional YAML encoding config to start from")
		outDir     = flag.String("out", ".", "output directory")
		symSize    = flag.Int("symbol-size", 0, "bytes per symbol (overrides config)")
		overhead   = flag.Float64("overhead", -1, "extra packet fraction (overrides config)")
		theta0     = flag.Float64("theta0", -1, "initial degree-1 probability (overrides config)")
		alpha      = flag.Float64("alpha", -1, "theta decay per frame (overrides config)")
		seed       = flag.Int64("seed", 0, "encoder seed (overrides config)")
		compact    = flag.Bool("compact", false, "omit neighbor ids from strands")
	)
	flag.Parse()
	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: fountain-encode -in FILE [-frames FRAMES.csv] [-out DIR]")
		os.Exit(2)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			fail(err)
		}
		cfg = *c
	}
	if *symSize > 0 {
		cfg.SymbolSize = *symSize
	}
	if *overhead >= 0 {
		cfg.Overhead = *overhead
	}
	if *theta0 >= 0 {
		cfg.Bias.Theta0 = *theta0
	}
	if *alpha >= 0 {
		cfg.Bias.Alpha = *alpha
	}
	if *seed != 0 {
		cfg.Encoder.Seed = *seed
	}
	if *compact {
		cfg.Compact = true
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fail(err)
	}
	var frames []fec.FrameData
	if *framesPath != "" {
		frames, err = readFrames(*framesPath, data)
		if err != nil {
			fail(err)
		}
	} else {
		frames = cfg.Segment.Split(data)
	}
	cat, err := fec.NewFrameCatalog(cfg.SymbolSize, frames)
	if err != nil {
		fail(err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fail(err)
	}
	hdr, err := fecwire.NewCatalogHeader(cat)
	if err != nil {
		fail(err)
	}
	if err := writeFile(filepath.Join(*outDir, cfg.Files.Catalog), func(w io.Writer) error {
		return fecwire.WriteCatalogHeader(w, hdr)
	}); err != nil {
		fail(err)
	}

	sampler, _, err := cfg.Build(cat.Layout)
	if err != nil {
		fail(err)
	}
	enc, err := fec.NewEncoder(cat, sampler, cfg.Encoder)
	if err != nil {
		fail(err)
	}
	codec, err := oligo.New(cfg.Oligo)
	if err != nil {
		fail(err)
	}

	pkts := enc.Batch(cfg.Overhead)
	records := make([]oligo.Record, 0, len(pkts))
	rejected, bases := 0, 0
	degrees := 0
	for _, p := range pkts {
		seq, err := codec.Encode(fecwire.AppendPacket(nil, p, cfg.Compact))
		if errors.Is(err, oligo.ErrRejected) {
			rejected++
			continue
		}
		if err != nil {
			fail(err)
		}
		records = append(records, oligo.Record{
			Name: fmt.Sprintf("pkt%d deg=%d focus=%d", p.ID, p.Degree(), p.Focus),
			Seq:  seq,
		})
		bases += len(seq)
		degrees += p.Degree()
	}
	if err := writeFile(filepath.Join(*outDir, cfg.Files.Strands), func(w io.Writer) error {
		return oligo.WriteFASTA(w, records)
	}); err != nil {
		fail(err)
	}
	cfgOut := filepath.Join(*outDir, "encoding.yaml")
	if err := cfg.Save(cfgOut); err != nil {
		fail(err)
	}

	avgDeg := 0.0
	if len(records) > 0 {
		avgDeg = float64(degrees) / float64(len(records))
	}
	fmt.Fprintf(os.Stderr, "[encoder-stats] frames=%d symbols=%d packets=%d strands=%d rejected=%d bases=%d avg_degree=%.2f\n",
		cat.NumFrames(), cat.NumSymbols(), len(pkts), len(records), rejected, bases, avgDeg)
	fmt.Println("wrote:", cfgOut)
}

// readFrames cuts data by the kind,length rows of a CSV file.
func readFrames(path string, data []byte) ([]fec.FrameData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	r.Comment = '#'
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []fec.FrameData
	off := 0
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "kind") {
			continue
		}
		kind, err := fec.ParseFrameKind(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("frames row %d: %w", i+1, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("frames row %d: bad length %q", i+1, row[1])
		}
		if off+n > len(data) {
			return nil, fmt.Errorf("frames row %d: runs past end of input (%d > %d)", i+1, off+n, len(data))
		}
		out = append(out, fec.FrameData{Kind: kind, Data: data[off : off+n]})
		off += n
	}
	if off != len(data) {
		return nil, fmt.Errorf("frames cover %d of %d input bytes", off, len(data))
	}
	return out, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
