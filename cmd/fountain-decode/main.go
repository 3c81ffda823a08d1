package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/fecwire"
	"github.com/streamdna/biasedlt/internal/oligo"
	"github.com/streamdna/biasedlt/internal/playback"
	"github.com/streamdna/biasedlt/internal/sim"
	"github.com/streamdna/biasedlt/internal/timeline"
)

func main() {
	var (
		cfgPath   = flag.String("config", "encoding.yaml", "encoding config written by fountain-encode")
		out       = flag.String("out", "", "write the reassembled input here (optional)")
		jsonPath  = flag.String("timeline", "", "JSON lines event timeline (optional, overrides config)")
		chunkCSV  = flag.String("chunks-csv", "", "chunk_idx,first_packet CSV (optional)")
		frameCSV  = flag.String("frames-csv", "", "frame_idx,first_packet,time CSV (optional)")
		seed      = flag.Int64("seed", 0, "channel seed (overrides config)")
		loss      = flag.Float64("loss", -1, "fraction of strands lost (overrides config)")
		ordered   = flag.Bool("ordered", false, "read strands in file order instead of shuffling")
		all       = flag.Bool("all", false, "keep reading after the decoder completes")
		showBar   = flag.Bool("progress", true, "show a progress bar")
		fpsReplay = flag.Float64("playback-fps", 0, "frame rate for the playback report (default: encoder frame rate)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(err)
	}
	dir := filepath.Dir(*cfgPath)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	hf, err := os.Open(resolve(cfg.Files.Catalog))
	if err != nil {
		fail(err)
	}
	hdr, err := fecwire.ReadCatalogHeader(hf)
	_ = hf.Close()
	if err != nil {
		fail(err)
	}
	layout, err := hdr.Layout()
	if err != nil {
		fail(err)
	}
	_, regen, err := cfg.Build(layout)
	if err != nil {
		fail(err)
	}
	codec, err := oligo.New(cfg.Oligo)
	if err != nil {
		fail(err)
	}

	sf, err := os.Open(resolve(cfg.Files.Strands))
	if err != nil {
		fail(err)
	}
	records, err := oligo.ReadFASTA(sf)
	_ = sf.Close()
	if err != nil {
		fail(err)
	}
	pkts := make([]*fec.EncodedPacket, 0, len(records))
	corrupt := 0
	for _, r := range records {
		b, err := codec.Decode(r.Seq)
		if err != nil {
			corrupt++
			continue
		}
		p, _, err := fecwire.ParsePacket(b, regen)
		if err != nil {
			corrupt++
			continue
		}
		pkts = append(pkts, p)
	}

	sc := cfg.Channel
	sc.Shuffle = !*ordered
	if *seed != 0 {
		sc.Seed = *seed
	}
	if *loss >= 0 {
		sc.LossRate = *loss
	}
	ch, err := sim.NewChannel(sc)
	if err != nil {
		fail(err)
	}
	delivered := ch.Apply(pkts)

	var jw *timeline.JSONWriter
	if p := *jsonPath; p != "" || cfg.Files.Timeline != "" {
		if p == "" {
			p = resolve(cfg.Files.Timeline)
		}
		f, err := os.Create(p)
		if err != nil {
			fail(err)
		}
		defer f.Close()
		jw = timeline.NewJSONWriter(f)
	}

	var bar *progressbar.ProgressBar
	if *showBar {
		bar = progressbar.NewOptions(layout.NumSymbols(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("decoding"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	dec := fec.NewDecoder(layout)
	rec := timeline.NewRecorder()
	play := playback.NewBuffer(layout.NumFrames())
	used := 0
	for i, p := range delivered {
		if dec.IsComplete() && !*all {
			break
		}
		used++
		at := float64(i+1) / cfg.Encoder.PacketsPerSecond
		events, err := dec.Receive(p, at)
		if err != nil || len(events) == 0 {
			continue
		}
		entries := timeline.Entries(layout, at, events)
		rec.Observe(entries)
		play.Observe(events)
		if jw != nil {
			if err := jw.Write(entries...); err != nil {
				fail(err)
			}
		}
		if bar != nil {
			_ = bar.Set(dec.Stats().Resolved)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if jw != nil {
		if err := jw.Flush(); err != nil {
			fail(err)
		}
	}
	if *chunkCSV != "" {
		if err := writeFile(*chunkCSV, rec.WriteChunkCSV); err != nil {
			fail(err)
		}
	}
	if *frameCSV != "" {
		if err := writeFile(*frameCSV, rec.WriteFrameCSV); err != nil {
			fail(err)
		}
	}

	st := dec.Stats()
	cs := ch.Stats()
	fmt.Fprintf(os.Stderr, "[decoder-stats] strands=%d corrupt=%d delivered=%d dropped=%d used=%d received=%d duplicates=%d redundant=%d invalid=%d cascades=%d resolved=%d/%d frames=%d/%d conflicts=%d state=%s\n",
		len(records), corrupt, cs.Delivered, cs.Dropped, used, st.Received, st.Duplicates, st.Redundant, st.Invalid,
		st.Cascades, st.Resolved, layout.NumSymbols(), play.Playable(), layout.NumFrames(), st.Conflicts, dec.State())
	fps := *fpsReplay
	if fps <= 0 {
		fps = cfg.Encoder.FramesPerSecond
	}
	rep := play.Simulate(fps, 0)
	fmt.Fprintf(os.Stderr, "[playback] played=%d/%d startup=%.3fs stalls=%d stall_time=%.3fs\n",
		rep.Played, layout.NumFrames(), rep.StartupDelay, rep.Stalls, rep.StallTime)

	if !dec.IsComplete() {
		fmt.Fprintln(os.Stderr, "error: decoder stalled before recovering every symbol")
		os.Exit(1)
	}
	frames := make([][]byte, layout.NumFrames())
	for i := range frames {
		frames[i], _ = dec.FrameData(i)
	}
	if err := hdr.Verify(frames); err != nil {
		fail(err)
	}
	fmt.Println("sha256 ok")
	if *out != "" {
		if err := writeFile(*out, func(w io.Writer) error {
			for _, f := range frames {
				if _, err := w.Write(f); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			fail(err)
		}
		fmt.Println("stored:", *out)
	}
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
