package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/streamdna/biasedlt/fec"
	"github.com/streamdna/biasedlt/internal/config"
	"github.com/streamdna/biasedlt/internal/trial"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "optional YAML encoding config")
		frames   = flag.Int("frames", 10, "frames in the synthetic catalog")
		perFrame = flag.Int("per-frame", 3, "symbols per frame")
		L        = flag.Int("L", 64, "bytes per symbol")
		gop      = flag.Int("gop", 5, "distance between I-frames")
		arms     = flag.String("arms", "biased,flat,theta0=0,raptorq", "comma-separated arms to run")
		trials   = flag.Int("trials", 200, "trials per arm")
		maxPkts  = flag.Int("max-packets", 0, "packets per trial (default 10x symbols)")
		loss     = flag.Float64("loss", 0, "channel loss probability")
		burst    = flag.Float64("burst", 0, "mean loss burst length")
		theta0   = flag.Float64("theta0", -1, "theta0 (overrides config)")
		alpha    = flag.Float64("alpha", -1, "alpha (overrides config)")
		seed     = flag.Int64("seed", 1337, "base seed")
		csvPath  = flag.String("csv", "", "optional per-trial CSV output path")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			fail(err)
		}
		cfg = *c
	}
	if *theta0 >= 0 {
		cfg.Bias.Theta0 = *theta0
	}
	if *alpha >= 0 {
		cfg.Bias.Alpha = *alpha
	}
	cfg.SymbolSize = *L

	cat, err := synthCatalog(*frames, *perFrame, *L, *gop, *seed)
	if err != nil {
		fail(err)
	}
	limit := *maxPkts
	if limit <= 0 {
		limit = 10 * cat.NumSymbols()
	}
	opts := trial.Options{MaxPackets: limit}
	opts.Channel.LossRate = *loss
	opts.Channel.BurstLen = *burst

	var csvw *csv.Writer
	if *csvPath != "" {
		f, err := os.OpenFile(*csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fail(err)
		}
		defer f.Close()
		bw := bufio.NewWriter(f)
		defer bw.Flush()
		csvw = csv.NewWriter(bw)
		if fi, _ := f.Stat(); fi.Size() == 0 {
			hdr := []string{"arm", "seed", "loss", "theta0", "alpha", "complete", "packets"}
			for i := 0; i < cat.NumFrames(); i++ {
				hdr = append(hdr, fmt.Sprintf("frame%d", i))
			}
			_ = csvw.Write(hdr)
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"arm", "trials", "complete", "mean packets", "median first frame", "frame 0", "last frame", "frame 0 first", "time"})
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	table.SetCaption(true, fmt.Sprintf("%d frames x %d symbols of %d bytes, loss=%.3f, cap=%d packets, theta0=%.3f alpha=%.3f",
		*frames, *perFrame, *L, *loss, limit, cfg.Bias.Theta0, cfg.Bias.Alpha))

	for _, name := range strings.Split(*arms, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		arm, err := trial.ParseArm(name)
		if err != nil {
			fail(err)
		}
		t0 := time.Now()
		outs, err := trial.Run(cat, arm, cfg, *trials, *seed, opts)
		if err != nil {
			fail(err)
		}
		took := time.Since(t0)
		s := trial.Summarize(outs)
		fmt.Printf("arm=%s complete=%.4f mean=%.1f first=%.1f took=%s\n", arm, s.CompleteRate, s.MeanComplete, s.MedianFirst, took)
		table.Append([]string{
			string(arm),
			strconv.Itoa(s.Trials),
			fmt.Sprintf("%.3f", s.CompleteRate),
			fmt.Sprintf("%.1f", s.MeanComplete),
			fmt.Sprintf("%.1f", s.MedianFirst),
			fmt.Sprintf("%.1f", s.MeanFrame[0]),
			fmt.Sprintf("%.1f", s.MeanFrame[len(s.MeanFrame)-1]),
			fmt.Sprintf("%.3f", s.Ordered),
			took.Round(time.Millisecond).String(),
		})
		if csvw != nil {
			for _, o := range outs {
				row := []string{
					string(o.Arm),
					strconv.FormatInt(o.Seed, 10),
					fmt.Sprintf("%.6f", *loss),
					fmt.Sprintf("%.6f", cfg.Bias.Theta0),
					fmt.Sprintf("%.6f", cfg.Bias.Alpha),
					strconv.FormatBool(o.Complete),
					strconv.Itoa(o.Packets),
				}
				for _, p := range o.FramePackets {
					row = append(row, strconv.Itoa(p))
				}
				_ = csvw.Write(row)
			}
			csvw.Flush()
		}
	}
	table.Render()
}

// synthCatalog builds random frames with an I-frame every gop frames.
func synthCatalog(frames, perFrame, L, gop int, seed int64) (*fec.FrameCatalog, error) {
	rng := rand.New(rand.NewSource(seed))
	data := make([]fec.FrameData, frames)
	for i := range data {
		b := make([]byte, perFrame*L)
		rng.Read(b)
		kind := fec.FrameP
		if (gop <= 0 && i == 0) || (gop > 0 && i%gop == 0) {
			kind = fec.FrameI
		}
		data[i] = fec.FrameData{Kind: kind, Data: b}
	}
	return fec.NewFrameCatalog(L, data)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
