package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// row is one trial written by fountain-eval.
type row struct {
	arm           string
	loss          float64
	theta0, alpha float64
	complete      bool
	packets       int
	frames        []int
}

type group struct {
	arm                 string
	loss, theta0, alpha float64
}

func main() {
	var inPath, outPath string
	flag.StringVar(&inPath, "in", "eval.csv", "per-trial CSV written by fountain-eval -csv")
	flag.StringVar(&outPath, "out", "docs/reports/eval.md", "output markdown path")
	flag.Parse()

	rows, err := loadRows(inPath)
	if err != nil {
		fatalf("%v", err)
	}
	byGroup := map[group][]row{}
	for _, r := range rows {
		g := group{arm: r.arm, loss: r.loss, theta0: r.theta0, alpha: r.alpha}
		byGroup[g] = append(byGroup[g], r)
	}
	groups := make([]group, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.loss != b.loss {
			return a.loss < b.loss
		}
		if a.theta0 != b.theta0 {
			return a.theta0 < b.theta0
		}
		if a.alpha != b.alpha {
			return a.alpha < b.alpha
		}
		return a.arm < b.arm
	})

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fatalf("mkdir %s: %v", filepath.Dir(outPath), err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		fatalf("create %s: %v", outPath, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# Fountain evaluation summary")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Source: %s. Packet counts are distinct packets received; unresolved frames count as the trial's total.\n", inPath)
	fmt.Fprintln(w, "")
	lastLoss := -1.0
	for _, g := range groups {
		if g.loss != lastLoss {
			fmt.Fprintf(w, "## loss=%.3f\n\n", g.loss)
			fmt.Fprintln(w, "| arm | theta0 | alpha | trials | complete | frame 0 p50 | frame 0 p90 | last frame p50 | complete p50 |")
			fmt.Fprintln(w, "|---|---:|---:|---:|---:|---:|---:|---:|---:|")
			lastLoss = g.loss
		}
		items := byGroup[g]
		var f0, fl, done []float64
		ok := 0
		for _, r := range items {
			f0 = append(f0, frameOrTotal(r, 0))
			fl = append(fl, frameOrTotal(r, len(r.frames)-1))
			if r.complete {
				ok++
				done = append(done, float64(r.packets))
			}
		}
		fmt.Fprintf(w, "| %s | %.3f | %.3f | %d | %.3f | %.1f | %.1f | %.1f | %s |\n",
			g.arm, g.theta0, g.alpha, len(items), float64(ok)/float64(len(items)),
			quantile(f0, 0.5), quantile(f0, 0.9), quantile(fl, 0.5), orDash(done, 0.5))
	}
	fmt.Fprintln(w, "")
	w.Flush()
	fmt.Printf("wrote %s\n", outPath)
}

func frameOrTotal(r row, i int) float64 {
	if i < 0 || i >= len(r.frames) || r.frames[i] < 0 {
		return float64(r.packets)
	}
	return float64(r.frames[i])
}

func quantile(v []float64, q float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return s[int(q*float64(len(s)-1)+0.5)]
}

func orDash(v []float64, q float64) string {
	if len(v) == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", quantile(v, q))
}

func loadRows(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no header in %s", path)
	}
	head := recs[0]
	col := map[string]int{}
	for i, v := range head {
		col[strings.TrimSpace(v)] = i
	}
	for _, name := range []string{"arm", "loss", "theta0", "alpha", "complete", "packets", "frame0"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q in header: have %v", name, head)
		}
	}
	first := col["frame0"]
	var out []row
	for _, rec := range recs[1:] {
		if len(rec) <= first {
			continue
		}
		// repeated headers from appended runs
		if rec[col["arm"]] == "arm" {
			continue
		}
		num := func(name string) float64 {
			v, _ := strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 64)
			return v
		}
		r := row{
			arm:    rec[col["arm"]],
			loss:   num("loss"),
			theta0: num("theta0"),
			alpha:  num("alpha"),
		}
		r.complete, _ = strconv.ParseBool(rec[col["complete"]])
		r.packets, _ = strconv.Atoi(rec[col["packets"]])
		for _, v := range rec[first:] {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				n = -1
			}
			r.frames = append(r.frames, n)
		}
		out = append(out, r)
	}
	return out, nil
}

func fatalf(f string, a ...any) { fmt.Fprintf(os.Stderr, f+"\n", a...); os.Exit(1) }
