package oligo

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Record is one FASTA entry.
type Record struct {
	Name string
	Seq  string
}

// WriteFASTA writes records with one sequence line each.
func WriteFASTA(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if _, err := fmt.Fprintf(bw, ">%s\n%s\n", r.Name, r.Seq); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadFASTA reads all records; wrapped sequence lines are joined.
func ReadFASTA(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var out []Record
	var seq strings.Builder
	flush := func() {
		if len(out) > 0 {
			out[len(out)-1].Seq = seq.String()
		}
		seq.Reset()
	}
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		switch {
		case s == "":
		case s[0] == '>':
			flush()
			out = append(out, Record{Name: s[1:]})
		default:
			if len(out) == 0 {
				return nil, fmt.Errorf("oligo: fasta line %d: sequence before header", line)
			}
			seq.WriteString(s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}
