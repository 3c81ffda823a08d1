package oligo

import "fmt"

const alphabet = "ACGT"

// ToBases maps every byte to four bases, most significant bits first.
func ToBases(b []byte) string {
	out := make([]byte, 0, 4*len(b))
	for _, v := range b {
		out = append(out, alphabet[v>>6], alphabet[(v>>4)&3], alphabet[(v>>2)&3], alphabet[v&3])
	}
	return string(out)
}

// FromBases is the inverse of ToBases.
func FromBases(seq string) ([]byte, error) {
	if len(seq)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrBadBase, len(seq))
	}
	out := make([]byte, len(seq)/4)
	for i := 0; i < len(seq); i++ {
		var v byte
		switch seq[i] {
		case 'A', 'a':
			v = 0
		case 'C', 'c':
			v = 1
		case 'G', 'g':
			v = 2
		case 'T', 't':
			v = 3
		default:
			return nil, fmt.Errorf("%w %q at %d", ErrBadBase, seq[i], i)
		}
		out[i/4] = out[i/4]<<2 | v
	}
	return out, nil
}

// LongestRun returns the length of the longest single-base run.
func LongestRun(seq string) int {
	best, run := 0, 0
	for i := 0; i < len(seq); i++ {
		if i > 0 && seq[i] == seq[i-1] {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// GCContent returns the share of G and C bases.
func GCContent(seq string) float64 {
	if len(seq) == 0 {
		return 0
	}
	gc := 0
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'G', 'C', 'g', 'c':
			gc++
		}
	}
	return float64(gc) / float64(len(seq))
}
