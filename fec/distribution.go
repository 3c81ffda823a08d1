package fec

import (
	"fmt"
	"math"
	"sort"
)

// Baseline names the degree distribution used for degrees above one.
type Baseline string

const (
	BaselineIdeal  Baseline = "ideal"
	BaselineRobust Baseline = "robust"
	BaselineRaptor Baseline = "raptor"
)

// Robust soliton defaults.
const (
	DefaultRobustC     = 0.1
	DefaultRobustDelta = 0.5
)

// raptorDegreeTable is the RFC 5053 degree generator table: degree d is drawn
// when v < raptorDegreeTable[i].f, with v uniform in [0, 2^20).
var raptorDegreeTable = []struct {
	f uint32
	d int
}{
	{10241, 1},
	{491582, 2},
	{712794, 3},
	{831695, 4},
	{948446, 10},
	{1032189, 11},
	{1048576, 40},
}

// baselinePMF returns the baseline probabilities over degrees 2..dmax,
// renormalized to sum to one. Index is the degree; entries 0 and 1 are zero.
func baselinePMF(kind Baseline, dmax int, c, delta float64) ([]float64, error) {
	pmf := make([]float64, dmax+1)
	if dmax < 2 {
		return pmf, nil
	}
	switch kind {
	case BaselineIdeal, "":
		for d := 2; d <= dmax; d++ {
			pmf[d] = 1 / float64(d*(d-1))
		}
	case BaselineRobust:
		k := float64(dmax)
		r := c * math.Log(k/delta) * math.Sqrt(k)
		spike := int(math.Floor(k / r))
		for d := 2; d <= dmax; d++ {
			rho := 1 / float64(d*(d-1))
			var tau float64
			switch {
			case d < spike:
				tau = r / (float64(d) * k)
			case d == spike:
				tau = r * math.Log(r/delta) / k
			}
			if tau < 0 {
				tau = 0
			}
			pmf[d] = rho + tau
		}
	case BaselineRaptor:
		prev := uint32(0)
		for _, e := range raptorDegreeTable {
			mass := float64(e.f-prev) / float64(1<<20)
			prev = e.f
			if e.d >= 2 && e.d <= dmax {
				pmf[e.d] += mass
			}
		}
	default:
		return nil, fmt.Errorf("fec: unknown baseline %q", kind)
	}
	var sum float64
	for d := 2; d <= dmax; d++ {
		sum += pmf[d]
	}
	if sum <= 0 {
		return baselinePMF(BaselineIdeal, dmax, c, delta)
	}
	for d := 2; d <= dmax; d++ {
		pmf[d] /= sum
	}
	return pmf, nil
}

// cdfOf returns the cumulative sums of pmf[lo:]. The last entry is forced to
// one so that a uniform draw always lands.
func cdfOf(pmf []float64, lo int) []float64 {
	if lo >= len(pmf) {
		return nil
	}
	cdf := make([]float64, len(pmf)-lo)
	var acc float64
	for i := lo; i < len(pmf); i++ {
		acc += pmf[i]
		cdf[i-lo] = acc
	}
	cdf[len(cdf)-1] = 1
	return cdf
}

// searchCDF returns the offset of the first cdf entry greater than u.
func searchCDF(cdf []float64, u float64) int {
	i := sort.Search(len(cdf), func(i int) bool { return cdf[i] > u })
	if i == len(cdf) {
		i = len(cdf) - 1
	}
	return i
}
