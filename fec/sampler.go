package fec

import (
	"fmt"
	"math"
)

// Rand is the random source used by the sampler. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// NeighborPolicy picks the symbols of a degree>1 packet beyond its anchor.
type NeighborPolicy interface {
	// Pick appends n distinct symbols that are not already in chosen and
	// returns the extended slice. n never exceeds the number of unchosen
	// symbols.
	Pick(rng Rand, layout *Layout, focus int, chosen []SymbolID, n int) []SymbolID
}

// PolicyName selects a NeighborPolicy in configuration files.
type PolicyName string

const (
	PolicyUniform PolicyName = "uniform"
	PolicyDecay   PolicyName = "decay"
)

// UniformPolicy draws uniformly among all not-yet-chosen symbols.
type UniformPolicy struct{}

func (UniformPolicy) Pick(rng Rand, layout *Layout, _ int, chosen []SymbolID, n int) []SymbolID {
	total := layout.NumSymbols()
	if 2*(len(chosen)+n) <= total {
		// sparse: rejection is cheap
		for n > 0 {
			id := SymbolID(rng.Intn(total))
			if containsID(chosen, id) {
				continue
			}
			chosen = append(chosen, id)
			n--
		}
		return chosen
	}
	// dense: partial Fisher-Yates over the unchosen ids
	rest := make([]SymbolID, 0, total-len(chosen))
	for id := 0; id < total; id++ {
		if !containsID(chosen, SymbolID(id)) {
			rest = append(rest, SymbolID(id))
		}
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(rest)-i)
		rest[i], rest[j] = rest[j], rest[i]
		chosen = append(chosen, rest[i])
	}
	return chosen
}

// DecayPolicy weights every symbol by exp(-Beta*frame), favoring early frames.
// All weights stay positive so every symbol remains reachable.
type DecayPolicy struct {
	Beta   float64
	layout *Layout
	cdf    []float64 // over frames, weighted by symbol count
}

// NewDecayPolicy precomputes the frame weights for layout.
func NewDecayPolicy(beta float64, layout *Layout) (*DecayPolicy, error) {
	if math.IsNaN(beta) || math.IsInf(beta, 0) || beta < 0 {
		return nil, &ConfigError{Field: "decay_beta", Value: beta, Reason: "must be finite and >= 0"}
	}
	pmf := make([]float64, layout.NumFrames())
	var sum float64
	for i, f := range layout.frames {
		pmf[i] = float64(f.NumSymbols) * math.Exp(-beta*float64(i))
		sum += pmf[i]
	}
	for i := range pmf {
		pmf[i] /= sum
	}
	return &DecayPolicy{Beta: beta, layout: layout, cdf: cdfOf(pmf, 0)}, nil
}

func (p *DecayPolicy) Pick(rng Rand, layout *Layout, focus int, chosen []SymbolID, n int) []SymbolID {
	// frames far out may carry a weight that underflows to zero; fall back to
	// uniform once rejections pile up
	budget := 64 * n
	for n > 0 && budget > 0 {
		f := layout.frames[searchCDF(p.cdf, rng.Float64())]
		id := f.Symbol(rng.Intn(f.NumSymbols))
		if containsID(chosen, id) {
			budget--
			continue
		}
		chosen = append(chosen, id)
		n--
	}
	if n > 0 {
		chosen = UniformPolicy{}.Pick(rng, layout, focus, chosen, n)
	}
	return chosen
}

func containsID(ids []SymbolID, id SymbolID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// SamplerConfig controls where degree-1 packets land and which policy fills
// degree>1 packets.
type SamplerConfig struct {
	// FocusWeight is the probability that a degree-1 packet covers a symbol of
	// the focus frame.
	FocusWeight float64 `yaml:"focus_weight"`
	// IFrameWeight is the probability that a degree-1 packet covers the I-frame
	// the focus frame depends on. The rest of the mass goes to a uniform pick.
	IFrameWeight float64    `yaml:"iframe_weight"`
	Policy       PolicyName `yaml:"policy"`
	DecayBeta    float64    `yaml:"decay_beta,omitempty"`
}

// DefaultSamplerConfig leaves a little degree-1 mass for uniform picks so
// that every symbol keeps a positive selection probability.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{FocusWeight: 0.9, Policy: PolicyUniform}
}

func (c *SamplerConfig) validate() error {
	if !inUnit(c.FocusWeight) {
		return &ConfigError{Field: "focus_weight", Value: c.FocusWeight, Reason: "must be in [0,1]"}
	}
	if !inUnit(c.IFrameWeight) {
		return &ConfigError{Field: "iframe_weight", Value: c.IFrameWeight, Reason: "must be in [0,1]"}
	}
	if c.FocusWeight+c.IFrameWeight > 1 {
		return &ConfigError{Field: "iframe_weight", Value: c.IFrameWeight, Reason: "focus_weight+iframe_weight exceeds 1"}
	}
	return nil
}

// DegreeSampler draws the neighbor set of one packet.
type DegreeSampler struct {
	sched  *BiasScheduler
	layout *Layout
	cfg    SamplerConfig
	policy NeighborPolicy
}

// NewDegreeSampler builds a sampler. A nil policy is derived from cfg.Policy.
func NewDegreeSampler(sched *BiasScheduler, cfg SamplerConfig, policy NeighborPolicy) (*DegreeSampler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	layout := sched.layout
	if policy == nil {
		switch cfg.Policy {
		case PolicyUniform, "":
			policy = UniformPolicy{}
		case PolicyDecay:
			p, err := NewDecayPolicy(cfg.DecayBeta, layout)
			if err != nil {
				return nil, err
			}
			policy = p
		default:
			return nil, &ConfigError{Field: "policy", Value: math.NaN(), Reason: fmt.Sprintf("unknown policy %q", cfg.Policy)}
		}
	}
	return &DegreeSampler{sched: sched, layout: layout, cfg: cfg, policy: policy}, nil
}

// Scheduler returns the bias scheduler backing the sampler.
func (s *DegreeSampler) Scheduler() *BiasScheduler { return s.sched }

// Layout returns the catalog layout.
func (s *DegreeSampler) Layout() *Layout { return s.layout }

// Draw returns the distinct neighbors of one packet whose focus is the given
// frame. The degree is len of the result.
func (s *DegreeSampler) Draw(rng Rand, focus int) []SymbolID {
	focus = s.layout.ClampFrame(focus)
	d := s.sched.degree(focus, rng.Float64())
	if d == 1 {
		return []SymbolID{s.pickSingle(rng, focus)}
	}
	f := s.layout.frames[focus]
	out := make([]SymbolID, 1, d)
	out[0] = f.Symbol(rng.Intn(f.NumSymbols))
	return s.policy.Pick(rng, s.layout, focus, out, d-1)
}

func (s *DegreeSampler) pickSingle(rng Rand, focus int) SymbolID {
	u := rng.Float64()
	var f Frame
	switch {
	case u < s.cfg.IFrameWeight:
		f = s.layout.frames[s.layout.ReferenceFrame(focus)]
	case u < s.cfg.IFrameWeight+s.cfg.FocusWeight:
		f = s.layout.frames[focus]
	default:
		return SymbolID(rng.Intn(s.layout.NumSymbols()))
	}
	return f.Symbol(rng.Intn(f.NumSymbols))
}
