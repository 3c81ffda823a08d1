package fec

import (
	"math"
)

// BiasConfig controls the degree-1 probability schedule.
//
//	theta(t) = min(ThetaMax, Theta0 * exp(-Alpha*t) * m(t))
//
// where t is a frame index and m(t) is IFrameMultiplier for I-frames and 1
// otherwise.
type BiasConfig struct {
	Theta0           float64  `yaml:"theta0"`
	Alpha            float64  `yaml:"alpha"`
	IFrameMultiplier float64  `yaml:"iframe_multiplier"`
	ThetaMax         float64  `yaml:"theta_max"`
	MaxDegree        int      `yaml:"max_degree"`
	Baseline         Baseline `yaml:"baseline"`
	RobustC          float64  `yaml:"robust_c,omitempty"`
	RobustDelta      float64  `yaml:"robust_delta,omitempty"`
}

// DefaultBiasConfig returns the parameters used by the command line tools.
func DefaultBiasConfig() BiasConfig {
	return BiasConfig{
		Theta0:           0.12,
		Alpha:            0.5,
		IFrameMultiplier: 1,
		ThetaMax:         1,
		MaxDegree:        40,
		Baseline:         BaselineIdeal,
	}
}

func (c *BiasConfig) validate() error {
	if !inUnit(c.Theta0) {
		return &ConfigError{Field: "theta0", Value: c.Theta0, Reason: "must be in [0,1]"}
	}
	if math.IsNaN(c.Alpha) || c.Alpha < 0 || math.IsInf(c.Alpha, 0) {
		return &ConfigError{Field: "alpha", Value: c.Alpha, Reason: "must be finite and >= 0"}
	}
	if math.IsNaN(c.IFrameMultiplier) || c.IFrameMultiplier < 1 || math.IsInf(c.IFrameMultiplier, 0) {
		return &ConfigError{Field: "iframe_multiplier", Value: c.IFrameMultiplier, Reason: "must be finite and >= 1"}
	}
	if !inUnit(c.ThetaMax) {
		return &ConfigError{Field: "theta_max", Value: c.ThetaMax, Reason: "must be in [0,1]"}
	}
	if c.MaxDegree < 1 {
		return &ConfigError{Field: "max_degree", Value: float64(c.MaxDegree), Reason: "must be >= 1"}
	}
	if c.Baseline == BaselineRobust {
		if c.RobustC <= 0 || math.IsNaN(c.RobustC) {
			return &ConfigError{Field: "robust_c", Value: c.RobustC, Reason: "must be > 0"}
		}
		if !(c.RobustDelta > 0 && c.RobustDelta < 1) {
			return &ConfigError{Field: "robust_delta", Value: c.RobustDelta, Reason: "must be in (0,1)"}
		}
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

// BiasScheduler maps a frame index to a degree distribution. It is immutable
// and safe for concurrent use.
type BiasScheduler struct {
	cfg    BiasConfig
	layout *Layout
	dmax   int
	// baseline pmf over 2..dmax and its cdf starting at degree 2
	base    []float64
	baseCDF []float64
}

// NewBiasScheduler validates cfg against layout.
func NewBiasScheduler(cfg BiasConfig, layout *Layout) (*BiasScheduler, error) {
	if cfg.Baseline == BaselineRobust {
		if cfg.RobustC == 0 {
			cfg.RobustC = DefaultRobustC
		}
		if cfg.RobustDelta == 0 {
			cfg.RobustDelta = DefaultRobustDelta
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if layout == nil {
		return nil, &CatalogError{Frame: -1, Reason: "nil layout"}
	}
	dmax := cfg.MaxDegree
	if dmax > layout.NumSymbols() {
		dmax = layout.NumSymbols()
	}
	base, err := baselinePMF(cfg.Baseline, dmax, cfg.RobustC, cfg.RobustDelta)
	if err != nil {
		return nil, &ConfigError{Field: "baseline", Value: math.NaN(), Reason: err.Error()}
	}
	return &BiasScheduler{
		cfg:     cfg,
		layout:  layout,
		dmax:    dmax,
		base:    base,
		baseCDF: cdfOf(base, 2),
	}, nil
}

// Config returns the validated configuration.
func (s *BiasScheduler) Config() BiasConfig { return s.cfg }

// MaxDegree is the largest degree the scheduler can produce.
func (s *BiasScheduler) MaxDegree() int { return s.dmax }

// Theta returns the degree-1 probability for frame t. t is clamped to the
// layout. A single-symbol layout always produces degree one regardless of
// Theta.
func (s *BiasScheduler) Theta(t int) float64 {
	t = s.layout.ClampFrame(t)
	th := s.cfg.Theta0 * math.Exp(-s.cfg.Alpha*float64(t))
	if s.layout.Frame(t).Kind == FrameI {
		th *= s.cfg.IFrameMultiplier
	}
	if th > s.cfg.ThetaMax {
		th = s.cfg.ThetaMax
	}
	return th
}

// Distribution returns P(degree=d) for frame t, indexed by d. Entry 0 is
// always zero and the entries sum to one.
func (s *BiasScheduler) Distribution(t int) []float64 {
	out := make([]float64, s.dmax+1)
	if s.dmax < 2 {
		out[1] = 1
		return out
	}
	th := s.Theta(t)
	out[1] = th
	for d := 2; d <= s.dmax; d++ {
		out[d] = (1 - th) * s.base[d]
	}
	return out
}

// degree maps a uniform draw u in [0,1) to a degree for frame t. It is the
// inverse cdf of Distribution(t).
func (s *BiasScheduler) degree(t int, u float64) int {
	th := s.Theta(t)
	if u < th || s.dmax < 2 {
		return 1
	}
	return 2 + searchCDF(s.baseCDF, (u-th)/(1-th))
}
