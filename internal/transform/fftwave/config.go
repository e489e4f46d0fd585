// Package fftwave implements the multi-cycle FFT decomposition transform
// (spec §4.5 supplemental "fft_waveform"): it tracks up to max_cycles
// strongest periodic components in a configurable period band across
// calls, matching each call's picks to the previous call's by nearest
// period so a given output buffer index stays locked to "the same" cycle
// as it drifts, and renders either one waveform per tracked cycle or
// their sum.
package fftwave

import (
	"github.com/pkg/errors"

	"github.com/sindlinger/pyshared-hub/internal/transform"
)

// Config mirrors the reference plugin's tunables.
type Config struct {
	FFTWindow  int
	MinPeriod  float64
	MaxPeriod  float64
	TrendPeriod int
	WindowType  string // none | hann | hamming | blackman | bartlett

	SumCycles     bool
	SortByPower   bool
	MaxBars       int
	TrackerTolerance float64
	MaxCycles     int
	Buffers       int
	MaxKeep       int
}

// DefaultConfig matches the reference plugin's dataclass defaults.
func DefaultConfig() Config {
	return Config{
		FFTWindow:        4096,
		MinPeriod:        18,
		MaxPeriod:        52,
		TrendPeriod:      1024,
		WindowType:       "blackman",
		SumCycles:        false,
		SortByPower:      true,
		MaxBars:          0,
		TrackerTolerance: 5.0,
		MaxCycles:        12,
		Buffers:          12,
		MaxKeep:          0,
	}
}

func (c *Config) applyParams(params map[string]any) {
	c.FFTWindow = transform.Int(params, "fft_window", c.FFTWindow)
	c.MinPeriod = transform.Float(params, "min_period", c.MinPeriod)
	c.MaxPeriod = transform.Float(params, "max_period", c.MaxPeriod)
	c.TrendPeriod = transform.Int(params, "trend_period", c.TrendPeriod)
	c.WindowType = transform.String(params, "window_type", c.WindowType)
	c.SumCycles = transform.Bool(params, "sum_cycles", c.SumCycles)
	c.SortByPower = transform.Bool(params, "sort_by_power", c.SortByPower)
	c.MaxBars = transform.Int(params, "max_bars", c.MaxBars)
	c.TrackerTolerance = transform.Float(params, "tracker_tolerance", c.TrackerTolerance)
	c.MaxCycles = transform.Int(params, "max_cycles", c.MaxCycles)
	c.Buffers = transform.Int(params, "buffers", c.Buffers)
	c.MaxKeep = transform.Int(params, "max_keep", c.MaxKeep)
}

func (c Config) Validate() error {
	if c.Buffers <= 0 {
		return errors.New("buffers must be positive")
	}
	if c.MinPeriod <= 0 || c.MaxPeriod <= 0 || c.MinPeriod >= c.MaxPeriod {
		return errors.New("invalid period band: min_period must be < max_period, both positive")
	}
	return nil
}

func (c Config) effectiveCycles() int {
	max := c.MaxCycles
	if max <= 0 {
		max = c.Buffers
	}
	if max > c.Buffers {
		max = c.Buffers
	}
	if max < 1 {
		max = 1
	}
	return max
}

// New is the transform.Factory for "fft_waveform", registered in init().
func New(params map[string]any) (transform.Transform, error) {
	cfg := DefaultConfig()
	cfg.applyParams(params)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "fft_waveform: invalid configuration")
	}
	return &Transform{
		cfg:         cfg,
		k:           make([]int, cfg.Buffers),
		amp:         make([]float64, cfg.Buffers),
		phase:       make([]float64, cfg.Buffers),
		active:      make([]bool, cfg.Buffers),
	}, nil
}

func init() {
	transform.Register("fft_waveform", New)
}
