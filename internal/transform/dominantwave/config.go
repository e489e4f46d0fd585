// Package dominantwave implements the reference streaming transform from
// spec §4.5: a dominant-cycle STFT pipeline with causal ridge tracking,
// harmonic masking, phase continuity, and optional prediction, usable in
// both FULL and no-repaint UPDATE modes.
package dominantwave

import (
	"math"

	"github.com/pkg/errors"

	"github.com/sindlinger/pyshared-hub/internal/transform"
)

// Prediction methods (spec §4.5 "Prediction").
const (
	PredictPhase = "phase"
	PredictAR    = "ar"
	PredictHybrid = "hybrid"
	PredictGBMMC = "gbm_mc"
)

// Output modes (spec §4.5 "Output").
const (
	OutputCycle     = "cycle"
	OutputPriceWave = "price_wave"
)

// Scaling conventions (spec §4.5 "Scaling").
const (
	ScalingSpectrum = "spectrum"
	ScalingPSD      = "psd"
)

// Config holds every tunable the dominant-wave pipeline exposes,
// addressable either via META (spec §6 layout) or the channel's params
// map at construction time.
type Config struct {
	Fs            float64
	UseLogPrice   bool
	DetrendLinear bool

	Window   string // rectangular | hann | hamming | blackman | bartlett
	Nperseg  int
	Noverlap int
	Nfft     int

	MinPeriodBars float64
	MaxPeriodBars float64

	RidgePenalty   float64
	ScoreHarmonics int // [1,4]

	SigmaBinsFund   float64
	SigmaBinsHarm   float64
	MaskMaxHarmonic int
	MaskTruncate    float64

	BaselineEnable           bool
	BaselineCutoffPeriodBars float64

	PredictionMethod    string
	ARorder             int
	ARFitLen            int
	ARReg               float64
	MCPaths             int
	MCSeed              int64
	PredictWaveHorizon  int

	OutputMode        string
	UpdateReturnsFull bool
	MinConfidence     float64
	Scaling           string

	MaxKeep int
}

// DefaultConfig returns the pipeline defaults (spec §4.5, §6).
func DefaultConfig() Config {
	return Config{
		Fs:            1,
		UseLogPrice:   false,
		DetrendLinear: true,

		Window:   "hann",
		Nperseg:  64,
		Noverlap: 48,
		Nfft:     128,

		MinPeriodBars: 10,
		MaxPeriodBars: 50,

		RidgePenalty:   0.1,
		ScoreHarmonics: 1,

		SigmaBinsFund:   1.0,
		SigmaBinsHarm:   1.0,
		MaskMaxHarmonic: 2,
		MaskTruncate:    3.0,

		BaselineEnable:           false,
		BaselineCutoffPeriodBars: 200,

		PredictionMethod:   PredictPhase,
		ARorder:            4,
		ARFitLen:           64,
		ARReg:              1e-3,
		MCPaths:            32,
		MCSeed:             1,
		PredictWaveHorizon: 1,

		OutputMode:        OutputCycle,
		UpdateReturnsFull: false,
		MinConfidence:     0.0,
		Scaling:           ScalingSpectrum,

		MaxKeep: 0,
	}
}

// Hop returns nperseg - noverlap.
func (c Config) Hop() int { return c.Nperseg - c.Noverlap }

// Validate checks the structural invariants spec §4.5 names: hop > 0,
// nfft >= nperseg, NOLA for (window, hop), and a non-empty, well-ordered
// period band.
func (c Config) Validate() error {
	if c.Nperseg <= 0 {
		return errors.New("nperseg must be positive")
	}
	hop := c.Hop()
	if hop <= 0 {
		return errors.New("NOLA/window: hop = nperseg - noverlap must be positive")
	}
	if c.Nfft < c.Nperseg {
		return errors.New("NOLA/window: nfft must be >= nperseg")
	}
	if c.MinPeriodBars <= 0 || c.MaxPeriodBars <= 0 {
		return errors.New("invalid period band: periods must be positive")
	}
	if c.MinPeriodBars >= c.MaxPeriodBars {
		return errors.New("invalid period band: min_period_bars must be < max_period_bars")
	}
	if c.BaselineEnable && c.BaselineCutoffPeriodBars <= c.MaxPeriodBars {
		return errors.New("baseline_cutoff_period_bars must exceed max_period_bars")
	}
	if c.ScoreHarmonics < 1 || c.ScoreHarmonics > 4 {
		return errors.New("score_harmonics must be in [1,4]")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("min_confidence must be in [0,1]")
	}

	w := buildWindow(c.Window, c.Nperseg)
	if !nolaSatisfied(w, hop) {
		return errors.New("NOLA/window: (window, hop) pair fails the non-zero overlap-add condition")
	}
	return nil
}

// nolaSatisfied implements the standard sufficient check for the
// non-zero overlap-add condition: the sum of squared window values at
// hop-spaced offsets must never vanish.
func nolaSatisfied(window []float64, hop int) bool {
	n := len(window)
	if hop <= 0 || hop > n {
		return false
	}
	frames := n/hop + 2
	total := n + frames*hop
	norm := make([]float64, total)
	for f := 0; f < frames; f++ {
		offset := f * hop
		for i, w := range window {
			norm[offset+i] += w * w
		}
	}
	start, end := n, total-n
	if end <= start {
		start, end = 0, total
	}
	const eps = 1e-12
	for i := start; i < end; i++ {
		if norm[i] < eps {
			return false
		}
	}
	return true
}

// New is the transform.Factory for "dominant_wave", registered in init().
func New(params map[string]any) (transform.Transform, error) {
	cfg := DefaultConfig()
	cfg.applyParams(params)
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "dominant_wave: invalid configuration")
	}
	return &Transform{cfg: cfg}, nil
}

func (c *Config) applyParams(params map[string]any) {
	c.Fs = transform.Float(params, "fs", c.Fs)
	c.UseLogPrice = transform.Bool(params, "use_log_price", c.UseLogPrice)
	c.DetrendLinear = transform.Bool(params, "detrend_linear", c.DetrendLinear)

	c.Window = transform.String(params, "window", c.Window)
	c.Nperseg = transform.Int(params, "nperseg", c.Nperseg)
	c.Noverlap = transform.Int(params, "noverlap", c.Noverlap)
	c.Nfft = transform.Int(params, "nfft", c.Nfft)

	c.MinPeriodBars = transform.Float(params, "min_period_bars", c.MinPeriodBars)
	c.MaxPeriodBars = transform.Float(params, "max_period_bars", c.MaxPeriodBars)

	c.RidgePenalty = transform.Float(params, "ridge_penalty", c.RidgePenalty)
	c.ScoreHarmonics = transform.Int(params, "score_harmonics", c.ScoreHarmonics)

	c.SigmaBinsFund = transform.Float(params, "sigma_bins_fund", c.SigmaBinsFund)
	c.SigmaBinsHarm = transform.Float(params, "sigma_bins_harm", c.SigmaBinsHarm)
	c.MaskMaxHarmonic = transform.Int(params, "mask_max_harmonic", c.MaskMaxHarmonic)
	c.MaskTruncate = transform.Float(params, "mask_truncate", c.MaskTruncate)

	c.BaselineEnable = transform.Bool(params, "baseline_enable", c.BaselineEnable)
	c.BaselineCutoffPeriodBars = transform.Float(params, "baseline_cutoff_period_bars", c.BaselineCutoffPeriodBars)

	c.PredictionMethod = transform.String(params, "prediction_method", c.PredictionMethod)
	c.ARorder = transform.Int(params, "ar_order", c.ARorder)
	c.ARFitLen = transform.Int(params, "ar_fit_len", c.ARFitLen)
	c.ARReg = transform.Float(params, "ar_reg", c.ARReg)
	c.MCPaths = transform.Int(params, "mc_paths", c.MCPaths)
	c.MCSeed = int64(transform.Int(params, "mc_seed", int(c.MCSeed)))
	c.PredictWaveHorizon = transform.Int(params, "predict_wave_horizon", c.PredictWaveHorizon)

	c.OutputMode = transform.String(params, "output_mode", c.OutputMode)
	c.UpdateReturnsFull = transform.Bool(params, "update_returns_full", c.UpdateReturnsFull)
	c.MinConfidence = transform.Float(params, "min_confidence", c.MinConfidence)
	c.Scaling = transform.String(params, "scaling", c.Scaling)

	c.MaxKeep = transform.Int(params, "max_keep", c.MaxKeep)
}

func wrapPi(x float64) float64 {
	for x > math.Pi {
		x -= 2 * math.Pi
	}
	for x < -math.Pi {
		x += 2 * math.Pi
	}
	return x
}

func init() {
	transform.Register("dominant_wave", New)
}
