package dominantwave

import "math"

// buildCycleMask produces a per-bin gain in [0,1] that passes the
// fundamental ridge bin and up to maskMaxHarmonic-1 harmonics, each a
// Gaussian of the given bin-width, truncated past maskTruncate sigmas.
func buildCycleMask(bins int, fundamental float64, cfg Config) []float64 {
	mask := make([]float64, bins)
	addGaussianBump(mask, fundamental, cfg.SigmaBinsFund, cfg.MaskTruncate)
	for h := 2; h <= cfg.MaskMaxHarmonic; h++ {
		center := fundamental * float64(h)
		if center >= float64(bins) {
			break
		}
		addGaussianBump(mask, center, cfg.SigmaBinsHarm, cfg.MaskTruncate)
	}
	for i, v := range mask {
		if v > 1 {
			mask[i] = 1
		}
	}
	return mask
}

func addGaussianBump(mask []float64, center, sigma, truncate float64) {
	if sigma <= 0 {
		sigma = 1
	}
	lo := int(math.Floor(center - truncate*sigma))
	hi := int(math.Ceil(center + truncate*sigma))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(mask) {
		hi = len(mask) - 1
	}
	for k := lo; k <= hi; k++ {
		d := (float64(k) - center) / sigma
		mask[k] += math.Exp(-0.5 * d * d)
	}
}

// buildFundamentalMask is buildCycleMask without the harmonic bumps,
// producing Z_fund (spec §4.5 step 10): the fundamental ridge alone, used
// to derive the end-centered amplitude that phase continuity tracks
// across calls.
func buildFundamentalMask(bins int, fundamental float64, cfg Config) []float64 {
	mask := make([]float64, bins)
	addGaussianBump(mask, fundamental, cfg.SigmaBinsFund, cfg.MaskTruncate)
	for i, v := range mask {
		if v > 1 {
			mask[i] = 1
		}
	}
	return mask
}

// buildBaselineMask passes DC plus everything below the baseline cutoff
// frequency (periods at or above baselineCutoffPeriodBars), used to carry
// a slow trend component alongside the extracted cycle (spec §4.5
// "Baseline").
func buildBaselineMask(bins, nfft int, cutoffPeriodBars float64) []float64 {
	mask := make([]float64, bins)
	mask[0] = 1
	for k := 1; k < bins; k++ {
		period := float64(nfft) / float64(k)
		if period >= cutoffPeriodBars {
			mask[k] = 1
		}
	}
	return mask
}

// applyMask returns new frames with each bin scaled by mask[k]; the
// input frames are left untouched.
func applyMask(frames [][]complex128, mask []float64) [][]complex128 {
	out := make([][]complex128, len(frames))
	for i, f := range frames {
		nf := make([]complex128, len(f))
		for k, c := range f {
			nf[k] = c * complex(mask[k], 0)
		}
		out[i] = nf
	}
	return out
}
