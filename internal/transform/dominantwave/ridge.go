package dominantwave

import "math"

// RidgeResult is the dominant-cycle estimate for a single analysis frame.
type RidgeResult struct {
	BinIdx     int     // nearest FFT bin
	BinRefined float64 // phase-vocoder-refined fractional bin
	PeriodBars float64
	Amplitude  float64
	Phase      float64
	Confidence float64
}

// bandIndices returns the FFT bin indices whose period (in bars, for
// fs == 1 the period-in-bars and period-in-samples coincide) falls
// within [minPeriodBars, maxPeriodBars].
func bandIndices(nfft int, minPeriodBars, maxPeriodBars float64) []int {
	bins := nfft/2 + 1
	var out []int
	for k := 1; k < bins; k++ {
		period := float64(nfft) / float64(k)
		if period >= minPeriodBars && period <= maxPeriodBars {
			out = append(out, k)
		}
	}
	return out
}

// harmonicScore sums |coef[k]|^2 across the fundamental and up to
// scoreHarmonics-1 additional harmonics, as long as each harmonic bin is
// in range.
func harmonicScore(frame []complex128, k, scoreHarmonics int) float64 {
	total := cmplxAbs2(frame[k])
	for h := 2; h <= scoreHarmonics; h++ {
		hk := h * k
		if hk >= len(frame) {
			break
		}
		total += cmplxAbs2(frame[hk])
	}
	return total
}

func cmplxAbs2(c complex128) float64 {
	re, im := real(c), imag(c)
	return re*re + im*im
}

// selectRidge picks the dominant bin within band, applying a penalty
// proportional to squared distance from the previous frame's bin so the
// tracker prefers continuity (spec §4.5 "causal ridge tracking").
func selectRidge(frame []complex128, band []int, cfg Config, prevBin int, havePrev bool) RidgeResult {
	if len(band) == 0 {
		return RidgeResult{}
	}
	bestK := band[0]
	bestScore := math.Inf(-1)
	var bandPower float64
	for _, k := range band {
		score := harmonicScore(frame, k, cfg.ScoreHarmonics)
		bandPower += cmplxAbs2(frame[k])
		if havePrev {
			d := float64(k - prevBin)
			score -= cfg.RidgePenalty * d * d
		}
		if score > bestScore {
			bestScore = score
			bestK = k
		}
	}

	amp := math.Sqrt(cmplxAbs2(frame[bestK])) * 2 / float64(cfg.Nfft)
	phase := math.Atan2(imag(frame[bestK]), real(frame[bestK]))
	var confidence float64
	if bandPower > 1e-18 {
		confidence = cmplxAbs2(frame[bestK]) / bandPower
	}
	return RidgeResult{
		BinIdx:     bestK,
		BinRefined: float64(bestK),
		PeriodBars: float64(cfg.Nfft) / float64(bestK),
		Amplitude:  amp,
		Phase:      phase,
		Confidence: confidence,
	}
}

// refineBin applies one phase-vocoder step: the phase advance between two
// consecutive frames at a fixed bin, compared against the advance a pure
// tone at that bin would produce, yields a fractional bin correction that
// sharpens the period estimate beyond the nfft/hop resolution limit.
func refineBin(prevPhase, curPhase float64, k, hop, nfft int) float64 {
	expected := 2 * math.Pi * float64(k) * float64(hop) / float64(nfft)
	delta := wrapPi(curPhase - prevPhase - expected)
	correctionCycles := delta / (2 * math.Pi) * float64(nfft) / float64(hop)
	return float64(k) + correctionCycles
}
