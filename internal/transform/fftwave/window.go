package fftwave

import "gonum.org/v1/gonum/dsp/window"

func buildWindow(kind string, n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	switch kind {
	case "hann":
		window.Hann(w)
	case "hamming":
		window.Hamming(w)
	case "blackman":
		window.Blackman(w)
	case "bartlett":
		window.Bartlett(w)
	case "none", "":
		// rectangular
	default:
		window.Blackman(w)
	}
	return w
}

// movingAverageSame computes a zero-padded boxcar moving average the same
// length as x, centered the way numpy.convolve(..., mode="same") centers
// an odd-or-even kernel against a 'full' convolution.
func movingAverageSame(x []float64, k int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if k <= 0 {
		copy(out, x)
		return out
	}
	half := k / 2
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < k; j++ {
			idx := i - half + j
			if idx >= 0 && idx < n {
				sum += x[idx]
			}
		}
		out[i] = sum / float64(k)
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// detrend subtracts either a moving-average trend (when 1 < trendPeriod <
// len(x)) or the plain mean.
func detrend(x []float64, trendPeriod int) []float64 {
	n := len(x)
	if n <= 1 {
		return append([]float64(nil), x...)
	}
	out := make([]float64, n)
	if trendPeriod > 1 && trendPeriod < n {
		trend := movingAverageSame(x, trendPeriod)
		for i := range out {
			out[i] = x[i] - trend[i]
		}
		return out
	}
	m := mean(x)
	for i := range out {
		out[i] = x[i] - m
	}
	return out
}
