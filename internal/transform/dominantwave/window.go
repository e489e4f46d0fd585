package dominantwave

import "gonum.org/v1/gonum/dsp/window"

// buildWindow constructs an analysis window of the given kind and length,
// mirroring scipy.signal.get_window's name set to the degree spec §4.5
// requires.
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
	case "rectangular", "":
		// already all ones
	default:
		window.Hann(w)
	}
	return w
}
