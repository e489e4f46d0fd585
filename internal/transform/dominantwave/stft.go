package dominantwave

import "gonum.org/v1/gonum/dsp/fourier"

// STFT wraps a single real-to-complex FFT plan and exposes the windowed,
// overlapping forward transform and its overlap-add inverse, matching
// scipy.signal.stft/istft's "zero" boundary convention.
type STFT struct {
	nperseg int
	hop     int
	nfft    int
	win     []float64
	fft     *fourier.FFT
}

// NewSTFT builds an STFT plan for the given window, hop, and FFT size.
func NewSTFT(win []float64, hop, nfft int) *STFT {
	return &STFT{
		nperseg: len(win),
		hop:     hop,
		nfft:    nfft,
		win:     win,
		fft:     fourier.NewFFT(nfft),
	}
}

// Bins returns the number of one-sided frequency bins (nfft/2 + 1).
func (s *STFT) Bins() int { return s.nfft/2 + 1 }

// Forward pads x by nperseg/2 zeros on each side (scipy's "zero" boundary)
// and returns one complex coefficient vector per hop-spaced frame, plus
// each frame's start offset in the padded signal and the padded length.
func (s *STFT) Forward(x []float64) (frames [][]complex128, starts []int, paddedLen int) {
	pad := s.nperseg / 2
	padded := make([]float64, pad+len(x)+pad)
	copy(padded[pad:], x)
	paddedLen = len(padded)

	if paddedLen < s.nperseg {
		return nil, nil, paddedLen
	}
	nFrames := 1 + (paddedLen-s.nperseg)/s.hop
	frames = make([][]complex128, nFrames)
	starts = make([]int, nFrames)
	seg := make([]float64, s.nfft)
	for i := 0; i < nFrames; i++ {
		start := i * s.hop
		starts[i] = start
		for j := range seg {
			seg[j] = 0
		}
		for j := 0; j < s.nperseg; j++ {
			seg[j] = padded[start+j] * s.win[j]
		}
		frames[i] = s.fft.Coefficients(nil, seg)
	}
	return frames, starts, paddedLen
}

// Inverse reconstructs a padded-domain real signal from (possibly masked)
// per-frame coefficients by windowed overlap-add, then strips the
// nperseg/2 boundary padding back off. Frames whose coefficients were
// never modified round-trip to the original input exactly, up to
// floating-point error.
func (s *STFT) Inverse(frames [][]complex128, starts []int, paddedLen int) []float64 {
	out := make([]float64, paddedLen)
	norm := make([]float64, paddedLen)
	seq := make([]float64, s.nfft)
	for i, coeffs := range frames {
		start := starts[i]
		s.fft.Sequence(seq, coeffs)
		for j := 0; j < s.nperseg; j++ {
			// Sequence is unnormalized; apply 1/nfft and the synthesis window.
			out[start+j] += s.win[j] * seq[j] / float64(s.nfft)
			norm[start+j] += s.win[j] * s.win[j]
		}
	}
	for i := range out {
		if norm[i] > 1e-12 {
			out[i] /= norm[i]
		}
	}
	pad := s.nperseg / 2
	if pad >= len(out) {
		return nil
	}
	end := len(out) - pad
	if end < pad {
		return nil
	}
	return out[pad:end]
}

// FrameCenters converts each frame's padded-domain start offset into the
// index, in the original unpadded signal, nearest to that frame's center.
func (s *STFT) FrameCenters(starts []int) []int {
	pad := s.nperseg / 2
	centers := make([]int, len(starts))
	for i, st := range starts {
		centers[i] = st + s.nperseg/2 - pad
	}
	return centers
}
