package fftwave

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

// metaDispatchCode is the leading tag this transform's META vectors carry,
// carried over from the plugin protocol it is grounded on (spec §6).
const metaDispatchCode = 101

// Transform tracks up to cfg.Buffers periodic components across calls.
type Transform struct {
	cfg Config

	series []float64 // chronological, accumulated
	dirty  bool

	k      []int
	amp    []float64
	phase  []float64
	active []bool

	lastPeriods []float64
	lastNfft    int
	lastT0      int
}

// Meta applies a META vector laid out index-for-index after the plugin's
// leading dispatch tag, per spec §6.
func (t *Transform) Meta(vec []float64, ts int64) error {
	if len(vec) < 2 || int(vec[0]) != metaDispatchCode {
		return nil
	}
	if len(vec) > 1 {
		t.cfg.FFTWindow = int(vec[1])
	}
	if len(vec) > 2 {
		t.cfg.MinPeriod = vec[2]
	}
	if len(vec) > 3 {
		t.cfg.MaxPeriod = vec[3]
	}
	if len(vec) > 4 {
		t.cfg.TrendPeriod = int(vec[4])
	}
	// vec[5] is "bandwidth" in the source protocol; unused by this build.
	if len(vec) > 6 {
		t.cfg.WindowType = windowCodeToString(int(vec[6]))
	}
	if len(vec) > 7 {
		t.cfg.SumCycles = vec[7] > 0
	}
	if len(vec) > 8 {
		t.cfg.SortByPower = vec[8] > 0
	}
	if len(vec) > 9 {
		t.cfg.MaxBars = int(vec[9])
	}
	if len(vec) > 11 {
		t.cfg.TrackerTolerance = vec[11]
	}
	if len(vec) > 12 {
		t.cfg.MaxCycles = int(vec[12])
	}
	t.dirty = true
	return nil
}

func windowCodeToString(code int) string {
	switch code {
	case 1:
		return "hann"
	case 2:
		return "hamming"
	case 3:
		return "blackman"
	case 4:
		return "bartlett"
	default:
		return "none"
	}
}

// Full replaces the entire tracked series, recomputes the cycle set, and
// renders either one waveform per tracked cycle (concatenated) or their
// sum, newest-first (spec §6 "concatenated buffers" convention).
func (t *Transform) Full(seriesNewestFirst []float64, ts int64) []float64 {
	s := reversedClean(seriesNewestFirst)
	if t.cfg.MaxBars > 0 && len(s) > t.cfg.MaxBars {
		s = s[len(s)-t.cfg.MaxBars:]
	}
	t.series = s
	t.dirty = true
	t.computeCycles()
	return t.renderFull()
}

// Update appends new bars (also newest-first) to the tracked series,
// trims to max_bars (or, when that is unset, max_keep), recomputes only if
// dirty or never computed, and renders one value per buffer at the newest
// sample, or a single summed value when sum_cycles is set.
func (t *Transform) Update(seriesNewestFirst []float64, ts int64) []float64 {
	if t.series == nil {
		return nil
	}
	upd := reversedClean(seriesNewestFirst)
	if len(upd) > 0 {
		t.series = append(t.series, upd...)
		maxKeep := t.cfg.MaxBars
		if maxKeep <= 0 {
			maxKeep = t.cfg.MaxKeep
		}
		if maxKeep > 0 && len(t.series) > maxKeep {
			t.series = t.series[len(t.series)-maxKeep:]
			t.dirty = true
		}
	}
	if t.dirty || t.lastNfft <= 0 {
		t.computeCycles()
	}
	return t.renderUpdate()
}

func reversedClean(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[len(xs)-1-i] = v
	}
	return out
}

func (t *Transform) computeCycles() {
	for i := range t.active {
		t.active[i] = false
		t.amp[i] = 0
		t.phase[i] = 0
		t.k[i] = 0
	}
	t.lastPeriods = nil
	t.lastNfft = 0
	t.lastT0 = 0
	t.dirty = false

	nTotal := len(t.series)
	if nTotal < 8 {
		return
	}

	nfft := t.cfg.FFTWindow
	if nfft <= 0 {
		nfft = nTotal
	}
	if nfft > nTotal {
		nfft = nTotal
	}
	if nfft < 8 {
		nfft = 8
	}
	if nfft > nTotal {
		return
	}

	x := append([]float64(nil), t.series[nTotal-nfft:]...)
	x = detrend(x, t.cfg.TrendPeriod)

	win := buildWindow(t.cfg.WindowType, nfft)
	for i := range x {
		x[i] *= win[i]
	}

	fft := fourier.NewFFT(nfft)
	coeffs := fft.Coefficients(nil, x)
	if len(coeffs) <= 1 {
		return
	}

	var cands []candidate
	for k := 1; k < len(coeffs); k++ {
		period := float64(nfft) / float64(k)
		if period >= t.cfg.MinPeriod && period <= t.cfg.MaxPeriod {
			re, im := real(coeffs[k]), imag(coeffs[k])
			cands = append(cands, candidate{k: k, period: period, power: re*re + im*im})
		}
	}
	if len(cands) == 0 {
		return
	}

	maxCycles := t.cfg.effectiveCycles()
	selected := t.selectIndices(cands, maxCycles)
	if len(selected) == 0 {
		return
	}

	t.lastNfft = nfft
	t.lastT0 = nTotal - nfft

	for i, ci := range selected {
		if i >= t.cfg.Buffers {
			break
		}
		c := cands[ci]
		amp := (2.0 / float64(nfft)) * math.Sqrt(c.power)
		phase := math.Atan2(imag(coeffs[c.k]), real(coeffs[c.k]))
		t.k[i] = c.k
		t.amp[i] = amp
		t.phase[i] = phase
		t.active[i] = true
		t.lastPeriods = append(t.lastPeriods, c.period)
	}
}

type candidate struct {
	k      int
	period float64
	power  float64
}

// selectIndices greedily re-locks each of the previous call's tracked
// periods to the nearest still-eligible candidate (within tolerance),
// then fills any remaining slots by strength (or period) order, matching
// the reference plugin's tracker.
func (t *Transform) selectIndices(cands []candidate, maxCycles int) []int {
	selected := make([]int, 0, maxCycles)
	used := make(map[int]bool, maxCycles)

	tol := t.cfg.TrackerTolerance
	if tol > 0 {
		for _, prev := range t.lastPeriods {
			best := -1
			bestPower := math.Inf(-1)
			bestDiff := math.Inf(1)
			for i, c := range cands {
				if used[i] {
					continue
				}
				diff := math.Abs(c.period - prev)
				if diff > tol {
					continue
				}
				if t.cfg.SortByPower {
					if c.power > bestPower {
						bestPower = c.power
						best = i
					}
				} else if diff < bestDiff {
					bestDiff = diff
					best = i
				}
			}
			if best >= 0 {
				selected = append(selected, best)
				used[best] = true
			}
		}
	}

	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	if t.cfg.SortByPower {
		sort.Slice(order, func(a, b int) bool { return cands[order[a]].power > cands[order[b]].power })
	} else {
		sort.Slice(order, func(a, b int) bool { return cands[order[a]].period < cands[order[b]].period })
	}
	for _, i := range order {
		if used[i] {
			continue
		}
		selected = append(selected, i)
		used[i] = true
		if len(selected) >= maxCycles {
			break
		}
	}
	if len(selected) > maxCycles {
		selected = selected[:maxCycles]
	}
	return selected
}

func (t *Transform) renderFull() []float64 {
	nTotal := len(t.series)
	if nTotal == 0 {
		return nil
	}
	freqBase := 2 * math.Pi / float64(maxInt(t.lastNfft, 1))
	t0 := float64(t.lastT0)

	if t.cfg.SumCycles {
		acc := make([]float64, nTotal)
		for i := 0; i < t.cfg.Buffers; i++ {
			if !t.active[i] {
				continue
			}
			addWave(acc, freqBase, float64(t.k[i]), t.amp[i], t.phase[i], t0)
		}
		return reverseFloat(acc)
	}

	out := make([]float64, 0, nTotal*t.cfg.Buffers)
	for i := 0; i < t.cfg.Buffers; i++ {
		wave := make([]float64, nTotal)
		if t.active[i] {
			addWave(wave, freqBase, float64(t.k[i]), t.amp[i], t.phase[i], t0)
		}
		out = append(out, reverseFloat(wave)...)
	}
	return out
}

func (t *Transform) renderUpdate() []float64 {
	nTotal := len(t.series)
	if nTotal == 0 || t.lastNfft <= 0 {
		return nil
	}
	freqBase := 2 * math.Pi / float64(t.lastNfft)
	tNow := float64(nTotal - 1)
	t0 := float64(t.lastT0)

	if t.cfg.SumCycles {
		var val float64
		for i := 0; i < t.cfg.Buffers; i++ {
			if !t.active[i] {
				continue
			}
			val += t.amp[i] * math.Cos(freqBase*float64(t.k[i])*(tNow-t0)+t.phase[i])
		}
		return []float64{val}
	}

	out := make([]float64, t.cfg.Buffers)
	for i := 0; i < t.cfg.Buffers; i++ {
		if !t.active[i] {
			continue
		}
		out[i] = t.amp[i] * math.Cos(freqBase*float64(t.k[i])*(tNow-t0)+t.phase[i])
	}
	return out
}

func addWave(dst []float64, freqBase, k, amp, phase, t0 float64) {
	for i := range dst {
		dst[i] += amp * math.Cos(freqBase*k*(float64(i)-t0)+phase)
	}
}

func reverseFloat(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[len(xs)-1-i] = v
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
