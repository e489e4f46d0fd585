package dominantwave

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Transform is the stateful dominant-wave pipeline instance created per
// channel by New. It satisfies transform.Transform.
type Transform struct {
	cfg Config

	initialized bool

	priceBuf  []float64 // chronological, the buffer Update maintains between Full snapshots
	lastBarTs int64

	zPrev   complex128 // previous call's end-centered amp*exp(i*phase), spec §4.5 step 13
	phiCont float64    // accumulated continuous phase across calls
}

// Meta applies a new parameter vector (spec §6) and invalidates phase
// continuity, since a shape change (window, nperseg, band, ...) makes the
// previous call's ridge state meaningless. The price buffer itself
// survives: only the derived STFT/phase state is stale, not the history.
func (t *Transform) Meta(vec []float64, ts int64) error {
	next := t.cfg
	if err := next.applyMetaVector(vec); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return errors.Wrap(err, "dominant_wave: META rejected")
	}
	t.cfg = next
	t.initialized = false
	t.zPrev = 0
	t.phiCont = 0
	return nil
}

// Full recomputes the dominant-cycle extraction end to end over the
// supplied window and returns a same-length, newest-first reconstruction
// (spec §4.5, §4.4).
func (t *Transform) Full(seriesNewestFirst []float64, ts int64) []float64 {
	n := len(seriesNewestFirst)
	if n == 0 {
		return nil
	}
	chron := reversed(seriesNewestFirst)
	t.priceBuf = chron
	t.lastBarTs = ts

	ys := chron
	if t.cfg.UseLogPrice {
		ys = logSeries(chron)
	}
	detrended, trend, _ := detrendSeries(ys, t.cfg.DetrendLinear)

	win := buildWindow(t.cfg.Window, t.cfg.Nperseg)
	stftPlan := NewSTFT(win, t.cfg.Hop(), t.cfg.Nfft)
	frames1, _, _ := stftPlan.Forward(detrended)
	band := bandIndices(t.cfg.Nfft, t.cfg.MinPeriodBars, t.cfg.MaxPeriodBars)
	if len(frames1) == 0 || len(band) == 0 {
		t.initialized = false
		return make([]float64, n)
	}
	ridge1 := trackRidge(frames1, band, t.cfg, stftPlan.hop)

	// Future extension (spec §4.5 steps 8-9): generate enough future
	// samples for the end-centered frame to exist, then run a second
	// STFT pass over the extended signal.
	horizon := t.cfg.Nperseg / 2
	if t.cfg.PredictWaveHorizon > horizon {
		horizon = t.cfg.PredictWaveHorizon
	}
	future := t.predictExtension(ridge1, detrended, horizon)
	extended := make([]float64, 0, len(detrended)+len(future))
	extended = append(extended, detrended...)
	extended = append(extended, future...)

	frames2, starts2, paddedLen2 := stftPlan.Forward(extended)
	if len(frames2) == 0 {
		t.initialized = false
		return make([]float64, n)
	}
	ridge := trackRidge(frames2, band, t.cfg, stftPlan.hop)

	bins := stftPlan.Bins()
	waveMask := buildCycleMask(bins, ridge.BinRefined, t.cfg)
	fundMask := buildFundamentalMask(bins, ridge.BinRefined, t.cfg)
	var baseMask []float64
	if t.cfg.BaselineEnable {
		baseMask = buildBaselineMask(bins, t.cfg.Nfft, t.cfg.BaselineCutoffPeriodBars)
	}

	reconWave := stftPlan.Inverse(applyMask(frames2, waveMask), starts2, paddedLen2)
	reconFund := stftPlan.Inverse(applyMask(frames2, fundMask), starts2, paddedLen2)
	if reconWave == nil || reconFund == nil || len(reconWave) < n || len(reconFund) < n {
		t.initialized = false
		return make([]float64, n)
	}
	reconWave = reconWave[:n]
	reconFund = reconFund[:n]
	var reconBase []float64
	if baseMask != nil {
		reconBase = stftPlan.Inverse(applyMask(frames2, baseMask), starts2, paddedLen2)
		if reconBase == nil || len(reconBase) < n {
			reconBase = make([]float64, n)
		} else {
			reconBase = reconBase[:n]
		}
	}

	if ridge.Confidence < t.cfg.MinConfidence {
		for i := range reconWave {
			reconWave[i] = 0
		}
		for i := range reconFund {
			reconFund[i] = 0
		}
		ridge.Amplitude = 0
	}
	// Z_fund's end-centered amplitude feeds cross-call phase continuity
	// (spec §4.5 step 13): it is the actual reconstructed fundamental,
	// not the raw coefficient magnitude.
	ampEnd := math.Abs(reconFund[n-1])
	ridge.Amplitude = ampEnd
	phiEndRaw := ridge.Phase
	if !t.initialized {
		t.phiCont = phiEndRaw
		t.zPrev = cmplx.Rect(ampEnd, phiEndRaw)
	} else if ampEnd > 0 {
		zNow := cmplx.Rect(ampEnd, phiEndRaw)
		dPhi := cmplx.Phase(zNow * cmplx.Conj(t.zPrev))
		t.phiCont += dPhi
		t.zPrev = zNow
	}

	out := make([]float64, n)
	copy(out, reconWave)
	if t.cfg.OutputMode == OutputPriceWave {
		for i := range out {
			if reconBase != nil {
				out[i] += reconBase[i]
			}
			out[i] += trend[i]
			if t.cfg.UseLogPrice {
				out[i] = math.Exp(out[i])
			}
		}
	}

	t.initialized = true

	return reversed(out)
}

// Update implements the spec §4.3/§4.5 "update" semantics: append (or, if
// ts repeats the stored bar, replace) the buffered price history and
// re-run Full end to end, returning only the newest sample unless
// update_returns_full is set. If the buffer is empty, it runs Full on the
// supplied series, with the same newest-sample-only return rule.
func (t *Transform) Update(seriesNewestFirst []float64, ts int64) []float64 {
	if len(t.priceBuf) == 0 {
		full := t.Full(seriesNewestFirst, ts)
		if t.cfg.UpdateReturnsFull || len(full) == 0 {
			return full
		}
		return full[:1]
	}

	upd := reversed(seriesNewestFirst)
	if len(upd) > 0 {
		if ts == t.lastBarTs {
			replaceLen := len(upd)
			if replaceLen > len(t.priceBuf) {
				replaceLen = len(t.priceBuf)
			}
			copy(t.priceBuf[len(t.priceBuf)-replaceLen:], upd[len(upd)-replaceLen:])
		} else {
			t.priceBuf = append(t.priceBuf, upd...)
			if t.cfg.MaxKeep > 0 && len(t.priceBuf) > t.cfg.MaxKeep {
				t.priceBuf = t.priceBuf[len(t.priceBuf)-t.cfg.MaxKeep:]
			}
		}
	}

	full := t.Full(reversed(t.priceBuf), ts)
	if t.cfg.UpdateReturnsFull || len(full) == 0 {
		return full
	}
	return full[:1]
}

// trackRidge runs the causal ridge selector frame by frame (oldest to
// newest), refining the winning bin with a phase-vocoder correction once
// a previous frame is available, and returns the last frame's estimate
// (the end-centered dominant cycle, spec §4.5 "end projection").
func trackRidge(frames [][]complex128, band []int, cfg Config, hop int) RidgeResult {
	var ridge RidgeResult
	havePrev := false
	var prevBin int
	var prevPhase float64
	for _, f := range frames {
		r := selectRidge(f, band, cfg, prevBin, havePrev)
		if havePrev {
			refined := refineBin(prevPhase, r.Phase, r.BinIdx, hop, cfg.Nfft)
			if refined > 0.5 {
				r.BinRefined = refined
				r.PeriodBars = float64(cfg.Nfft) / refined
			}
		}
		prevBin = r.BinIdx
		prevPhase = r.Phase
		havePrev = true
		ridge = r
	}
	return ridge
}

// predictExtension dispatches to the configured prediction method
// (spec §4.5 "Prediction"), generating exactly horizon future samples.
func (t *Transform) predictExtension(ridge RidgeResult, detrended []float64, horizon int) []float64 {
	switch t.cfg.PredictionMethod {
	case PredictAR:
		fitLen := t.cfg.ARFitLen
		if fitLen <= 0 || fitLen > len(detrended) {
			fitLen = len(detrended)
		}
		history := detrended[len(detrended)-fitLen:]
		coeffs, _ := fitAR(history, t.cfg.ARorder, t.cfg.ARReg)
		return predictAR(history, coeffs, horizon)
	case PredictHybrid:
		return predictHybrid(ridge, detrended, t.cfg, horizon)
	case PredictGBMMC:
		return predictGBMMC(detrended, t.cfg, horizon)
	default:
		return predictPhase(ridge, horizon)
	}
}

func reversed(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[len(xs)-1-i] = v
	}
	return out
}

func logSeries(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		if v <= 0 {
			v = 1e-9
		}
		out[i] = math.Log(v)
	}
	return out
}

// detrendSeries removes either an OLS linear trend or the series mean
// and returns the residual, the trend itself, and (for linear detrend)
// its per-bar slope.
func detrendSeries(ys []float64, linear bool) (detrended, trend []float64, slope float64) {
	n := len(ys)
	trend = make([]float64, n)
	if linear && n >= 2 {
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = float64(i)
		}
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		slope = beta
		for i := range trend {
			trend[i] = alpha + beta*xs[i]
		}
	} else {
		m := stat.Mean(ys, nil)
		for i := range trend {
			trend[i] = m
		}
	}
	detrended = make([]float64, n)
	for i := range detrended {
		detrended[i] = ys[i] - trend[i]
	}
	return detrended, trend, slope
}
