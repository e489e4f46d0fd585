package dominantwave

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// predictPhase extends the fundamental ridge sinusoid horizon samples
// past the last observed bar (spec §4.5 "Prediction" method=phase).
func predictPhase(ridge RidgeResult, horizon int) []float64 {
	out := make([]float64, horizon)
	omega := 2 * math.Pi / ridge.PeriodBars
	for i := 0; i < horizon; i++ {
		out[i] = ridge.Amplitude * math.Cos(ridge.Phase+omega*float64(i+1))
	}
	return out
}

// fitAR solves a ridge-regularized least-squares AR(order) model on
// history (chronological order) via the normal equations, returning the
// order coefficients such that x[t] ~= sum_j coeffs[j]*x[t-1-j].
func fitAR(history []float64, order int, reg float64) ([]float64, error) {
	n := len(history)
	if n <= order {
		return make([]float64, order), nil
	}
	rows := n - order
	xData := make([]float64, rows*order)
	yData := make([]float64, rows)
	for i := 0; i < rows; i++ {
		t := i + order
		yData[i] = history[t]
		for j := 0; j < order; j++ {
			xData[i*order+j] = history[t-1-j]
		}
	}
	X := mat.NewDense(rows, order, xData)
	y := mat.NewVecDense(rows, yData)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	for i := 0; i < order; i++ {
		xtx.Set(i, i, xtx.At(i, i)+reg)
	}
	var xty mat.VecDense
	xty.MulVec(X.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return make([]float64, order), nil
	}
	coeffs := make([]float64, order)
	for i := range coeffs {
		coeffs[i] = beta.AtVec(i)
	}
	return coeffs, nil
}

// predictAR iteratively rolls the fitted AR model forward horizon steps,
// feeding each prediction back in as the newest lag.
func predictAR(history []float64, coeffs []float64, horizon int) []float64 {
	order := len(coeffs)
	buf := append([]float64(nil), history...)
	out := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		var next float64
		for j := 0; j < order && j < len(buf); j++ {
			next += coeffs[j] * buf[len(buf)-1-j]
		}
		out[i] = next
		buf = append(buf, next)
	}
	return out
}

// predictHybrid averages the phase and AR extensions, spec §4.5's
// method=hybrid.
func predictHybrid(ridge RidgeResult, history []float64, cfg Config, horizon int) []float64 {
	phaseExt := predictPhase(ridge, horizon)
	coeffs, _ := fitAR(history, cfg.ARorder, cfg.ARReg)
	fitLen := cfg.ARFitLen
	if fitLen <= 0 || fitLen > len(history) {
		fitLen = len(history)
	}
	arExt := predictAR(history[len(history)-fitLen:], coeffs, horizon)
	out := make([]float64, horizon)
	for i := range out {
		out[i] = (phaseExt[i] + arExt[i]) / 2
	}
	return out
}

// predictGBMMC estimates a drift/volatility pair from the recent
// detrended history's increments and averages mcPaths simulated
// continuations, each an additive random walk with that drift and
// volatility starting from the last observed value (spec §4.5
// method=gbm_mc). The
// RNG is seeded from cfg.MCSeed so repeated calls with identical state
// are reproducible.
func predictGBMMC(history []float64, cfg Config, horizon int) []float64 {
	out := make([]float64, horizon)
	if len(history) < 2 {
		return out
	}
	incr := make([]float64, len(history)-1)
	for i := range incr {
		incr[i] = history[i+1] - history[i]
	}
	mu := stat.Mean(incr, nil)
	sigma := stat.StdDev(incr, nil)
	if math.IsNaN(sigma) {
		sigma = 0
	}

	rng := rand.New(rand.NewSource(cfg.MCSeed))
	paths := cfg.MCPaths
	if paths <= 0 {
		paths = 1
	}
	sums := make([]float64, horizon)
	last := history[len(history)-1]
	for p := 0; p < paths; p++ {
		level := last
		for i := 0; i < horizon; i++ {
			level += mu + sigma*rng.NormFloat64()
			sums[i] += level
		}
	}
	for i := range out {
		out[i] = sums[i] / float64(paths)
	}
	return out
}
