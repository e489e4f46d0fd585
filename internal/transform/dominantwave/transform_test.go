package dominantwave

import (
	"math"
	"testing"
)

func TestValidateRejectsBadHop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Noverlap = cfg.Nperseg
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when noverlap == nperseg")
	}
}

func TestValidateRejectsBadBand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPeriodBars = 50
	cfg.MaxPeriodBars = 10
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for inverted period band")
	}
}

func TestValidateRejectsNOLAFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window = "hann"
	cfg.Nperseg = 64
	cfg.Noverlap = 1 // hop=63, far too sparse for a Hann window's support
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected NOLA failure for under-overlapped Hann window")
	}
}

func TestValidateAcceptsUnknownWindowAsHann(t *testing.T) {
	cfg := DefaultConfig()
	// unknown window names fall back to Hann in buildWindow, so this
	// should still validate cleanly rather than error.
	cfg.Window = "triangular-ish"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error for fallback window: %v", err)
	}
}

func sineSeries(n int, period, amp, phase float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Cos(2*math.Pi*float64(i)/period+phase)
	}
	return out
}

func TestFullReturnsSameLength(t *testing.T) {
	tr, err := New(map[string]any{
		"nperseg":         32,
		"noverlap":        24,
		"nfft":            64,
		"min_period_bars": 5,
		"max_period_bars": 20,
		"detrend_linear":  false,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	series := sineSeries(256, 12, 2.0, 0.3)
	newestFirst := reversed(series)
	out := tr.Full(newestFirst, 0)
	if len(out) != len(newestFirst) {
		t.Fatalf("expected output length %d, got %d", len(newestFirst), len(out))
	}
}

func TestFullZeroesBelowMinConfidence(t *testing.T) {
	tr, err := New(map[string]any{
		"nperseg":         32,
		"noverlap":        24,
		"nfft":            64,
		"min_period_bars": 5,
		"max_period_bars": 20,
		"min_confidence":  1.0,
		"detrend_linear":  false,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	series := sineSeries(256, 12, 2.0, 0.3)
	out := tr.Full(reversed(series), 0)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected zeroed output at min_confidence=1, got out[%d]=%v", i, v)
		}
	}
}

func TestUpdateFallsBackToFullWhenUninitialized(t *testing.T) {
	tr, err := New(map[string]any{
		"nperseg":         32,
		"noverlap":        24,
		"nfft":            64,
		"min_period_bars": 5,
		"max_period_bars": 20,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	series := sineSeries(256, 12, 2.0, 0.3)
	out := tr.Update(reversed(series), 0)
	if len(out) != 1 {
		t.Fatalf("expected a single-sample UPDATE result, got %d", len(out))
	}
}

func TestUpdateAfterFullReturnsSingleSample(t *testing.T) {
	cfg := map[string]any{
		"nperseg":         32,
		"noverlap":        24,
		"nfft":            64,
		"min_period_bars": 5,
		"max_period_bars": 20,
	}
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	series := sineSeries(256, 12, 2.0, 0.3)
	tr.Full(reversed(series), 0)
	out := tr.Update(reversed(series), 1)
	if len(out) != 1 {
		t.Fatalf("expected single-sample UPDATE result, got %d", len(out))
	}
}

// TestUpdateMatchesFullNewestSample is the spec §8 round-trip law: FULL
// followed by UPDATE on the same latest tick must return exactly the
// newest element FULL would have produced, not merely a value of the
// right length.
func TestUpdateMatchesFullNewestSample(t *testing.T) {
	cfg := map[string]any{
		"nperseg":         32,
		"noverlap":        24,
		"nfft":            64,
		"min_period_bars": 5,
		"max_period_bars": 20,
	}
	series := sineSeries(256, 12, 2.0, 0.3)

	full, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fullOut := full.Full(reversed(series), 0)
	if len(fullOut) == 0 {
		t.Fatalf("FULL returned no output")
	}
	wantNewest := fullOut[0] // newest-first: index 0 is the latest bar

	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr.Full(reversed(series), 0)
	updateOut := tr.Update(reversed(series), 0)
	if len(updateOut) != 1 {
		t.Fatalf("expected single-sample UPDATE result, got %d", len(updateOut))
	}
	if math.Abs(updateOut[0]-wantNewest) > 1e-9 {
		t.Fatalf("UPDATE's sample must equal FULL's newest element: got %v want %v", updateOut[0], wantNewest)
	}
}

// TestRepeatedIdenticalFullCallsAreBitIdentical is the other spec §8
// round-trip law: two consecutive FULL calls with unchanged config and
// input produce bit-identical output, even though the second call
// updates cross-call phase-continuity bookkeeping internally.
func TestRepeatedIdenticalFullCallsAreBitIdentical(t *testing.T) {
	tr, err := New(map[string]any{
		"nperseg":         32,
		"noverlap":        24,
		"nfft":            64,
		"min_period_bars": 5,
		"max_period_bars": 20,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	series := sineSeries(256, 12, 2.0, 0.3)
	first := tr.Full(reversed(series), 0)
	second := tr.Full(reversed(series), 0)
	if len(first) != len(second) {
		t.Fatalf("length mismatch between repeated FULL calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated identical FULL calls diverged at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestMetaV1IsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	tr := &Transform{cfg: cfg}
	if err := tr.Meta([]float64{2, 48, 128}, 0); err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if tr.cfg != cfg {
		t.Fatalf("legacy v1 META must be a no-op apart from logging, got: %+v", tr.cfg)
	}
}

func TestMetaV2AppliesFieldsByPosition(t *testing.T) {
	tr := &Transform{cfg: DefaultConfig()}
	vec := make([]float64, 27)
	vec[0] = 2 // proto tag
	vec[5] = 8 // min_period_bars
	vec[6] = 40 // max_period_bars
	vec[7] = 32 // nperseg
	vec[8] = 24 // noverlap
	vec[9] = 64 // nfft
	vec[10] = 0.25 // ridge_penalty
	vec[11] = 2 // score_harmonics
	vec[12] = 3 // mask_max_harmonic
	vec[13] = 1.5 // sigma_bins_fund
	vec[14] = 2.5 // sigma_bins_harm
	vec[15] = 1 // baseline_enable
	vec[16] = 200 // baseline_cutoff_period_bars
	vec[17] = 0.4 // min_confidence
	vec[18] = 1 // prediction_method = ar
	vec[19] = 6 // ar_order
	vec[20] = 96 // ar_fit_len
	vec[21] = 0.01 // ar_reg
	vec[22] = 4 // predict_wave_horizon
	vec[23] = 1 // output_mode = price_wave
	vec[24] = 1 // use_log
	vec[25] = 0 // detrend_linear
	vec[26] = 1 // update_returns_full

	if err := tr.Meta(vec, 0); err != nil {
		t.Fatalf("Meta: %v", err)
	}
	cfg := tr.cfg
	if cfg.MinPeriodBars != 8 || cfg.MaxPeriodBars != 40 {
		t.Fatalf("period band mismatch: %+v", cfg)
	}
	if cfg.Nperseg != 32 || cfg.Noverlap != 24 || cfg.Nfft != 64 {
		t.Fatalf("STFT shape mismatch: %+v", cfg)
	}
	if cfg.RidgePenalty != 0.25 || cfg.ScoreHarmonics != 2 || cfg.MaskMaxHarmonic != 3 {
		t.Fatalf("ridge/mask mismatch: %+v", cfg)
	}
	if cfg.SigmaBinsFund != 1.5 || cfg.SigmaBinsHarm != 2.5 {
		t.Fatalf("sigma mismatch: %+v", cfg)
	}
	if !cfg.BaselineEnable || cfg.BaselineCutoffPeriodBars != 200 {
		t.Fatalf("baseline mismatch: %+v", cfg)
	}
	if cfg.MinConfidence != 0.4 {
		t.Fatalf("min_confidence mismatch: %+v", cfg)
	}
	if cfg.PredictionMethod != PredictAR || cfg.ARorder != 6 || cfg.ARFitLen != 96 || cfg.ARReg != 0.01 || cfg.PredictWaveHorizon != 4 {
		t.Fatalf("prediction mismatch: %+v", cfg)
	}
	if cfg.OutputMode != OutputPriceWave {
		t.Fatalf("output_mode mismatch: %+v", cfg)
	}
	if !cfg.UseLogPrice || cfg.DetrendLinear || !cfg.UpdateReturnsFull {
		t.Fatalf("tail flags mismatch: %+v", cfg)
	}
}

func TestMetaRejectsUnrecognizedLength(t *testing.T) {
	tr := &Transform{cfg: DefaultConfig()}
	if err := tr.Meta([]float64{1, 2, 3, 4, 5}, 0); err == nil {
		t.Fatalf("expected error for malformed META vector")
	}
}

func TestBandIndicesRespectsPeriodBounds(t *testing.T) {
	band := bandIndices(128, 10, 50)
	for _, k := range band {
		period := 128.0 / float64(k)
		if period < 10 || period > 50 {
			t.Fatalf("bin %d has period %v outside [10,50]", k, period)
		}
	}
	if len(band) == 0 {
		t.Fatalf("expected a non-empty band")
	}
}

func TestSTFTRoundTripIsIdentityWithoutMasking(t *testing.T) {
	win := buildWindow("hann", 32)
	plan := NewSTFT(win, 8, 64)
	x := sineSeries(200, 15, 1.0, 0)
	frames, starts, paddedLen := plan.Forward(x)
	recon := plan.Inverse(frames, starts, paddedLen)
	if len(recon) != len(x) {
		t.Fatalf("round trip length mismatch: got %d want %d", len(recon), len(x))
	}
	// interior samples (clear of edge taper effects) should match closely
	for i := len(x) / 4; i < 3*len(x)/4; i++ {
		if math.Abs(recon[i]-x[i]) > 1e-6 {
			t.Fatalf("round trip mismatch at %d: got %v want %v", i, recon[i], x[i])
		}
	}
}
