package dominantwave

import (
	"log"

	"github.com/pkg/errors"
)

// Enum codes used by the v2 META layout (spec §6). Window and scaling
// are channel-config-only (not part of the META wire table) so they have
// no code table here.
var predictionByCode = []string{PredictPhase, PredictAR, PredictHybrid, PredictGBMMC}
var outputByCode = []string{OutputCycle, OutputPriceWave}

func codeToString(table []string, code float64) string {
	i := int(code)
	if i < 0 || i >= len(table) {
		return table[0]
	}
	return table[i]
}

// applyMetaVector updates cfg in place from a META payload (spec §6).
// Two layouts are accepted: the legacy v1 triple {fs, nperseg, nfft},
// accepted as a no-op apart from logging, and the v2 layout (length >=
// 24) carrying the full tunable set below in this fixed field order
// (index 0 is always the protocol tag, not a parameter). Shorter-than-v2-
// but-longer-than-3 vectors are rejected rather than partially applied,
// since META is meant to be sent whole.
//
// v2 field order (spec §6):
//
//	0 proto  1 in_sec  2 out_sec  3 out_bars  4 send_bars
//	5 min_period_bars  6 max_period_bars  7 nperseg  8 noverlap  9 nfft
//	10 ridge_penalty  11 score_harmonics  12 mask_max_harmonic
//	13 sigma_bins_fund  14 sigma_bins_harm  15 baseline_enable
//	16 baseline_cutoff_period_bars  17 min_confidence
//	18 prediction_method  19 ar_order  20 ar_fit_len  21 ar_reg
//	22 predict_wave_horizon  23 output_mode
//	24 use_log  25 detrend_linear  26 update_returns_full
//
// in_sec/out_sec/out_bars/send_bars (1-4) describe the host's own
// windowing/scheduling and have no corresponding Config field; their
// vector slots are consumed (for correct positional alignment) but
// otherwise ignored.
func (c *Config) applyMetaVector(vec []float64) error {
	switch {
	case len(vec) == 3:
		log.Printf("dominant_wave: legacy v1 META received (fs=%v nperseg=%v nfft=%v), accepted as a no-op", vec[0], vec[1], vec[2])
		return nil
	case len(vec) >= 24:
		c.MinPeriodBars = vec[5]
		c.MaxPeriodBars = vec[6]
		c.Nperseg = int(vec[7])
		c.Noverlap = int(vec[8])
		c.Nfft = int(vec[9])
		c.RidgePenalty = vec[10]
		c.ScoreHarmonics = int(vec[11])
		c.MaskMaxHarmonic = int(vec[12])
		c.SigmaBinsFund = vec[13]
		c.SigmaBinsHarm = vec[14]
		c.BaselineEnable = vec[15] != 0
		c.BaselineCutoffPeriodBars = vec[16]
		c.MinConfidence = vec[17]
		c.PredictionMethod = codeToString(predictionByCode, vec[18])
		c.ARorder = int(vec[19])
		c.ARFitLen = int(vec[20])
		c.ARReg = vec[21]
		c.PredictWaveHorizon = int(vec[22])
		c.OutputMode = codeToString(outputByCode, vec[23])
		if len(vec) >= 25 {
			c.UseLogPrice = vec[24] != 0
		}
		if len(vec) >= 26 {
			c.DetrendLinear = vec[25] != 0
		}
		if len(vec) >= 27 {
			c.UpdateReturnsFull = vec[26] != 0
		}
		return nil
	default:
		return errors.Errorf("dominant_wave: META vector has unrecognized length %d (want 3 or >=24)", len(vec))
	}
}
