package fftwave

import (
	"math"
	"testing"
)

func sine(n int, period, amp, phase float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Cos(2*math.Pi*float64(i)/period+phase)
	}
	return out
}

func reverse(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[len(xs)-1-i] = v
	}
	return out
}

func TestFullConcatenatesBuffers(t *testing.T) {
	tr, err := New(map[string]any{
		"fft_window":  256,
		"min_period":  10,
		"max_period":  60,
		"buffers":     4,
		"max_cycles":  4,
		"trend_period": 0,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	series := sine(300, 24, 3.0, 0.1)
	out := tr.Full(reverse(series), 0)
	if len(out) != 4*300 {
		t.Fatalf("expected 4 concatenated buffers of length 300, got %d", len(out))
	}
}

func TestFullSumCyclesReturnsSingleBuffer(t *testing.T) {
	tr, err := New(map[string]any{
		"fft_window":  256,
		"min_period":  10,
		"max_period":  60,
		"sum_cycles":  true,
		"buffers":     4,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	series := sine(300, 24, 3.0, 0.1)
	out := tr.Full(reverse(series), 0)
	if len(out) != 300 {
		t.Fatalf("expected sum_cycles output length 300, got %d", len(out))
	}
}

func TestUpdateBeforeFullReturnsNil(t *testing.T) {
	tr, err := New(map[string]any{"min_period": 10, "max_period": 60})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out := tr.Update([]float64{1, 2, 3}, 0)
	if out != nil {
		t.Fatalf("expected nil update before any FULL, got %v", out)
	}
}

func TestUpdateAfterFullReturnsOneValuePerBuffer(t *testing.T) {
	tr, err := New(map[string]any{
		"fft_window": 256,
		"min_period": 10,
		"max_period": 60,
		"buffers":    4,
		"max_cycles": 4,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	series := sine(300, 24, 3.0, 0.1)
	tr.Full(reverse(series), 0)
	out := tr.Update([]float64{series[len(series)-1] + 0.01}, 1)
	if len(out) != 4 {
		t.Fatalf("expected one value per buffer (4), got %d", len(out))
	}
}

func TestValidateRejectsBadBand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPeriod = 60
	cfg.MaxPeriod = 10
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for inverted period band")
	}
}
