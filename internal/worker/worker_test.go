package worker

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/sindlinger/pyshared-hub/internal/bridge"
	"github.com/sindlinger/pyshared-hub/internal/bridge/memring"
	"github.com/sindlinger/pyshared-hub/internal/transform"
	_ "github.com/sindlinger/pyshared-hub/internal/transform/dominantwave"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "test: ", 0)
}

func TestDrainOnceAppliesFullAndWritesResult(t *testing.T) {
	client := memring.New(8192)
	if err := client.Open("CH1", 1<<20); err != nil {
		t.Fatalf("Open: %v", err)
	}
	tr, err := transform.New("dominant_wave", map[string]any{
		"nperseg": 16, "noverlap": 12, "nfft": 32,
		"min_period_bars": 4, "max_period_bars": 10,
	})
	if err != nil {
		t.Fatalf("transform.New: %v", err)
	}
	w := New("CH1", client, tr, time.Millisecond, testLogger())

	series := make([]float64, 64)
	for i := range series {
		series[i] = float64(i % 7)
	}
	client.InjectHost(bridge.SeriesFull, series, 100)

	drained, err := w.drainOnce()
	if err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if !drained {
		t.Fatalf("expected drainOnce to report frames read")
	}

	out := client.DrainOutbound()
	if len(out) != 1 || out[0].SeriesID != bridge.SeriesFullResult {
		t.Fatalf("expected one FULL result frame, got %+v", out)
	}
	if len(out[0].Payload) != len(series) {
		t.Fatalf("expected result length %d, got %d", len(series), len(out[0].Payload))
	}
}

func TestDrainOnceCoalescesMultipleUpdates(t *testing.T) {
	client := memring.New(8192)
	client.Open("CH1", 1<<20)
	tr, _ := transform.New("dominant_wave", map[string]any{
		"nperseg": 16, "noverlap": 12, "nfft": 32,
		"min_period_bars": 4, "max_period_bars": 10,
	})
	w := New("CH1", client, tr, time.Millisecond, testLogger())

	series := make([]float64, 64)
	for i := range series {
		series[i] = float64(i % 5)
	}
	client.InjectHost(bridge.SeriesFull, series, 1)
	w.drainOnce()
	client.DrainOutbound()

	client.InjectHost(bridge.SeriesUpdate, []float64{1}, 2)
	client.InjectHost(bridge.SeriesUpdate, []float64{2}, 3)
	client.InjectHost(bridge.SeriesUpdate, []float64{3}, 4)

	drained, err := w.drainOnce()
	if err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if !drained {
		t.Fatalf("expected drain to report frames read")
	}
	out := client.DrainOutbound()
	if len(out) != 1 || out[0].SeriesID != bridge.SeriesUpdateResult {
		t.Fatalf("expected a single coalesced UPDATE result, got %+v", out)
	}
	if out[0].Timestamp != 4 {
		t.Fatalf("expected coalesced result to carry the latest timestamp, got %d", out[0].Timestamp)
	}
}

func TestDrainOnceMetaWinsBeforeFull(t *testing.T) {
	client := memring.New(8192)
	client.Open("CH1", 1<<20)
	tr, _ := transform.New("dominant_wave", map[string]any{
		"nperseg": 16, "noverlap": 12, "nfft": 32,
		"min_period_bars": 4, "max_period_bars": 10,
	})
	w := New("CH1", client, tr, time.Millisecond, testLogger())

	client.InjectHost(bridge.SeriesMeta, []float64{1, 16, 32}, 10)
	series := make([]float64, 64)
	client.InjectHost(bridge.SeriesFull, series, 11)

	drained, err := w.drainOnce()
	if err != nil || !drained {
		t.Fatalf("drainOnce: drained=%v err=%v", drained, err)
	}
	out := client.DrainOutbound()
	if len(out) != 2 {
		t.Fatalf("expected META ack + FULL result, got %d frames", len(out))
	}
	if out[0].SeriesID != bridge.SeriesMetaAck {
		t.Fatalf("expected META ack written first, got series %d", out[0].SeriesID)
	}
}

func TestDrainOnceSuppressesAckOnRejectedMeta(t *testing.T) {
	client := memring.New(8192)
	client.Open("CH1", 1<<20)
	tr, _ := transform.New("dominant_wave", map[string]any{
		"nperseg": 16, "noverlap": 12, "nfft": 32,
		"min_period_bars": 4, "max_period_bars": 10,
	})
	w := New("CH1", client, tr, time.Millisecond, testLogger())

	// A v2 vector (len >= 24) with an inverted period band fails Config
	// validation, so Meta must return an error and no ack frame should
	// be written (spec §7).
	vec := make([]float64, 24)
	vec[5], vec[6] = 50, 10 // min_period_bars > max_period_bars
	vec[7], vec[8], vec[9] = 16, 12, 32
	client.InjectHost(bridge.SeriesMeta, vec, 10)

	drained, err := w.drainOnce()
	if err != nil || !drained {
		t.Fatalf("drainOnce: drained=%v err=%v", drained, err)
	}
	out := client.DrainOutbound()
	if len(out) != 0 {
		t.Fatalf("expected no ack for a rejected META, got %+v", out)
	}
}

func TestRunTransitionsIdleAfterThreshold(t *testing.T) {
	client := memring.New(8192)
	client.Open("CH1", 1<<20)
	tr, _ := transform.New("dominant_wave", map[string]any{
		"nperseg": 16, "noverlap": 12, "nfft": 32,
		"min_period_bars": 4, "max_period_bars": 10,
	})
	w := New("CH1", client, tr, time.Millisecond, testLogger())
	w.IdleThreshold = 5 * time.Millisecond

	series := make([]float64, 64)
	client.InjectHost(bridge.SeriesFull, series, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	if w.connected {
		t.Fatalf("expected channel to transition back to idle after threshold")
	}
}
