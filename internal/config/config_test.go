package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSuccess(t *testing.T) {
	path := writeTempConfig(t, `
bridge:
  capacity_bytes: 4194304
  sleep_ms: 2
channels:
  - name: CH1
    transform: dominant_wave
    params:
      min_period_bars: 10
      max_period_bars: 40
  - name: CH2
    transform: fft_waveform
    disabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Bridge.CapacityBytes != 4194304 || cfg.Bridge.SleepMillis != 2 {
		t.Fatalf("unexpected bridge defaults: %+v", cfg.Bridge)
	}
	if len(cfg.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(cfg.Channels))
	}
	enabled := cfg.EnabledChannels()
	if len(enabled) != 1 || enabled[0].Name != "CH1" {
		t.Fatalf("expected only CH1 enabled, got %+v", enabled)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, `
channels:
  - name: CH1
    transform: dominant_wave
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Bridge.CapacityBytes != 8*1024*1024 {
		t.Fatalf("expected default capacity, got %d", cfg.Bridge.CapacityBytes)
	}
	if cfg.Bridge.SleepMillis != 1 {
		t.Fatalf("expected default sleep_ms=1, got %d", cfg.Bridge.SleepMillis)
	}
	if cfg.Bridge.LogEveryMs != 5000 {
		t.Fatalf("expected default log_every_ms=5000, got %d", cfg.Bridge.LogEveryMs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Load(missing); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadDuplicateChannelName(t *testing.T) {
	path := writeTempConfig(t, `
channels:
  - name: CH1
    transform: dominant_wave
  - name: CH1
    transform: fft_waveform
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for duplicate channel name")
	}
}

func TestLoadEmptyChannelName(t *testing.T) {
	path := writeTempConfig(t, `
channels:
  - name: ""
    transform: dominant_wave
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty channel name")
	}
}

func TestCompareRestartRequired(t *testing.T) {
	prev := &Config{
		Bridge:   BridgeDefaults{CapacityBytes: 1024},
		Channels: []ChannelConfig{{Name: "CH1", Transform: "dominant_wave"}},
	}
	next := &Config{
		Bridge:   BridgeDefaults{CapacityBytes: 2048},
		Channels: []ChannelConfig{{Name: "CH1", Transform: "dominant_wave"}},
	}
	diff := Compare(prev, next)
	if !diff.RestartRequired {
		t.Fatalf("expected restart required on capacity_bytes change")
	}
}

func TestCompareNoRestartOnLogEveryMs(t *testing.T) {
	prev := &Config{
		Bridge:   BridgeDefaults{CapacityBytes: 1024, LogEveryMs: 5000},
		Channels: []ChannelConfig{{Name: "CH1", Transform: "dominant_wave"}},
	}
	next := &Config{
		Bridge:   BridgeDefaults{CapacityBytes: 1024, LogEveryMs: 1000},
		Channels: []ChannelConfig{{Name: "CH1", Transform: "dominant_wave"}},
	}
	diff := Compare(prev, next)
	if diff.RestartRequired {
		t.Fatalf("log_every_ms change should not require restart, reasons=%v", diff.Reasons)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
