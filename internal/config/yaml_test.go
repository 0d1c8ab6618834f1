// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"butterfly/internal/analysis"
	"butterfly/internal/envelope"
	"butterfly/internal/errs"
	"butterfly/internal/render"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Analysis.FFTSize != DefaultFFTSize {
		t.Errorf("fft_size = %d, want %d", cfg.Analysis.FFTSize, DefaultFFTSize)
	}
	if cfg.Visual.Stage != render.AllStages {
		t.Errorf("stage = %d, want all", cfg.Visual.Stage)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_CandidateSearch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "butterfly.yaml"), []byte("analysis:\n  fft_size: 64\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("analysis:\n  fft_size: 32\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Analysis.FFTSize != 64 {
		t.Errorf("fft_size = %d, want 64 from butterfly.yaml", cfg.Analysis.FFTSize)
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
analysis:
  fft_size: 256
  whiten_amount: 0.25
  fft_window: hann
envelope:
  preset: viscous
  release_time: 0.5
  normalization: log
  log_base: 2
visual:
  preset: phase
  color_mode: freq-gradient
  stage: 3
  rotation: 90
realtime:
  source: file
  file: song.mp3
  frame_rate: 30
export:
  frame_rate: 24
  encoder: gif
transport:
  udp_enabled: true
  udp_send_interval: 10ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Analysis.FFTSize != 256 || cfg.Analysis.WhitenAmount != 0.25 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Analysis.WindowFunc() != analysis.Hann {
		t.Errorf("window = %v", cfg.Analysis.WindowFunc())
	}

	env, norm, err := cfg.Envelope.Resolve()
	if err != nil {
		t.Fatalf("Envelope.Resolve: %v", err)
	}
	if env.Name != "Custom" || env.AttackTime != 0.4 || env.ReleaseTime != 0.5 || env.CurveShape != 0.5 {
		t.Errorf("envelope = %+v", env)
	}
	if norm.Mode != envelope.NormalizeLog || norm.LogBase != 2 {
		t.Errorf("normalization = %+v", norm)
	}

	vis, err := cfg.Visual.Resolve()
	if err != nil {
		t.Fatalf("Visual.Resolve: %v", err)
	}
	if vis.Name != "Phase -> Hue" || vis.ColorMode != render.FreqGradient || vis.SelectedStage != 3 || vis.Rotation != 90 {
		t.Errorf("visual = %+v", vis)
	}
	if cfg.Visual.Width != DefaultWidth {
		t.Errorf("width = %d, defaults should survive partial sections", cfg.Visual.Width)
	}

	if cfg.Export.FrameRate != 24 || cfg.Export.YieldEvery != DefaultYieldEvery {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Transport.UDPSendInterval != 10*time.Millisecond {
		t.Errorf("udp_send_interval = %s", cfg.Transport.UDPSendInterval)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_LOG_LEVEL", "warn")
	t.Setenv("ENV_FFT_SIZE", "512")
	t.Setenv("ENV_WHITEN_AMOUNT", "0.1")
	t.Setenv("ENV_ENVELOPE_PRESET", "instant")
	t.Setenv("ENV_EXPORT_FPS", "25")
	t.Setenv("ENV_WS_ADDR", ":9999")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "20ms")

	path := writeTempConfig(t, "analysis:\n  fft_size: 64\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.Debug || cfg.LogLevel != "warn" {
		t.Errorf("debug/log_level = %v/%s", cfg.Debug, cfg.LogLevel)
	}
	if cfg.Analysis.FFTSize != 512 || cfg.Analysis.WhitenAmount != 0.1 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Envelope.Preset != "instant" || cfg.Export.FrameRate != 25 {
		t.Errorf("envelope/export = %s/%v", cfg.Envelope.Preset, cfg.Export.FrameRate)
	}
	if !cfg.Transport.WSEnabled || cfg.Transport.WSAddr != ":9999" {
		t.Errorf("ws = %v/%s", cfg.Transport.WSEnabled, cfg.Transport.WSAddr)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" || cfg.Transport.UDPSendInterval != 20*time.Millisecond {
		t.Errorf("udp = %+v", cfg.Transport)
	}
}

func TestApplyEnvOverridesIgnoresGarbage(t *testing.T) {
	t.Setenv("ENV_FFT_SIZE", "lots")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "soon")

	cfg := Default()
	cfg.applyEnvOverrides()
	if cfg.Analysis.FFTSize != DefaultFFTSize {
		t.Errorf("fft_size = %d", cfg.Analysis.FFTSize)
	}
	if cfg.Transport.UDPSendInterval != DefaultUDPSendInterval {
		t.Errorf("udp_send_interval = %s", cfg.Transport.UDPSendInterval)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"fft size not power of two", func(c *Config) { c.Analysis.FFTSize = 100 }},
		{"fft size too small", func(c *Config) { c.Analysis.FFTSize = 1 }},
		{"whiten amount", func(c *Config) { c.Analysis.WhitenAmount = 1.5 }},
		{"window", func(c *Config) { c.Analysis.FFTWindow = "triangle-ish" }},
		{"envelope preset", func(c *Config) { c.Envelope.Preset = "wobbly" }},
		{"attack range", func(c *Config) { c.Envelope.AttackTime = f(2) }},
		{"curve shape", func(c *Config) { c.Envelope.CurveShape = f(0) }},
		{"normalization", func(c *Config) { c.Envelope.Normalization = "cubic" }},
		{"log base", func(c *Config) { c.Envelope.Normalization = "log"; c.Envelope.LogBase = 1 }},
		{"visual preset", func(c *Config) { c.Visual.Preset = "sparkles" }},
		{"color mode", func(c *Config) { c.Visual.ColorMode = "plaid" }},
		{"rotation", func(c *Config) { c.Visual.Rotation = 45 }},
		{"stage beyond last", func(c *Config) { c.Visual.Stage = 8 }},
		{"width", func(c *Config) { c.Visual.Width = 0 }},
		{"source", func(c *Config) { c.Realtime.Source = "radio" }},
		{"file source without file", func(c *Config) { c.Realtime.Source = SourceFile }},
		{"sample rate", func(c *Config) { c.Realtime.SampleRate = 100 }},
		{"frame rate", func(c *Config) { c.Realtime.FrameRate = 0 }},
		{"gate", func(c *Config) { c.Realtime.GateThreshold = -0.1 }},
		{"export fps", func(c *Config) { c.Export.FrameRate = -30 }},
		{"yield every", func(c *Config) { c.Export.YieldEvery = 0 }},
		{"encoder", func(c *Config) { c.Export.Encoder = "avi" }},
		{"quality", func(c *Config) { c.Export.Quality = 2 }},
		{"ws addr", func(c *Config) { c.Transport.WSEnabled = true; c.Transport.WSAddr = "" }},
		{"udp address", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "localhost" }},
		{"udp interval", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPSendInterval = 0 }},
	}

	base := Default()
	if err := base.Validate(); err != nil {
		t.Fatalf("defaults are invalid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !errors.Is(err, errs.ErrConfiguration) {
				t.Errorf("error %v does not wrap ErrConfiguration", err)
			}
		})
	}
}
