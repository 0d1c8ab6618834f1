// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"butterfly/internal/analysis"
	"butterfly/internal/encode"
	"butterfly/internal/envelope"
	"butterfly/internal/errs"
	applog "butterfly/internal/log"
	"butterfly/internal/render"
	"butterfly/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces debug logging).
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Envelope  EnvelopeConfig  `yaml:"envelope"`
	Visual    VisualConfig    `yaml:"visual"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Export    ExportConfig    `yaml:"export"`
	Transport TransportConfig `yaml:"transport"`
}

// AnalysisConfig holds the transform settings.
type AnalysisConfig struct {
	FFTSize      int     `yaml:"fft_size"`      // Power of two.
	WhitenAmount float64 `yaml:"whiten_amount"` // 0 flat, 1 full pre-emphasis.
	FFTWindow    string  `yaml:"fft_window"`    // Window applied before the FFT ("none", "hann", ...).
}

// EnvelopeConfig picks a follower preset. Any explicit attack, release or
// curve value replaces the preset's.
type EnvelopeConfig struct {
	Preset        string   `yaml:"preset"`
	AttackTime    *float64 `yaml:"attack_time,omitempty"`
	ReleaseTime   *float64 `yaml:"release_time,omitempty"`
	CurveShape    *float64 `yaml:"curve_shape,omitempty"`
	Normalization string   `yaml:"normalization"` // "none" or "log"
	LogBase       float64  `yaml:"log_base"`
}

// VisualConfig selects a visual preset and the canvas geometry.
type VisualConfig struct {
	Preset    string `yaml:"preset"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	ColorMode string `yaml:"color_mode,omitempty"` // Empty keeps the preset's mode.
	Stage     int    `yaml:"stage"`                // -1 shows every stage.
	Rotation  int    `yaml:"rotation"`             // 0 or 90.
}

// RealtimeConfig holds the live view settings.
type RealtimeConfig struct {
	Source        string  `yaml:"source"` // "test", "file" or "mic".
	File          string  `yaml:"file,omitempty"`
	Device        int     `yaml:"device"` // PortAudio device index (-1 for default).
	SampleRate    float64 `yaml:"sample_rate"`
	FrameRate     float64 `yaml:"frame_rate"`
	Playback      bool    `yaml:"playback"`              // Play file sources through the speaker.
	RecordFile    string  `yaml:"record_file,omitempty"` // Tee microphone input to this WAV file.
	GateThreshold float64 `yaml:"gate_threshold"`        // Microphone noise gate, 0 disables.
}

// ExportConfig holds the offline export settings.
type ExportConfig struct {
	FrameRate  float64 `yaml:"frame_rate"`
	YieldEvery int     `yaml:"yield_every"`
	Encoder    string  `yaml:"encoder"` // "webm", "mp4" or "gif".
	Output     string  `yaml:"output,omitempty"`
	Quality    float64 `yaml:"quality"`
	FFmpeg     string  `yaml:"ffmpeg,omitempty"` // ffmpeg binary, empty searches PATH.
}

// TransportConfig holds settings related to sending frame data over the network.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddr           string        `yaml:"ws_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending levels over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// Candidates are searched in order when LoadConfig is given an empty path.
var Candidates = []string{"butterfly.yaml", "config.yaml"}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches the Candidates. If no file is found, it uses built-in defaults.
// Environment variable overrides are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range Candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section. Errors wrap errs.ErrConfiguration.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, ok := applog.ParseLevel(c.LogLevel); !ok {
			return errs.Configurationf("log_level '%s' is not a level", c.LogLevel)
		}
	}

	// Analysis
	n := c.Analysis.FFTSize
	if !bitint.IsPowerOfTwo(n) || n < MinFFTSize || n > MaxFFTSize {
		return errs.Configurationf("analysis.fft_size must be a power of 2 in [%d,%d], got %d", MinFFTSize, MaxFFTSize, n)
	}
	if c.Analysis.WhitenAmount < 0 || c.Analysis.WhitenAmount > 1 {
		return errs.Configurationf("analysis.whiten_amount must be within [0,1], got %v", c.Analysis.WhitenAmount)
	}
	if _, err := analysis.ParseWindowFunc(c.Analysis.FFTWindow); err != nil {
		return errs.Configurationf("analysis.fft_window: %v", err)
	}

	// Envelope
	if _, _, err := c.Envelope.Resolve(); err != nil {
		return err
	}

	// Visual
	if _, err := c.Visual.Resolve(); err != nil {
		return err
	}
	if c.Visual.Width <= 0 || c.Visual.Height <= 0 {
		return errs.Configurationf("visual size must be positive, got %dx%d", c.Visual.Width, c.Visual.Height)
	}
	if stages := bitint.Log2(n) + 1; c.Visual.Stage < render.AllStages || c.Visual.Stage >= stages {
		return errs.Configurationf("visual.stage must be -1 or a stage below %d, got %d", stages, c.Visual.Stage)
	}

	// Realtime
	switch c.Realtime.Source {
	case SourceTest, SourceMicrophone:
	case SourceFile:
		if c.Realtime.File == "" {
			return errs.Configurationf("realtime.file must be set when realtime.source is '%s'", SourceFile)
		}
	default:
		return errs.Configurationf("realtime.source must be one of %s, %s, %s; got '%s'",
			SourceTest, SourceFile, SourceMicrophone, c.Realtime.Source)
	}
	if c.Realtime.SampleRate < MinSampleRate || c.Realtime.SampleRate > MaxSampleRate {
		return errs.Configurationf("realtime.sample_rate must be within [%d,%d], got %v", MinSampleRate, MaxSampleRate, c.Realtime.SampleRate)
	}
	if c.Realtime.FrameRate <= 0 || c.Realtime.FrameRate > MaxFrameRate {
		return errs.Configurationf("realtime.frame_rate must be within (0,%d], got %v", MaxFrameRate, c.Realtime.FrameRate)
	}
	if c.Realtime.GateThreshold < 0 || c.Realtime.GateThreshold > 1 {
		return errs.Configurationf("realtime.gate_threshold must be within [0,1], got %v", c.Realtime.GateThreshold)
	}

	// Export
	if c.Export.FrameRate <= 0 || c.Export.FrameRate > MaxFrameRate {
		return errs.Configurationf("export.frame_rate must be within (0,%d], got %v", MaxFrameRate, c.Export.FrameRate)
	}
	if c.Export.YieldEvery <= 0 {
		return errs.Configurationf("export.yield_every must be positive, got %d", c.Export.YieldEvery)
	}
	if _, err := encode.ParseFormat(c.Export.Encoder); err != nil {
		return errs.Configurationf("export.encoder: %v", err)
	}
	if c.Export.Quality < 0 || c.Export.Quality > 1 {
		return errs.Configurationf("export.quality must be within [0,1], got %v", c.Export.Quality)
	}

	// Transport
	if c.Transport.WSEnabled && c.Transport.WSAddr == "" {
		return errs.Configurationf("transport.ws_addr must be set when the websocket transport is enabled")
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return errs.Configurationf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return errs.Configurationf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

// Resolve turns the section into follower settings.
func (e EnvelopeConfig) Resolve() (envelope.Config, envelope.Normalization, error) {
	cfg := envelope.Default()
	if e.Preset != "" {
		p, ok := envelope.PresetByName(e.Preset)
		if !ok {
			return envelope.Config{}, envelope.Normalization{}, errs.Configurationf("unknown envelope preset '%s'", e.Preset)
		}
		cfg = p
	}
	custom := false
	if e.AttackTime != nil {
		cfg.AttackTime, custom = *e.AttackTime, true
	}
	if e.ReleaseTime != nil {
		cfg.ReleaseTime, custom = *e.ReleaseTime, true
	}
	if e.CurveShape != nil {
		cfg.CurveShape, custom = *e.CurveShape, true
	}
	if custom {
		cfg.Name = "Custom"
	}
	if err := cfg.Validate(); err != nil {
		return envelope.Config{}, envelope.Normalization{}, err
	}

	mode, err := envelope.ParseNormalizationMode(e.Normalization)
	if err != nil {
		return envelope.Config{}, envelope.Normalization{}, errs.Configurationf("envelope.normalization: %v", err)
	}
	norm := envelope.Normalization{Mode: mode, LogBase: e.LogBase}
	if mode == envelope.NormalizeLog && !(e.LogBase > 1) {
		return envelope.Config{}, envelope.Normalization{}, errs.Configurationf("envelope.log_base must be greater than 1, got %v", e.LogBase)
	}
	return cfg, norm, nil
}

// Resolve returns the visual preset with this section's overrides applied.
func (v VisualConfig) Resolve() (render.Config, error) {
	cfg := render.DefaultConfig()
	if v.Preset != "" {
		p, ok := render.PresetByName(v.Preset)
		if !ok {
			return render.Config{}, errs.Configurationf("unknown visual preset '%s'", v.Preset)
		}
		cfg = p
	}
	if v.ColorMode != "" {
		mode, err := render.ParseColorMode(v.ColorMode)
		if err != nil {
			return render.Config{}, errs.Configurationf("visual.color_mode: %v", err)
		}
		cfg.ColorMode = mode
	}
	cfg.SelectedStage = v.Stage
	cfg.Rotation = v.Rotation
	if err := cfg.Validate(); err != nil {
		return render.Config{}, err
	}
	return cfg, nil
}

// WindowFunc returns the parsed analysis window. Validate has already
// rejected unknown names.
func (a AnalysisConfig) WindowFunc() analysis.WindowFunc {
	w, _ := analysis.ParseWindowFunc(a.FFTWindow)
	return w
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("Config: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}

	// ENV_FFT_SIZE
	if val, ok := os.LookupEnv("ENV_FFT_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Analysis.FFTSize = iVal
			applog.Infof("Config: Overriding analysis.fft_size from env: %d", iVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_FFT_SIZE=%q: %v", val, err)
		}
	}
	// ENV_WHITEN_AMOUNT
	if val, ok := os.LookupEnv("ENV_WHITEN_AMOUNT"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Analysis.WhitenAmount = fVal
			applog.Infof("Config: Overriding analysis.whiten_amount from env: %v", fVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_WHITEN_AMOUNT=%q: %v", val, err)
		}
	}
	// ENV_ENVELOPE_PRESET
	if val, ok := os.LookupEnv("ENV_ENVELOPE_PRESET"); ok {
		cfg.Envelope.Preset = val
		applog.Infof("Config: Overriding envelope.preset from env: %s", val)
	}
	// ENV_EXPORT_FPS
	if val, ok := os.LookupEnv("ENV_EXPORT_FPS"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Export.FrameRate = fVal
			applog.Infof("Config: Overriding export.frame_rate from env: %v", fVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_EXPORT_FPS=%q: %v", val, err)
		}
	}

	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		cfg.Transport.WSAddr = val
		cfg.Transport.WSEnabled = val != ""
		applog.Infof("Config: Overriding transport.ws_addr from env: %s", val)
	}
	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("Config: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
}
