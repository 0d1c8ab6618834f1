package config

import "time"

// Defaults and limits for the visualization engine. Every value here can be
// overridden from YAML, the environment or command line flags.
const (
	DefaultLogLevel = "info"

	// Analysis
	DefaultFFTSize      = 128
	DefaultWhitenAmount = 0.6
	DefaultFFTWindow    = "none" // the butterfly shows the raw transform

	// Envelope
	DefaultEnvelopePreset = "Neon (Exponential)"
	DefaultNormalization  = "none"
	DefaultLogBase        = 10.0

	// Visual
	DefaultVisualPreset = "Default (Blue-ish)"
	DefaultWidth        = 1280
	DefaultHeight       = 720

	// Realtime
	DefaultSource        = "test"
	DefaultDeviceID      = -1 // system default input
	DefaultSampleRate    = 44100
	DefaultFrameRate     = 60
	DefaultGateThreshold = 0.0 // gate disabled

	// Export
	DefaultExportFrameRate = 30
	DefaultYieldEvery      = 30
	DefaultEncoder         = "webm"
	DefaultExportQuality   = 0.8

	// Transport
	DefaultWSAddr           = "127.0.0.1:8765"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz

	// Limits
	MinFFTSize    = 2
	MaxFFTSize    = 1 << 14
	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxFrameRate  = 240
)

// Sources accepted by realtime.source.
const (
	SourceTest       = "test"
	SourceFile       = "file"
	SourceMicrophone = "mic"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Analysis: AnalysisConfig{
			FFTSize:      DefaultFFTSize,
			WhitenAmount: DefaultWhitenAmount,
			FFTWindow:    DefaultFFTWindow,
		},
		Envelope: EnvelopeConfig{
			Preset:        DefaultEnvelopePreset,
			Normalization: DefaultNormalization,
			LogBase:       DefaultLogBase,
		},
		Visual: VisualConfig{
			Preset: DefaultVisualPreset,
			Width:  DefaultWidth,
			Height: DefaultHeight,
			Stage:  -1,
		},
		Realtime: RealtimeConfig{
			Source:        DefaultSource,
			Device:        DefaultDeviceID,
			SampleRate:    DefaultSampleRate,
			FrameRate:     DefaultFrameRate,
			Playback:      true,
			GateThreshold: DefaultGateThreshold,
		},
		Export: ExportConfig{
			FrameRate:  DefaultExportFrameRate,
			YieldEvery: DefaultYieldEvery,
			Encoder:    DefaultEncoder,
			Quality:    DefaultExportQuality,
		},
		Transport: TransportConfig{
			WSAddr:           DefaultWSAddr,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
