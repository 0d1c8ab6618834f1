package cmd

import (
	"context"
	"io"
	"os"

	"butterfly/internal/config"
	applog "butterfly/internal/log"
	"butterfly/pkg/build"

	"github.com/spf13/cobra"
)

// Options collects the command line flags. A flag overrides the value from
// the configuration file only when it was given explicitly.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
	Verbose    bool
	NoTUI      bool

	FFTSize       int
	WhitenAmount  float64
	Window        string
	Envelope      string
	Normalization string
	Visual        string
	ColorMode     string
	Stage         int
	Rotation      int
	Width         int
	Height        int

	Source     string
	DeviceID   int
	SampleRate float64
	FrameRate  float64
	NoPlayback bool
	RecordFile string
	Gate       float64

	WSAddr    string
	UDPTarget string

	Output    string
	Encoder   string
	ExportFPS float64
	Quality   float64
	FFmpeg    string

	Interactive bool
}

// Execute builds the command tree and runs it with args.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand returns the butterfly command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&Options{})
}

func newRootCommand(options *Options) *cobra.Command {
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [file]",
		Short:         build.Description,
		Long:          build.Description + ".\n\nWithout a file the live view shows the built-in test signal, or the microphone with --source mic.",
		Version:       buildInfo.Describe(),
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, options)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Realtime.Source = config.SourceFile
				cfg.Realtime.File = args[0]
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runLive(cmd.Context(), cfg, options)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(newExportCommand(options))
	rootCmd.AddCommand(newListCommand(options))
	rootCmd.AddCommand(newPresetsCommand())

	// General
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&options.ConfigPath, "config", "",
		"Configuration file. Default searches butterfly.yaml then config.yaml")
	flags.StringVar(&options.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")
	flags.StringVar(&options.LogFile, "log-file", "",
		"Write logs to this file. The terminal view discards them otherwise")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")
	flags.BoolVar(&options.NoTUI, "no-tui", false,
		"Run without the terminal view")

	// Analysis
	flags.IntVarP(&options.FFTSize, "fft-size", "n", config.DefaultFFTSize,
		"FFT size, a power of 2")
	flags.Float64VarP(&options.WhitenAmount, "whiten", "w", config.DefaultWhitenAmount,
		"Spectral whitening amount (0-1)")
	flags.StringVar(&options.Window, "window", config.DefaultFFTWindow,
		"Analysis window applied before the FFT")
	flags.StringVarP(&options.Envelope, "envelope", "e", config.DefaultEnvelopePreset,
		"Envelope preset. Use 'presets' to list them")
	flags.StringVar(&options.Normalization, "normalization", config.DefaultNormalization,
		"Magnitude normalization (none, log)")

	// Visual
	flags.StringVar(&options.Visual, "visual", config.DefaultVisualPreset,
		"Visual preset. Use 'presets' to list them")
	flags.StringVar(&options.ColorMode, "color-mode", "",
		"Override the preset's color mode")
	flags.IntVar(&options.Stage, "stage", -1,
		"Show only this FFT stage (-1 for all)")
	flags.IntVar(&options.Rotation, "rotation", 0,
		"Diagram rotation in degrees (0 or 90)")
	flags.IntVar(&options.Width, "width", config.DefaultWidth,
		"Canvas width in pixels")
	flags.IntVar(&options.Height, "height", config.DefaultHeight,
		"Canvas height in pixels")

	// Realtime
	flags.StringVarP(&options.Source, "source", "s", config.DefaultSource,
		"Live source (test, file, mic)")
	flags.IntVarP(&options.DeviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.Float64Var(&options.SampleRate, "sample-rate", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.Float64Var(&options.FrameRate, "fps", config.DefaultFrameRate,
		"Live frame rate")
	flags.BoolVar(&options.NoPlayback, "mute", false,
		"Do not play file sources through the speaker")
	flags.StringVarP(&options.RecordFile, "record", "r", "",
		"Record microphone input to this WAV file")
	flags.Float64Var(&options.Gate, "gate", config.DefaultGateThreshold,
		"Microphone noise gate threshold (0 disables)")

	// Transport
	flags.StringVar(&options.WSAddr, "ws", "",
		"Serve frames over WebSocket on this address (e.g. 127.0.0.1:8765)")
	flags.StringVar(&options.UDPTarget, "udp", "",
		"Send levels over UDP to this address (e.g. 127.0.0.1:9090)")

	return rootCmd
}

// loadConfig reads the configuration file and applies explicit flags on top.
func loadConfig(cmd *cobra.Command, o *Options) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg, o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	configureLogging(cfg, o)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config, o *Options) {
	changed := cmd.Flags().Changed

	if changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if changed("verbose") {
		cfg.Debug = o.Verbose
	}

	if changed("fft-size") {
		cfg.Analysis.FFTSize = o.FFTSize
	}
	if changed("whiten") {
		cfg.Analysis.WhitenAmount = o.WhitenAmount
	}
	if changed("window") {
		cfg.Analysis.FFTWindow = o.Window
	}
	if changed("envelope") {
		cfg.Envelope.Preset = o.Envelope
		cfg.Envelope.AttackTime, cfg.Envelope.ReleaseTime, cfg.Envelope.CurveShape = nil, nil, nil
	}
	if changed("normalization") {
		cfg.Envelope.Normalization = o.Normalization
	}

	if changed("visual") {
		cfg.Visual.Preset = o.Visual
	}
	if changed("color-mode") {
		cfg.Visual.ColorMode = o.ColorMode
	}
	if changed("stage") {
		cfg.Visual.Stage = o.Stage
	}
	if changed("rotation") {
		cfg.Visual.Rotation = o.Rotation
	}
	if changed("width") {
		cfg.Visual.Width = o.Width
	}
	if changed("height") {
		cfg.Visual.Height = o.Height
	}

	if changed("source") {
		cfg.Realtime.Source = o.Source
	}
	if changed("device") {
		cfg.Realtime.Device = o.DeviceID
	}
	if changed("sample-rate") {
		cfg.Realtime.SampleRate = o.SampleRate
	}
	if changed("fps") {
		cfg.Realtime.FrameRate = o.FrameRate
	}
	if changed("mute") {
		cfg.Realtime.Playback = !o.NoPlayback
	}
	if changed("record") {
		cfg.Realtime.RecordFile = o.RecordFile
	}
	if changed("gate") {
		cfg.Realtime.GateThreshold = o.Gate
	}

	if changed("ws") {
		cfg.Transport.WSEnabled = o.WSAddr != ""
		cfg.Transport.WSAddr = o.WSAddr
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = o.UDPTarget != ""
		cfg.Transport.UDPTargetAddress = o.UDPTarget
	}

	// Export flags only exist on the export command.
	if changed("output") {
		cfg.Export.Output = o.Output
	}
	if changed("encoder") {
		cfg.Export.Encoder = o.Encoder
	}
	if changed("export-fps") {
		cfg.Export.FrameRate = o.ExportFPS
	}
	if changed("quality") {
		cfg.Export.Quality = o.Quality
	}
	if changed("ffmpeg") {
		cfg.Export.FFmpeg = o.FFmpeg
	}
}

// configureLogging applies the level and picks the destination. The
// terminal view owns the screen, so logs go to --log-file or nowhere.
func configureLogging(cfg *config.Config, o *Options) {
	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	if o.LogFile != "" {
		f, err := os.OpenFile(o.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			applog.Warnf("CLI: Cannot open log file %s: %v", o.LogFile, err)
		} else {
			applog.SetOutput(f)
			return
		}
	}
	if !o.NoTUI {
		applog.SetOutput(io.Discard)
	}
}
