package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"butterfly/internal/config"
	"butterfly/internal/driver"
	"butterfly/internal/encode"
	"butterfly/internal/host"
	applog "butterfly/internal/log"
	"butterfly/internal/render"
	"butterfly/internal/source"
	"butterfly/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newExportCommand(options *Options) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Render an audio file to video at an exact frame rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, options)
			if err != nil {
				return err
			}
			encoderSet := cmd.Flags().Changed("encoder") || cfg.Export.Encoder != config.DefaultEncoder
			return runExport(cmd.Context(), cfg, args[0], encoderSet, options)
		},
	}

	exportCmd.Flags().StringVarP(&options.Output, "output", "o", "",
		"Output file. Default is the input name with the encoder's extension")
	exportCmd.Flags().StringVar(&options.Encoder, "encoder", config.DefaultEncoder,
		"Video format (webm, mp4, gif). Inferred from --output when not given")
	exportCmd.Flags().Float64Var(&options.ExportFPS, "export-fps", config.DefaultExportFrameRate,
		"Export frame rate")
	exportCmd.Flags().Float64Var(&options.Quality, "quality", config.DefaultExportQuality,
		"Encoder quality (0-1)")
	exportCmd.Flags().StringVar(&options.FFmpeg, "ffmpeg", "",
		"ffmpeg binary. Default searches PATH")
	return exportCmd
}

// exportPlan resolves the container and output path. An explicit output
// with a known extension decides the format unless --encoder was given.
func exportPlan(cfg *config.Config, input string, encoderSet bool) (encode.Format, string, error) {
	output := cfg.Export.Output
	encoder := cfg.Export.Encoder
	if output != "" && !encoderSet {
		if f, err := encode.ParseFormat(filepath.Ext(output)); err == nil {
			encoder = string(f)
		}
	}
	format, err := encode.ParseFormat(encoder)
	if err != nil {
		return "", "", err
	}
	if output == "" {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		output = base + "." + string(format)
	}
	return format, output, nil
}

func runExport(ctx context.Context, cfg *config.Config, input string, encoderSet bool, o *Options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	format, output, err := exportPlan(cfg, input, encoderSet)
	if err != nil {
		return err
	}
	env, norm, err := cfg.Envelope.Resolve()
	if err != nil {
		return err
	}
	visual, err := cfg.Visual.Resolve()
	if err != nil {
		return err
	}
	canvas, err := render.NewCanvas(cfg.Visual.Width, cfg.Visual.Height, render.NewSettings(visual))
	if err != nil {
		return err
	}
	session, err := driver.NewSession(driver.SessionOptions{
		FFTSize:       cfg.Analysis.FFTSize,
		WhitenAmount:  cfg.Analysis.WhitenAmount,
		Window:        cfg.Analysis.WindowFunc(),
		Envelope:      env,
		Normalization: norm,
	}, canvas)
	if err != nil {
		return err
	}
	defer session.Close()

	src := source.NewFile(input, source.FileOptions{BufferSize: cfg.Analysis.FFTSize})
	if err := session.SwitchSource(ctx, src); err != nil {
		return err
	}
	src.Pause()

	sink, err := encode.New(encode.Options{
		Format:    format,
		FrameRate: cfg.Export.FrameRate,
		Quality:   cfg.Export.Quality,
		FFmpeg:    cfg.Export.FFmpeg,
	})
	if err != nil {
		return err
	}

	loop := host.New(0)
	var (
		program  *tea.Program
		artifact []byte
	)
	notify := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	yieldEvery := cfg.Export.YieldEvery
	exp, err := driver.NewOfflineExport(session, src, canvas, sink, driver.ExportOptions{
		FrameRate:  cfg.Export.FrameRate,
		YieldEvery: yieldEvery,
		Yielder:    loop,
		OnFrame: func(index, total int) {
			if index%yieldEvery == 0 || index == total-1 {
				notify(tui.ExportFrameMsg{Index: index, Total: total})
			}
		},
		OnProgress: func(fraction float64) {
			if program == nil {
				applog.Infof("Export: %3.0f%%", fraction*100)
			}
			notify(tui.ProgressMsg(fraction))
		},
		OnComplete: func(b []byte) { artifact = b },
	})
	if err != nil {
		sink.Abort()
		return err
	}

	if !o.NoTUI {
		program = tea.NewProgram(tui.NewExportModel(filepath.Base(input), func() { loop.Post(exp.Stop) }))
	}

	// A signal stops the export at its next yield.
	go func() {
		<-ctx.Done()
		loop.Post(exp.Stop)
	}()

	var runErr error
	loop.Post(func() {
		runErr = session.Run(exp)
		loop.Quit()
	})

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(context.Background())
	}()

	var tuiDone chan error
	if program != nil {
		tuiDone = make(chan error, 1)
		go func() {
			_, err := program.Run()
			tuiDone <- err
		}()
	}

	<-loopDone

	done := tui.ExportDoneMsg{Output: output, Err: runErr, Cancelled: runErr == nil && !exp.Completed()}
	if exp.Completed() {
		if err := os.WriteFile(output, artifact, 0644); err != nil {
			done.Err = fmt.Errorf("write %s: %w", output, err)
		} else {
			done.Bytes = len(artifact)
		}
	}

	if program != nil {
		program.Send(done)
		if err := <-tuiDone; err != nil {
			applog.Warnf("Export: Terminal view: %v", err)
		}
	}

	switch {
	case done.Err != nil:
		return done.Err
	case done.Cancelled:
		applog.Infof("Export: Cancelled, nothing written")
	default:
		applog.Infof("Export: Wrote %s (%d bytes)", output, done.Bytes)
	}
	return nil
}
