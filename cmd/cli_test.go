package cmd

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"butterfly/internal/config"
	"butterfly/internal/encode"
	"butterfly/internal/envelope"
	"butterfly/internal/render"
	"butterfly/internal/source"
)

func TestPresetsCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"presets"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{
		"Neon (Exponential) (default)",
		"Viscous (Sticky)",
		"Phase -> Hue",
		"freq-gradient",
		"hann",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestApplyFlagsOnlyChanged(t *testing.T) {
	opts := &Options{}
	root := newRootCommand(opts)
	exportCmd, _, err := root.Find([]string{"export"})
	if err != nil {
		t.Fatal(err)
	}
	if err := exportCmd.ParseFlags([]string{"--fft-size", "512", "--envelope", "digital", "--output", "x.gif", "--udp", "127.0.0.1:7000"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := config.Default()
	cfg.Analysis.WhitenAmount = 0.3 // from a file, no flag given
	attack := 0.2
	cfg.Envelope.AttackTime = &attack

	applyFlags(exportCmd, &cfg, opts)

	if cfg.Analysis.FFTSize != 512 {
		t.Errorf("fft_size = %d", cfg.Analysis.FFTSize)
	}
	if cfg.Analysis.WhitenAmount != 0.3 {
		t.Errorf("whiten_amount overwritten: %v", cfg.Analysis.WhitenAmount)
	}
	if cfg.Envelope.Preset != "digital" || cfg.Envelope.AttackTime != nil {
		t.Errorf("envelope = %+v", cfg.Envelope)
	}
	if cfg.Export.Output != "x.gif" {
		t.Errorf("output = %q", cfg.Export.Output)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "127.0.0.1:7000" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestExportPlan(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		encoder    string
		encoderSet bool
		wantFormat encode.Format
		wantOutput string
	}{
		{"defaults", "", "webm", false, encode.FormatWebM, "song.webm"},
		{"format from output", "clip.gif", "webm", false, encode.FormatGIF, "clip.gif"},
		{"explicit encoder wins", "clip.gif", "mp4", true, encode.FormatMP4, "clip.gif"},
		{"unknown extension keeps encoder", "clip.bin", "mp4", false, encode.FormatMP4, "clip.bin"},
		{"encoder names the default output", "", "gif", true, encode.FormatGIF, "song.gif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Export.Output = tt.output
			cfg.Export.Encoder = tt.encoder
			format, output, err := exportPlan(&cfg, "/music/song.flac", tt.encoderSet)
			if err != nil {
				t.Fatalf("exportPlan: %v", err)
			}
			if format != tt.wantFormat || output != tt.wantOutput {
				t.Errorf("got %s %s, want %s %s", format, output, tt.wantFormat, tt.wantOutput)
			}
		})
	}

	cfg := config.Default()
	cfg.Export.Encoder = "avi"
	if _, _, err := exportPlan(&cfg, "a.wav", true); err == nil {
		t.Error("expected an error for an unknown encoder")
	}
}

func TestNextVisualPresetWraps(t *testing.T) {
	first := nextVisualPreset("no such preset")
	if first.Name != "Default (Blue-ish)" {
		t.Errorf("unknown name gave %q", first.Name)
	}
	name := first.Name
	for range 3 {
		name = nextVisualPreset(name).Name
	}
	if name != first.Name {
		t.Errorf("three steps from %q gave %q", first.Name, name)
	}
}

func TestNextFFTSize(t *testing.T) {
	tests := []struct{ in, want int }{
		{32, 64},
		{128, 256},
		{2048, 4096},
		{4096, 32},
		{8192, 32},
		{2, 32},
	}
	for _, tt := range tests {
		if got := nextFFTSize(tt.in); got != tt.want {
			t.Errorf("nextFFTSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNextGateStep(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0.01},
		{0.01, 0.05},
		{0.07, 0.1},
		{0.2, 0},
		{0.9, 0},
	}
	for _, tt := range tests {
		if got := nextGateStep(tt.in); got != tt.want {
			t.Errorf("nextGateStep(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLiveAppControls(t *testing.T) {
	cfg := config.Default()
	app, err := newLiveApp(&cfg)
	if err != nil {
		t.Fatalf("newLiveApp: %v", err)
	}
	defer app.close()

	pcm := &source.PCM{Samples: make([]float64, 10*8000), SampleRate: 8000}
	file := source.NewFileFromPCM("tone", pcm, source.FileOptions{BufferSize: cfg.Analysis.FFTSize})
	app.source = file
	if err := app.session.SwitchSource(context.Background(), file); err != nil {
		t.Fatal(err)
	}

	app.session.Whitener().Whiten([]float64{1})
	app.seek(seekStep)
	if got := file.CurrentTime(); math.Abs(got-seekStep) > 0.1 {
		t.Errorf("after seek CurrentTime = %v, want about %v", got, seekStep)
	}
	if out := app.session.Whitener().Whiten([]float64{1}); out[0] != 1 {
		t.Errorf("seek kept whitener memory: %v", out[0])
	}

	app.settings.Update(func(c *render.Config) { c.SelectedStage = 7 })
	app.nextFFTSize()
	if got := app.session.Engine().Size(); got != 2*cfg.Analysis.FFTSize {
		t.Errorf("FFT size = %d, want %d", got, 2*cfg.Analysis.FFTSize)
	}
	if got := len(file.NextBuffer()); got != 2*cfg.Analysis.FFTSize {
		t.Errorf("source buffer = %d samples after resize", got)
	}
	if got := app.settings.Snapshot().SelectedStage; got != 7 {
		t.Errorf("stage 7 exists at N=256 but was reset to %d", got)
	}

	app.toggleNormalization()
	if norm := app.session.Follower().Normalization(); norm.Mode != envelope.NormalizeLog || norm.LogBase != config.DefaultLogBase {
		t.Errorf("normalization = %+v, want log base %v", norm, config.DefaultLogBase)
	}
	app.toggleNormalization()
	if mode := app.session.Follower().Normalization().Mode; mode != envelope.NormalizeNone {
		t.Errorf("second toggle left %v", mode)
	}

	// Gate control only applies to the microphone.
	app.nextGate()

	st := app.status()
	if st.Source != "tone" || st.Duration != 10 || math.Abs(st.Position-seekStep) > 0.1 {
		t.Errorf("status = %+v", st)
	}
	if st.HasGate || st.Normalization != "none" || st.FFTSize != 2*cfg.Analysis.FFTSize {
		t.Errorf("status = %+v", st)
	}
}
