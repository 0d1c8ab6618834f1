package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"butterfly/internal/config"
	"butterfly/internal/driver"
	"butterfly/internal/envelope"
	"butterfly/internal/host"
	applog "butterfly/internal/log"
	"butterfly/internal/render"
	"butterfly/internal/source"
	"butterfly/internal/transport"
	"butterfly/internal/transport/udp"
	"butterfly/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

// tuiFrameInterval caps how often frames reach the terminal view.
const tuiFrameInterval = 50 * time.Millisecond

// seekStep is how far the arrow keys move a file's playhead, in seconds.
const seekStep = 5.0

// Live FFT sizes cycle within this range.
const (
	minLiveFFTSize = 32
	maxLiveFFTSize = 4096
)

// gateSteps are the microphone gate thresholds the gate key cycles through.
var gateSteps = []float64{0, 0.01, 0.05, 0.1, 0.2}

// liveApp wires one realtime session. Everything except the constructor,
// the closers and Run runs on the host loop.
type liveApp struct {
	cfg      *config.Config
	loop     *host.Loop
	session  *driver.Session
	source   source.Source
	settings *render.Settings
	canvas   *render.Canvas
	program  *tea.Program

	paused          bool
	snapshotPending bool
	lastErr         string
	closers         []io.Closer
}

func newLiveApp(cfg *config.Config) (*liveApp, error) {
	env, norm, err := cfg.Envelope.Resolve()
	if err != nil {
		return nil, err
	}
	visual, err := cfg.Visual.Resolve()
	if err != nil {
		return nil, err
	}
	settings := render.NewSettings(visual)
	canvas, err := render.NewCanvas(cfg.Visual.Width, cfg.Visual.Height, settings)
	if err != nil {
		return nil, err
	}
	session, err := driver.NewSession(driver.SessionOptions{
		FFTSize:       cfg.Analysis.FFTSize,
		WhitenAmount:  cfg.Analysis.WhitenAmount,
		Window:        cfg.Analysis.WindowFunc(),
		Envelope:      env,
		Normalization: norm,
	}, nil)
	if err != nil {
		return nil, err
	}

	interval := time.Duration(float64(time.Second) / cfg.Realtime.FrameRate)
	return &liveApp{
		cfg:      cfg,
		loop:     host.New(interval),
		session:  session,
		source:   newLiveSource(cfg),
		settings: settings,
		canvas:   canvas,
	}, nil
}

// newLiveSource builds the configured source. Validate has already checked
// the source name.
func newLiveSource(cfg *config.Config) source.Source {
	n := cfg.Analysis.FFTSize
	switch cfg.Realtime.Source {
	case config.SourceFile:
		return source.NewFile(cfg.Realtime.File, source.FileOptions{
			BufferSize: n,
			Speaker:    cfg.Realtime.Playback,
		})
	case config.SourceMicrophone:
		return source.NewMicrophone(source.MicrophoneOptions{
			DeviceID:      cfg.Realtime.Device,
			BufferSize:    n,
			SampleRate:    cfg.Realtime.SampleRate,
			Channels:      1,
			GateThreshold: cfg.Realtime.GateThreshold,
			RecordFile:    cfg.Realtime.RecordFile,
		})
	default:
		return source.NewTestSignal(n, cfg.Realtime.SampleRate)
	}
}

// startTransports starts the configured network publishers.
func (a *liveApp) startTransports() (render.Multi, error) {
	var renderers render.Multi
	t := a.cfg.Transport

	if applog.Enabled(applog.LevelDebug) {
		renderers = append(renderers, transport.Publish(transport.NewLoggingTransport()))
	}

	if t.WSEnabled {
		ws := transport.NewWebSocketTransport(t.WSAddr)
		a.closers = append(a.closers, ws)
		if err := ws.Start(); err != nil {
			return nil, fmt.Errorf("websocket transport: %w", err)
		}
		renderers = append(renderers, transport.Publish(ws))
	}

	if t.UDPEnabled {
		sender, err := udp.NewUDPSender(t.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sender)
		publisher, err := udp.NewUDPPublisher(t.UDPSendInterval, sender)
		if err != nil {
			return nil, err
		}
		// Stop the publisher before its sender closes.
		a.closers = append(a.closers, publisher)
		publisher.Start()
		renderers = append(renderers, publisher)
	}
	return renderers, nil
}

func (a *liveApp) startRealtime() {
	rt := driver.NewRealtime(a.session, a.source, a.loop)
	rt.OnError = a.reportError
	if err := a.session.Run(rt); err != nil {
		a.reportError(err)
	}
}

func (a *liveApp) reportError(err error) {
	if msg := err.Error(); msg != a.lastErr {
		a.lastErr = msg
		applog.Errorf("CLI: %v", err)
		if a.program != nil {
			go a.program.Send(tui.ErrMsg{Err: err})
		}
	}
}

func (a *liveApp) status() tui.Status {
	visual := a.settings.Snapshot()
	follower := a.session.Follower()
	st := tui.Status{
		FFTSize:       a.session.Engine().Size(),
		Envelope:      follower.Config().Name,
		Normalization: follower.Normalization().Mode.String(),
		Visual:        visual.Name,
		Stage:         visual.SelectedStage,
		Rotation:      visual.Rotation,
		Paused:        a.paused,
	}
	src := a.session.Source()
	if src == nil {
		return st
	}
	meta := src.MetaInfo()
	st.Source = meta.Name
	if p, ok := src.(source.Playable); ok && meta.HasDuration {
		st.Position, st.Duration = p.CurrentTime(), meta.Duration
	}
	if mic, ok := src.(*source.Microphone); ok {
		st.HasGate = true
		if mic.Gate().Enabled() {
			st.Gate = mic.Gate().Threshold()
		}
		st.Recording = mic.Recording()
	}
	return st
}

func (a *liveApp) togglePause() {
	a.paused = !a.paused
	if p, ok := a.source.(source.Playable); ok {
		if a.paused {
			p.Pause()
		} else {
			p.Play()
		}
	}
	if a.paused {
		a.session.Stop()
		return
	}
	a.startRealtime()
}

// seek moves a file's playhead by delta seconds.
func (a *liveApp) seek(delta float64) {
	p, ok := a.source.(source.Playable)
	if !ok {
		return
	}
	if err := a.session.Seek(p.CurrentTime() + delta); err != nil {
		a.reportError(err)
	}
}

func (a *liveApp) nextFFTSize() {
	n := nextFFTSize(a.session.Engine().Size())
	if err := a.session.SetFFTSize(n); err != nil {
		a.reportError(err)
		return
	}
	stages := a.session.Engine().Stages()
	a.settings.Update(func(c *render.Config) {
		if c.SelectedStage >= stages {
			c.SelectedStage = render.AllStages
		}
	})
}

func (a *liveApp) toggleNormalization() {
	follower := a.session.Follower()
	norm := follower.Normalization()
	if norm.Mode == envelope.NormalizeLog {
		norm.Mode = envelope.NormalizeNone
	} else {
		norm.Mode = envelope.NormalizeLog
		if norm.LogBase == 0 {
			norm.LogBase = a.cfg.Envelope.LogBase
		}
	}
	follower.SetNormalization(norm)
}

func (a *liveApp) nextGate() {
	mic, ok := a.source.(*source.Microphone)
	if !ok {
		return
	}
	current := 0.0
	if mic.Gate().Enabled() {
		current = mic.Gate().Threshold()
	}
	next := nextGateStep(current)
	mic.SetGateThreshold(next)
	applog.Infof("CLI: Gate threshold %.2f", next)
}

func (a *liveApp) nextEnvelope() {
	follower := a.session.Follower()
	follower.SetConfig(envelope.NextPreset(follower.Config().Name))
}

func (a *liveApp) nextVisual() {
	a.settings.Update(func(c *render.Config) {
		next := nextVisualPreset(c.Name)
		next.SelectedStage, next.Rotation = c.SelectedStage, c.Rotation
		*c = next
	})
}

func (a *liveApp) nextStage() {
	stages := a.session.Engine().Stages()
	a.settings.Update(func(c *render.Config) {
		c.SelectedStage++
		if c.SelectedStage >= stages {
			c.SelectedStage = render.AllStages
		}
	})
}

func (a *liveApp) rotate() {
	a.settings.Update(func(c *render.Config) {
		c.Rotation = 90 - c.Rotation
	})
}

// Render saves the canvas when a snapshot was requested; the diagram is not
// rasterized otherwise.
func (a *liveApp) Render(frame *render.Frame) error {
	if !a.snapshotPending {
		return nil
	}
	a.snapshotPending = false
	if err := a.canvas.Render(frame); err != nil {
		return err
	}
	name := fmt.Sprintf("butterfly-%s.png", time.Now().Format("20060102-150405"))
	if err := writePNG(name, a.canvas.Pixels()); err != nil {
		return err
	}
	applog.Infof("CLI: Saved snapshot %s", name)
	return nil
}

// post wraps fn so the terminal view can trigger it from its goroutine.
func (a *liveApp) post(fn func()) func() {
	return func() { a.loop.Post(fn) }
}

func (a *liveApp) actions(quit func()) tui.Actions {
	return tui.Actions{
		NextEnvelope:        a.post(a.nextEnvelope),
		ToggleNormalization: a.post(a.toggleNormalization),
		NextVisual:          a.post(a.nextVisual),
		NextStage:           a.post(a.nextStage),
		Rotate:              a.post(a.rotate),
		TogglePause:         a.post(a.togglePause),
		SeekBack:            a.post(func() { a.seek(-seekStep) }),
		SeekForward:         a.post(func() { a.seek(seekStep) }),
		NextFFTSize:         a.post(a.nextFFTSize),
		NextGate:            a.post(a.nextGate),
		Snapshot:            a.post(func() { a.snapshotPending = true }),
		Quit:                quit,
	}
}

// close runs after the loop has stopped.
func (a *liveApp) close() {
	if err := a.session.Close(); err != nil {
		applog.Warnf("CLI: Closing session: %v", err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			applog.Warnf("CLI: Closing transport: %v", err)
		}
	}
}

func runLive(ctx context.Context, cfg *config.Config, o *Options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newLiveApp(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	renderers := render.Multi{app}
	transports, err := app.startTransports()
	if err != nil {
		return err
	}
	renderers = append(renderers, transports...)

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	if !o.NoTUI {
		app.program = tea.NewProgram(tui.NewLiveModel(app.actions(cancelLoop)),
			tea.WithAltScreen(), tea.WithContext(ctx))
		renderers = append(renderers, tui.NewFrameSender(app.program.Send, app.status, tuiFrameInterval))
	}
	app.session.SetRenderer(renderers)

	// The loop is not running yet, so the session may be set up from here.
	if err := app.session.SwitchSource(ctx, app.source); err != nil {
		return err
	}
	app.startRealtime()

	loopDone := make(chan error, 1)
	go func() { loopDone <- app.loop.Run(loopCtx) }()

	if app.program == nil {
		applog.Infof("CLI: Running without terminal view, press Ctrl+C to stop")
		<-ctx.Done()
		cancelLoop()
		<-loopDone
		return nil
	}

	_, err = app.program.Run()
	cancelLoop()
	<-loopDone
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// nextFFTSize doubles n, wrapping to the smallest live size past the largest.
func nextFFTSize(n int) int {
	n *= 2
	if n < minLiveFFTSize || n > maxLiveFFTSize {
		return minLiveFFTSize
	}
	return n
}

// nextGateStep returns the first gate step above current, wrapping to off.
func nextGateStep(current float64) float64 {
	for _, g := range gateSteps {
		if g > current+1e-6 {
			return g
		}
	}
	return gateSteps[0]
}

// nextVisualPreset returns the preset after the one named, wrapping around.
func nextVisualPreset(name string) render.Config {
	for i, p := range render.Presets {
		if p.Name == name {
			return render.Presets[(i+1)%len(render.Presets)]
		}
	}
	return render.Presets[0]
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
