// SPDX-License-Identifier: MIT
package driver

import (
	"context"

	"butterfly/internal/analysis"
	"butterfly/internal/envelope"
	"butterfly/internal/errs"
	"butterfly/internal/fft"
	"butterfly/internal/log"
	"butterfly/internal/render"
	"butterfly/internal/source"
	"butterfly/internal/whiten"
)

// SessionOptions configures the pipeline components.
type SessionOptions struct {
	FFTSize       int
	WhitenAmount  float64
	Window        analysis.WindowFunc
	Envelope      envelope.Config
	Normalization envelope.Normalization
}

// Session owns one pipeline: its engine, whitener, follower and renderer,
// plus the source and the driver currently using them. At most one driver
// is active per session.
type Session struct {
	engine   *fft.Engine
	whitener *whiten.Whitener
	follower *envelope.Follower
	window   *analysis.Window
	bands    *analysis.BandEnergy
	renderer render.Renderer

	source source.Source
	driver Driver

	// mismatch is the last wrong buffer length reported by Process.
	mismatch int
}

// NewSession builds the pipeline. A non power of two FFT size is a
// configuration error.
func NewSession(opts SessionOptions, renderer render.Renderer) (*Session, error) {
	engine, err := fft.NewEngine(opts.FFTSize)
	if err != nil {
		return nil, err
	}
	w := whiten.New()
	w.SetAmount(opts.WhitenAmount)

	log.Infof("Driver: Session ready (N=%d, %d stages, whiten=%.2f, window=%v, envelope=%q)",
		opts.FFTSize, engine.Stages(), w.Amount(), opts.Window, opts.Envelope.Name)
	return &Session{
		engine:   engine,
		whitener: w,
		follower: envelope.NewFollower(opts.Envelope, opts.Normalization),
		window:   analysis.NewWindow(opts.Window, opts.FFTSize),
		bands:    analysis.NewBandEnergy(0, nil),
		renderer: renderer,
	}, nil
}

func (s *Session) Engine() *fft.Engine           { return s.engine }
func (s *Session) Whitener() *whiten.Whitener    { return s.whitener }
func (s *Session) Follower() *envelope.Follower  { return s.follower }
func (s *Session) Renderer() render.Renderer     { return s.renderer }
func (s *Session) Source() source.Source         { return s.source }
func (s *Session) Driver() Driver                { return s.driver }
func (s *Session) SetRenderer(r render.Renderer) { s.renderer = r }

// SetFFTSize rebuilds the engine and window for n and resizes the current
// source to match. The follower reshapes on the next frame. A source that
// cannot be resized keeps its length and Process fits its buffers.
func (s *Session) SetFFTSize(n int) error {
	engine, err := fft.NewEngine(n)
	if err != nil {
		return err
	}
	s.engine = engine
	s.window = analysis.NewWindow(s.window.Kind(), n)
	if r, ok := s.source.(source.Resizable); ok {
		r.SetBufferSize(n)
	}
	s.Discontinuity()
	log.Infof("Driver: FFT size set to %d", n)
	return nil
}

// Seek moves the source's playhead to t seconds. The jump is a stream
// discontinuity, so the whitener forgets its last sample.
func (s *Session) Seek(t float64) error {
	p, ok := s.source.(source.Playable)
	if !ok {
		return errs.Configurationf("source cannot seek")
	}
	p.Seek(t)
	s.Discontinuity()
	return nil
}

// Discontinuity tells the pipeline the sample stream jumped (seek, restart)
// so stale filter memory is dropped.
func (s *Session) Discontinuity() {
	s.whitener.Reset()
}

// Process runs one buffer through the pipeline and returns the frame to
// render. Buffers of the wrong length are zero-padded or truncated to the
// FFT size; each new mismatched length is logged once.
func (s *Session) Process(buf []float64) (*render.Frame, error) {
	n := s.engine.Size()
	if len(buf) != n {
		if len(buf) != s.mismatch {
			s.mismatch = len(buf)
			log.Warnf("Driver: Source buffer has %d samples, FFT size is %d; fitting", len(buf), n)
		}
		fitted := make([]float64, n)
		copy(fitted, buf)
		buf = fitted
	}

	samples := s.whitener.Whiten(buf)
	s.window.Apply(samples)

	snap, err := s.engine.Compute(samples)
	if err != nil {
		return nil, err
	}
	levels := s.follower.Update(snap)
	return &render.Frame{
		Snapshot: snap,
		Levels:   levels,
		Bands:    s.bands.Measure(snap.Magnitudes(len(snap.Stages) - 1)),
	}, nil
}

// Run stops the active driver, if any, and starts d.
func (s *Session) Run(d Driver) error {
	s.Stop()
	s.driver = d
	return d.Start()
}

// Stop halts the active driver.
func (s *Session) Stop() {
	if s.driver != nil {
		s.driver.Stop()
	}
}

// SwitchSource replaces the session's source. The active driver is stopped
// and the old source disconnected before the new one is initialized. If the
// new source fails to initialize the session is left without a source.
func (s *Session) SwitchSource(ctx context.Context, src source.Source) error {
	s.Stop()
	if s.source != nil {
		if err := s.source.Disconnect(); err != nil {
			log.Warnf("Driver: Disconnecting %s: %v", s.source.MetaInfo().Name, err)
		}
		s.source = nil
	}
	if src == nil {
		return errs.Configurationf("no source given")
	}
	if err := src.Initialize(ctx); err != nil {
		return err
	}
	s.source = src
	s.whitener.Reset()

	meta := src.MetaInfo()
	s.bands = analysis.NewBandEnergy(meta.SampleRate, nil)
	log.Infof("Driver: Source switched to %s", meta.Name)
	return nil
}

// Close stops the driver and disconnects the source.
func (s *Session) Close() error {
	s.Stop()
	if s.source == nil {
		return nil
	}
	err := s.source.Disconnect()
	s.source = nil
	return err
}
