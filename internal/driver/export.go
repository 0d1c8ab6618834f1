// SPDX-License-Identifier: MIT
package driver

import (
	"context"
	"math"

	"butterfly/internal/encode"
	"butterfly/internal/errs"
	"butterfly/internal/log"
	"butterfly/internal/render"
	"butterfly/internal/source"
)

// DefaultYieldEvery is how many frames the export renders between progress
// reports and yields.
const DefaultYieldEvery = 30

// ExportOptions configures an offline export.
type ExportOptions struct {
	FrameRate  float64
	YieldEvery int
	Yielder    Yielder

	OnFrame    func(index, total int)
	OnProgress func(fraction float64)
	OnComplete func(artifact []byte)
	OnError    func(err error)
}

// OfflineExport renders a seekable source at exact timestamps i/fps into a
// video sink. Start runs the whole export synchronously; Stop, posted to
// the host loop, is observed at the next frame boundary, which includes
// every yield.
type OfflineExport struct {
	session *Session
	source  source.Seekable
	surface render.Surface
	sink    encode.Sink
	opts    ExportOptions

	duration    float64
	totalFrames int
	state       State
	stopFlag    bool
	completed   bool
}

var _ Driver = (*OfflineExport)(nil)

// NewOfflineExport validates the export up front. The source must be
// seekable and report a finite positive duration, and the frame rate must
// be positive.
func NewOfflineExport(session *Session, src source.Source, surface render.Surface, sink encode.Sink, opts ExportOptions) (*OfflineExport, error) {
	seekable, ok := src.(source.Seekable)
	if !ok {
		return nil, errs.Configurationf("offline export requires a seekable source, %s is not", src.MetaInfo().Name)
	}
	duration, ok := source.ExportableDuration(src.MetaInfo())
	if !ok {
		return nil, errs.Configurationf("offline export requires a known finite duration, %s has none", src.MetaInfo().Name)
	}
	if !(opts.FrameRate > 0) || math.IsInf(opts.FrameRate, 0) {
		return nil, errs.Configurationf("export frame rate must be positive, got %v", opts.FrameRate)
	}
	if surface == nil || sink == nil {
		return nil, errs.Configurationf("offline export needs a surface and a sink")
	}
	if opts.YieldEvery <= 0 {
		opts.YieldEvery = DefaultYieldEvery
	}
	if opts.Yielder == nil {
		opts.Yielder = noYield
	}
	return &OfflineExport{
		session:     session,
		source:      seekable,
		surface:     surface,
		sink:        sink,
		opts:        opts,
		duration:    duration,
		totalFrames: int(math.Ceil(duration * opts.FrameRate)),
	}, nil
}

func (e *OfflineExport) Mode() Mode { return ModeExport }

func (e *OfflineExport) Running() bool { return e.state == StateRunning }

// TotalFrames is ceil(duration * frameRate).
func (e *OfflineExport) TotalFrames() int { return e.totalFrames }

// Completed reports whether the artifact was delivered.
func (e *OfflineExport) Completed() bool { return e.completed }

// Stop requests cancellation. An export stopped before it finishes is
// discarded: the sink is aborted and OnComplete never fires.
func (e *OfflineExport) Stop() {
	switch e.state {
	case StateIdle:
		e.state = StateStopped
	case StateRunning:
		e.stopFlag = true
	}
}

// Start runs the export to completion or cancellation. It returns the error
// that ended it, nil for both completion and cancellation.
func (e *OfflineExport) Start() error {
	switch e.state {
	case StateRunning:
		return nil
	case StateStopped:
		return ErrStopped
	}
	e.state = StateRunning
	defer func() { e.state = StateStopped }()

	log.Infof("Driver: Export started (%s, %.2fs, %d frames @ %.2f fps)",
		e.source.MetaInfo().Name, e.duration, e.totalFrames, e.opts.FrameRate)
	e.session.Discontinuity()

	for i := 0; i < e.totalFrames; i++ {
		if e.stopFlag {
			log.Infof("Driver: Export cancelled at frame %d/%d", i, e.totalFrames)
			e.abort()
			return nil
		}

		if err := e.renderFrame(i); err != nil {
			e.abort()
			return e.fail(err)
		}
		if e.opts.OnFrame != nil {
			e.opts.OnFrame(i, e.totalFrames)
		}
		if i%e.opts.YieldEvery == 0 {
			e.progress(float64(i) / float64(e.totalFrames))
			e.opts.Yielder.Yield()
		}
	}

	// A stop requested during the final frames still discards the export.
	if e.stopFlag {
		log.Infof("Driver: Export cancelled after the last frame")
		e.abort()
		return nil
	}

	e.progress(1)
	artifact, err := e.sink.Complete(context.Background())
	if err != nil {
		return e.fail(err)
	}
	e.completed = true
	log.Infof("Driver: Export complete (%d frames, %d bytes)", e.totalFrames, len(artifact))
	if e.opts.OnComplete != nil {
		e.opts.OnComplete(artifact)
	}
	return nil
}

func (e *OfflineExport) renderFrame(i int) error {
	t := float64(i) / e.opts.FrameRate
	frame, err := e.session.Process(e.source.BufferAt(t))
	if err != nil {
		return err
	}
	frame.Index = i
	frame.Time = t
	if err := e.surface.Render(frame); err != nil {
		return err
	}
	return e.sink.AddFrame(e.surface.Pixels())
}

// abort releases the sink. Its error is logged; the export already ended.
func (e *OfflineExport) abort() {
	if err := e.sink.Abort(); err != nil {
		log.Warnf("Driver: Aborting sink: %v", err)
	}
}

func (e *OfflineExport) progress(fraction float64) {
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(fraction)
	}
}

func (e *OfflineExport) fail(err error) error {
	log.Errorf("Driver: Export failed: %v", err)
	if e.opts.OnError != nil {
		e.opts.OnError(err)
	}
	return err
}
