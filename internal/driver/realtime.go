// SPDX-License-Identifier: MIT
package driver

import (
	"time"

	"butterfly/internal/host"
	"butterfly/internal/log"
	"butterfly/internal/source"
)

// Realtime renders one frame per refresh callback until stopped.
type Realtime struct {
	session   *Session
	source    source.Source
	scheduler FrameScheduler

	state   State
	handle  host.FrameID
	pending bool
	frames  int
	started time.Time

	// OnError receives per-frame processing or render errors. The loop keeps
	// running.
	OnError func(error)
}

var _ Driver = (*Realtime)(nil)

// NewRealtime builds a realtime driver over src.
func NewRealtime(session *Session, src source.Source, scheduler FrameScheduler) *Realtime {
	return &Realtime{session: session, source: src, scheduler: scheduler}
}

func (r *Realtime) Mode() Mode { return ModeRealtime }

func (r *Realtime) Running() bool { return r.state == StateRunning }

// Frames returns the number of frames rendered.
func (r *Realtime) Frames() int { return r.frames }

// Start schedules the first frame. Starting a running driver does nothing.
func (r *Realtime) Start() error {
	switch r.state {
	case StateRunning:
		return nil
	case StateStopped:
		return ErrStopped
	}
	r.state = StateRunning
	r.schedule()
	log.Infof("Driver: Realtime loop started (%s)", r.source.MetaInfo().Name)
	return nil
}

// Stop cancels the pending frame.
func (r *Realtime) Stop() {
	if r.state == StateStopped {
		return
	}
	wasRunning := r.state == StateRunning
	r.state = StateStopped
	if r.pending {
		r.scheduler.CancelFrame(r.handle)
		r.pending = false
	}
	if wasRunning {
		log.Infof("Driver: Realtime loop stopped after %d frames", r.frames)
	}
}

func (r *Realtime) schedule() {
	r.handle = r.scheduler.RequestFrame(r.tick)
	r.pending = true
}

func (r *Realtime) tick(now time.Time) {
	r.pending = false
	if r.state != StateRunning {
		return
	}
	if r.frames == 0 {
		r.started = now
	}

	frame, err := r.session.Process(r.source.NextBuffer())
	if err == nil {
		frame.Index = r.frames
		frame.Time = now.Sub(r.started).Seconds()
		if renderer := r.session.Renderer(); renderer != nil {
			err = renderer.Render(frame)
		}
	}
	if err != nil {
		log.Debugf("Driver: Frame %d: %v", r.frames, err)
		if r.OnError != nil {
			r.OnError(err)
		}
	}
	r.frames++

	// A callback above may have stopped the driver.
	if r.state == StateRunning {
		r.schedule()
	}
}
