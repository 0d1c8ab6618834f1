// SPDX-License-Identifier: MIT
/*
Package host provides the single flow of control the pipeline runs on.

A Loop owns one goroutine. Posted tasks run on it in FIFO order, and on every
refresh tick it fires the frame callbacks requested since the previous tick,
the way a browser fires requestAnimationFrame callbacks. A callback that wants
another frame must request it again. Long tasks (offline export) call Yield
to let queued tasks, such as a Stop posted from a signal handler, run in
between.

Only Post, Quit and Running are safe to call from other goroutines. Everything
else must be called from tasks or frame callbacks running on the loop.
*/
package host

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"butterfly/internal/log"
)

// FrameID identifies a pending frame request. The zero value is never issued.
type FrameID uint64

// FrameCallback receives the tick time of the frame it was scheduled for.
type FrameCallback func(now time.Time)

// DefaultFrameInterval approximates a 60 Hz display.
const DefaultFrameInterval = time.Second / 60

const taskQueueSize = 256

type frameRequest struct {
	id FrameID
	cb FrameCallback
}

// Loop is the host event loop.
type Loop struct {
	interval time.Duration
	tasks    chan func()
	quit     chan struct{}
	quitOnce sync.Once
	running  atomic.Bool

	nextID  FrameID
	pending []frameRequest
	firing  []frameRequest
}

// New returns a loop that ticks every interval. Non-positive intervals select
// DefaultFrameInterval.
func New(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{
		interval: interval,
		tasks:    make(chan func(), taskQueueSize),
		quit:     make(chan struct{}),
	}
}

// Interval returns the refresh period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Run processes tasks and refresh ticks until ctx is done or Quit is called.
// It must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Debugf("Host: Loop running (interval %v)", l.interval)
	for {
		select {
		case <-ctx.Done():
			log.Debugf("Host: Loop stopped by context")
			return ctx.Err()
		case <-l.quit:
			log.Debugf("Host: Loop quit")
			l.Yield()
			return nil
		case fn := <-l.tasks:
			fn()
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}

// Running reports whether Run is active.
func (l *Loop) Running() bool { return l.running.Load() }

// Post queues fn to run on the loop. It blocks while the queue is full and
// returns false if the loop has quit.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Quit asks Run to return after draining queued tasks. Safe to call more
// than once.
func (l *Loop) Quit() {
	l.quitOnce.Do(func() { close(l.quit) })
}

// Yield runs every task queued at the time of the call, then returns. It
// never blocks waiting for new tasks.
func (l *Loop) Yield() {
	for n := len(l.tasks); n > 0; n-- {
		select {
		case fn := <-l.tasks:
			fn()
		default:
			return
		}
	}
}

// RequestFrame schedules cb for the next tick.
func (l *Loop) RequestFrame(cb FrameCallback) FrameID {
	l.nextID++
	l.pending = append(l.pending, frameRequest{id: l.nextID, cb: cb})
	return l.nextID
}

// CancelFrame drops a pending request. Unknown or already fired IDs are
// ignored.
func (l *Loop) CancelFrame(id FrameID) {
	for i, req := range l.pending {
		if req.id == id {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
	}
	// A callback in the batch being fired may cancel a later one.
	for i := range l.firing {
		if l.firing[i].id == id {
			l.firing[i].cb = nil
			return
		}
	}
}

// PendingFrames returns the number of requests waiting for the next tick.
func (l *Loop) PendingFrames() int { return len(l.pending) }

// Tick fires the callbacks pending at the time of the call. Requests made by
// those callbacks wait for the following tick. Run calls Tick on every
// refresh; tests call it directly.
func (l *Loop) Tick(now time.Time) {
	if len(l.pending) == 0 {
		return
	}
	l.firing, l.pending = l.pending, nil
	for i := range l.firing {
		if cb := l.firing[i].cb; cb != nil {
			cb(now)
		}
	}
	l.firing = nil
}
