// SPDX-License-Identifier: MIT
/*
Package driver runs the per-frame pipeline: pull a buffer from the source,
whiten it, transform it, advance the envelope follower and render.

Two drivers exist. Realtime runs one frame per display refresh for as long
as it is running. OfflineExport iterates a seekable source frame by frame
at exact timestamps and feeds an encoder. Both run on the host loop's single
goroutine, so the session state they share needs no locking.
*/
package driver

import (
	"errors"
	"fmt"

	"butterfly/internal/host"
)

// Mode identifies a driver variant.
type Mode int

const (
	ModeRealtime Mode = iota
	ModeExport
)

func (m Mode) String() string {
	switch m {
	case ModeRealtime:
		return "realtime"
	case ModeExport:
		return "export"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is the lifecycle position of a driver. Drivers only move forward:
// Idle, Running, Stopped.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrStopped is returned by Start on a driver that has already stopped.
// Build a new driver instead.
var ErrStopped = errors.New("driver already stopped")

// Driver is a loop over the pipeline.
type Driver interface {
	Start() error
	// Stop is idempotent.
	Stop()
	Running() bool
	Mode() Mode
}

// FrameScheduler delivers display refresh callbacks. host.Loop implements
// it.
type FrameScheduler interface {
	RequestFrame(cb host.FrameCallback) host.FrameID
	CancelFrame(id host.FrameID)
}

// Yielder lets a long computation hand control back to the host briefly.
// host.Loop implements it.
type Yielder interface {
	Yield()
}

var (
	_ FrameScheduler = (*host.Loop)(nil)
	_ Yielder        = (*host.Loop)(nil)
)

type yieldFunc func()

func (f yieldFunc) Yield() { f() }

// noYield is used when the export has no host to yield to.
var noYield Yielder = yieldFunc(func() {})
