// SPDX-License-Identifier: MIT
/*
Package source provides the audio feeds the pipeline pulls buffers from.

Every source hands out mono float64 buffers of a fixed length in [-1, 1].
NextBuffer never blocks; a source with nothing to offer returns silence.
Sources that can be addressed by time also implement Seekable, which is what
offline export requires.
*/
package source

import (
	"context"
	"math"
)

// Meta describes a source. Duration is only meaningful when HasDuration is
// set; live sources have none.
type Meta struct {
	Name        string
	SampleRate  float64
	Duration    float64 // seconds
	HasDuration bool
}

// Source is a pull-based provider of sample buffers.
type Source interface {
	// Initialize acquires devices or decodes media. Failures wrap
	// errs.ErrResource.
	Initialize(ctx context.Context) error
	// NextBuffer returns the next buffer of samples. The caller owns it.
	NextBuffer() []float64
	MetaInfo() Meta
	// Disconnect releases everything Initialize acquired. Calling it more
	// than once is harmless.
	Disconnect() error
}

// Seekable sources can produce the buffer starting at any time t (seconds).
type Seekable interface {
	Source
	BufferAt(t float64) []float64
}

// Playable sources have a playhead the user can move.
type Playable interface {
	Source
	Play()
	Pause()
	Seek(t float64)
	CurrentTime() float64
}

// Resizable sources can change the length of the buffers they hand out,
// which follows the FFT size.
type Resizable interface {
	SetBufferSize(n int)
}

var (
	_ Playable  = (*File)(nil)
	_ Resizable = (*File)(nil)
	_ Resizable = (*TestSignal)(nil)
	_ Resizable = (*Microphone)(nil)
)

// ExportableDuration reports the duration an offline export may iterate
// over. It is false for live sources and for unknown, infinite, zero or
// negative durations.
func ExportableDuration(m Meta) (float64, bool) {
	if !m.HasDuration || math.IsNaN(m.Duration) || math.IsInf(m.Duration, 0) || m.Duration <= 0 {
		return 0, false
	}
	return m.Duration, true
}

// window copies size samples of pcm starting at start, zero-padded on either
// side when the range leaves the signal.
func window(pcm []float64, start, size int) []float64 {
	out := make([]float64, size)
	if start >= len(pcm) || start+size <= 0 {
		return out
	}
	src, dst := start, 0
	if src < 0 {
		dst = -src
		src = 0
	}
	copy(out[dst:], pcm[src:])
	return out
}
