// SPDX-License-Identifier: MIT

// Package render turns pipeline frames into pictures. The Canvas rasterizes
// the butterfly diagram into an RGBA image; other renderers (network
// transports, the terminal view) receive the same Frame.
package render

import (
	"image"

	"butterfly/internal/analysis"
	"butterfly/internal/fft"
)

// Frame is everything produced for one tick of the pipeline. Levels is the
// follower's stage x node matrix and is only valid until the next frame.
type Frame struct {
	Index    int
	Time     float64 // seconds since the loop started, or export timestamp
	Snapshot *fft.Snapshot
	Levels   [][]float64
	Bands    []analysis.BandLevel
}

// Renderer consumes frames.
type Renderer interface {
	Render(frame *Frame) error
}

// Surface is a renderer that leaves its output in an off-screen image.
type Surface interface {
	Renderer
	Pixels() *image.RGBA
}

// Multi fans a frame out to several renderers. Every renderer is called; the
// first error is returned.
type Multi []Renderer

func (m Multi) Render(frame *Frame) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Render(frame); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(frame *Frame) error

func (f RendererFunc) Render(frame *Frame) error { return f(frame) }
