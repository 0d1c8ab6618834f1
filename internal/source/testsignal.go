// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"math"
)

// Two-tone test signal parameters. The fundamental completes two cycles per
// buffer; the harmonic sits at 3.5 times that and 0.3 amplitude so it leaks
// across bins, and the phase drifts every buffer so the display animates.
const (
	testCyclesPerBuffer = 2.0
	testHarmonicRatio   = 3.5
	testHarmonicGain    = 0.3
	testPhaseDrift      = 0.1
)

// TestSignal is a synthetic live source. It has no duration and therefore
// cannot be exported.
type TestSignal struct {
	size       int
	sampleRate float64
	phase      float64
}

// NewTestSignal returns a generator for buffers of size samples.
func NewTestSignal(size int, sampleRate float64) *TestSignal {
	return &TestSignal{size: size, sampleRate: sampleRate}
}

func (s *TestSignal) Initialize(context.Context) error { return nil }

// NextBuffer advances the phase and renders the next buffer. The harmonic
// drifts the other way at twice the rate.
func (s *TestSignal) NextBuffer() []float64 {
	s.phase += testPhaseDrift
	buf := make([]float64, s.size)
	n := float64(s.size)
	for i := range buf {
		x := 2 * math.Pi * testCyclesPerBuffer * float64(i) / n
		buf[i] = math.Sin(x+s.phase) + testHarmonicGain*math.Sin(testHarmonicRatio*x-2*s.phase)
	}
	return buf
}

// SetBufferSize changes the buffer length. The phase carries on.
func (s *TestSignal) SetBufferSize(n int) { s.size = n }

func (s *TestSignal) MetaInfo() Meta {
	return Meta{Name: "Test Signal", SampleRate: s.sampleRate}
}

func (s *TestSignal) Disconnect() error { return nil }
