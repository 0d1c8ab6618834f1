// SPDX-License-Identifier: MIT
package fft

import (
	"github.com/cwbudde/algo-vecmath"
)

// Snapshot is the full history of one transform.
//
// Stages[0] is the bit-reversed input with zero imaginary parts and
// Stages[len(Stages)-1] is the spectrum. Every stage is its own allocation.
// BitReversal is shared with the engine and must be treated as read-only.
type Snapshot struct {
	Input       []float64
	Stages      [][]complex128
	BitReversal []int
}

// Size returns the number of nodes per stage.
func (s *Snapshot) Size() int {
	if len(s.Stages) == 0 {
		return 0
	}
	return len(s.Stages[0])
}

// Final returns the last stage, the frequency-domain result.
func (s *Snapshot) Final() []complex128 {
	if len(s.Stages) == 0 {
		return nil
	}
	return s.Stages[len(s.Stages)-1]
}

// Magnitudes returns |z| for every node of the given stage. It returns nil for
// an out of range stage index.
func (s *Snapshot) Magnitudes(stage int) []float64 {
	if stage < 0 || stage >= len(s.Stages) {
		return nil
	}
	out := make([]float64, len(s.Stages[stage]))
	s.MagnitudesInto(out, stage)
	return out
}

// MagnitudesInto writes |z| for every node of stage into dst, which must be at
// least Size() long.
func (s *Snapshot) MagnitudesInto(dst []float64, stage int) {
	nodes := s.Stages[stage]
	re := make([]float64, len(nodes))
	im := make([]float64, len(nodes))
	for i, c := range nodes {
		re[i] = real(c)
		im[i] = imag(c)
	}
	vecmath.Magnitude(dst[:len(nodes)], re, im)
}
