// SPDX-License-Identifier: MIT

// Package fft implements a radix-2 decimation-in-time FFT that keeps every
// butterfly stage. The visualizer draws all log2(N)+1 stages, so the engine
// returns the whole history instead of only the final spectrum.
package fft

import (
	"math"

	"butterfly/internal/errs"
	"butterfly/pkg/bitint"
)

// Engine computes staged transforms for one fixed size N. The bit-reversal
// table is built once in NewEngine and never written again, so a single
// Engine may be shared by any number of callers.
type Engine struct {
	size       int
	levels     int
	reversal   []int        // reversal[i] = bit-reversed i over `levels` bits
	twiddleInc []complex128 // per-stage base twiddle W = exp(-2πi/butterflySize)
}

// NewEngine builds an engine for transforms of length size. size must be a
// positive power of two.
func NewEngine(size int) (*Engine, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, errs.Configurationf("fft size must be a power of 2, got %d", size)
	}

	levels := bitint.Log2(size)
	reversal := make([]int, size)
	for i := range size {
		reversal[i] = bitint.ReverseBits(i, levels)
	}

	// Index s holds W for stage s; index 0 is unused.
	twiddleInc := make([]complex128, levels+1)
	for s := 1; s <= levels; s++ {
		theta := -2 * math.Pi / float64(int(1)<<s)
		twiddleInc[s] = complex(math.Cos(theta), math.Sin(theta))
	}

	return &Engine{
		size:       size,
		levels:     levels,
		reversal:   reversal,
		twiddleInc: twiddleInc,
	}, nil
}

// Size returns N.
func (e *Engine) Size() int { return e.size }

// Stages returns the number of stages in every snapshot, log2(N)+1.
func (e *Engine) Stages() int { return e.levels + 1 }

// BitReversal returns a copy of the permutation table.
func (e *Engine) BitReversal() []int {
	out := make([]int, len(e.reversal))
	copy(out, e.reversal)
	return out
}

// Compute runs the transform over input and returns a fresh snapshot. It
// shares no mutable state with earlier or later calls.
//
// The twiddle factor inside each butterfly group is advanced by repeated
// multiplication with W rather than recomputed with cos/sin per butterfly.
// The accumulated rotation error grows with the group half-size and stays
// far below anything visible; tests bound it against a reference FFT.
func (e *Engine) Compute(input []float64) (*Snapshot, error) {
	if len(input) != e.size {
		return nil, errs.Configurationf("input size %d does not match fft size %d", len(input), e.size)
	}

	stages := make([][]complex128, e.levels+1)

	first := make([]complex128, e.size)
	for i, rev := range e.reversal {
		first[i] = complex(input[rev], 0)
	}
	stages[0] = first

	prev := first
	for s := 1; s <= e.levels; s++ {
		butterflySize := 1 << s
		half := butterflySize >> 1
		w := e.twiddleInc[s]

		next := make([]complex128, e.size)
		for group := 0; group < e.size; group += butterflySize {
			u := complex(1, 0)
			for j := range half {
				even := prev[group+j]
				t := u * prev[group+j+half]
				next[group+j] = even + t
				next[group+j+half] = even - t
				u *= w
			}
		}

		stages[s] = next
		prev = next
	}

	in := make([]float64, e.size)
	copy(in, input)

	return &Snapshot{
		Input:       in,
		Stages:      stages,
		BitReversal: e.reversal,
	}, nil
}
