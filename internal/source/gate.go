// SPDX-License-Identifier: MIT
package source

import (
	"math"
	"sync/atomic"
)

// Gate silences capture buffers whose peak stays below a threshold. It is
// read from the audio callback and configured from the UI, so its state is
// atomic.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Int32 // absolute amplitude, 0..MaxInt32
}

// NewGate returns an enabled gate with the given threshold (0-1).
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.Enable()
	return g
}

func (g *Gate) Enable()       { g.enabled.Store(true) }
func (g *Gate) Disable()      { g.enabled.Store(false) }
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the threshold. The value is clamped to 0.0-1.0 where
// 0 is always open and 1 is always closed.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = math.Max(0, math.Min(1, threshold))
	g.threshold.Store(int32(threshold * float64(math.MaxInt32)))
}

// Threshold returns the threshold as a ratio in 0.0-1.0.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / float64(math.MaxInt32)
}

// Open reports whether buffer should pass. A disabled gate is always open.
func (g *Gate) Open(buffer []int32) bool {
	if !g.enabled.Load() {
		return true
	}
	return peak(buffer) > g.threshold.Load()
}

// peak returns the largest absolute sample without branching per sample.
// MinInt32 saturates to MaxInt32.
func peak(buffer []int32) int32 {
	var maxAmplitude int32
	for _, sample := range buffer {
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		if amplitude < 0 {
			amplitude = math.MaxInt32
		}
		diff := amplitude - maxAmplitude
		maxAmplitude += diff & ^(diff >> 31)
	}
	return maxAmplitude
}
