// SPDX-License-Identifier: MIT

// Package envelope smooths per-node FFT magnitudes with asymmetric
// attack/release dynamics. The smoothed matrix is the visual memory of the
// butterfly display: it persists across frames for the whole session.
package envelope

import (
	"math"

	"butterfly/internal/fft"
	applog "butterfly/internal/log"
)

const (
	maxAttack  = 0.99
	maxRelease = 0.999
	minShape   = 0.1
	// snapEpsilon ends the release once the remaining gap is this small, so
	// a shrinking decay cannot creep toward the target forever.
	snapEpsilon = 1e-6
)

// Step applies one update of the envelope rule to the current value c for
// target m and returns the new value.
//
// Attack (m > c) moves a fraction 1-min(0.99, attack) of the gap, so attack 0
// snaps to the target in one update.
//
// Release (m <= c) subtracts releaseBase * diff^(shape-1), clamped so it never
// passes the target. Shape 1 is a constant decrement (linear fall), shape 2 is
// proportional to the gap (exponential fall). Release time 0 drops to the
// target in one update whatever the gap, like attack 0. Shape < 1 makes the step grow
// as the gap shrinks; a tiny gap raised to a negative power can overflow, in
// which case the step is dropped to 0 for that frame. Values then hang just
// above the target until the gap exceeds the snap threshold again or falls
// under it. This "sticky" release is intentional and fragile.
func Step(cfg Config, c, m float64) float64 {
	var next float64
	if m > c {
		factor := 1 - math.Min(maxAttack, cfg.AttackTime)
		next = c + (m-c)*factor
	} else {
		diff := c - m
		if diff <= snapEpsilon {
			next = m
		} else {
			shape := math.Max(minShape, cfg.CurveShape)
			releaseBase := 1 - math.Min(maxRelease, cfg.ReleaseTime)

			factor := math.Pow(diff, shape-1)
			if math.IsNaN(factor) || math.IsInf(factor, 0) {
				factor = 0
			}

			decay := releaseBase * factor
			if releaseBase >= 1 || decay > diff {
				decay = diff
			}
			next = c - decay
		}
	}

	if math.IsNaN(next) || math.IsInf(next, 0) || next < 0 {
		return 0
	}
	return next
}

// Follower owns the stage x node state matrix. It is not safe for concurrent
// use.
type Follower struct {
	config        Config
	normalization Normalization
	levels        [][]float64
	scratch       []float64
}

// NewFollower returns a follower with no state; the matrix is allocated on
// the first Update.
func NewFollower(config Config, normalization Normalization) *Follower {
	return &Follower{
		config:        config,
		normalization: normalization,
	}
}

// SetConfig swaps the envelope character. The state matrix is kept.
func (f *Follower) SetConfig(config Config) {
	f.config = config
}

// Config returns the active envelope character.
func (f *Follower) Config() Config {
	return f.config
}

// SetNormalization swaps the magnitude mapping. The state matrix is kept.
func (f *Follower) SetNormalization(n Normalization) {
	f.normalization = n
}

// Normalization returns the active magnitude mapping.
func (f *Follower) Normalization() Normalization {
	return f.normalization
}

// Update advances every node toward the snapshot's (normalized) magnitudes
// and returns the state matrix. The returned slices are owned by the
// follower and are overwritten by the next Update.
func (f *Follower) Update(snap *fft.Snapshot) [][]float64 {
	stages, nodes := len(snap.Stages), snap.Size()
	f.ensureShape(stages, nodes)

	for s := range stages {
		snap.MagnitudesInto(f.scratch, s)
		row := f.levels[s]
		for i := range nodes {
			target := f.normalization.Apply(f.scratch[i])
			row[i] = Step(f.config, row[i], target)
		}
	}
	return f.levels
}

// Levels returns the current state matrix without advancing it.
func (f *Follower) Levels() [][]float64 {
	return f.levels
}

// Shape returns the stage and node counts of the state matrix.
func (f *Follower) Shape() (stages, nodes int) {
	if len(f.levels) == 0 {
		return 0, 0
	}
	return len(f.levels), len(f.levels[0])
}

// Reset drops the state matrix; the next Update starts from zero.
func (f *Follower) Reset() {
	f.levels = nil
	f.scratch = nil
}

// ensureShape reallocates a zero-filled matrix when the FFT shape changes.
func (f *Follower) ensureShape(stages, nodes int) {
	if s, n := f.Shape(); s == stages && n == nodes && f.levels != nil {
		return
	}
	if f.levels != nil {
		applog.Debugf("Envelope: Reshaping state %dx%d", stages, nodes)
	}
	f.levels = make([][]float64, stages)
	for s := range f.levels {
		f.levels[s] = make([]float64, nodes)
	}
	f.scratch = make([]float64, nodes)
}
