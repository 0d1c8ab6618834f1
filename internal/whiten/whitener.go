// SPDX-License-Identifier: MIT

// Package whiten implements the spectral whitener: a first-order
// pre-emphasis filter y[n] = x[n] - c*x[n-1] that tilts the spectrum toward
// the highs so the visualizer is not dominated by low-frequency energy.
package whiten

import "math"

// maxCoefficient is the coefficient reached at amount 1.0 (about +6dB/oct).
const maxCoefficient = 0.95

// Whitener carries one sample of filter memory across calls so consecutive
// buffers of a continuous stream filter seamlessly. It is not safe for
// concurrent use; the session owns it and only touches it from one flow of
// control.
type Whitener struct {
	amount      float64
	coefficient float64
	lastSample  float64
}

// New returns a whitener with amount 0, which passes audio through unchanged.
func New() *Whitener {
	return &Whitener{}
}

// SetAmount adjusts the tilt correction. The value is clamped to 0.0-1.0
// where 0 is flat and 1 applies the full pre-emphasis.
func (w *Whitener) SetAmount(amount float64) {
	if amount < 0.0 || math.IsNaN(amount) {
		amount = 0.0
	}
	if amount > 1.0 {
		amount = 1.0
	}
	w.amount = amount
	w.coefficient = maxCoefficient * amount
}

// Amount returns the clamped amount last set.
func (w *Whitener) Amount() float64 {
	return w.amount
}

// Coefficient returns the filter coefficient, 0.95 * amount.
func (w *Whitener) Coefficient() float64 {
	return w.coefficient
}

// Whiten filters input into a new buffer of the same length. The input is
// never modified. The filter memory tracks the raw input samples, not the
// filtered output, and after the call holds the last input sample.
func (w *Whitener) Whiten(input []float64) []float64 {
	output := make([]float64, len(input))
	if len(input) == 0 {
		return output
	}

	prev := w.lastSample
	for i, x := range input {
		output[i] = x - w.coefficient*prev
		prev = x
	}
	w.lastSample = prev

	return output
}

// Reset clears the filter memory. Call it whenever the sample stream becomes
// discontinuous (source switched, seek, restart), otherwise the first output
// sample carries a transient from the stale history.
func (w *Whitener) Reset() {
	w.lastSample = 0
}
