// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the analysis window applied before the FFT.
type WindowFunc int

// None leaves samples untouched and is the default: the butterfly display is
// meant to show the raw transform.
const (
	None WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	None:            "none",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// Unknown names return None and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "rectangular":
		return None, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return None, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// Window holds precomputed coefficients for one size.
type Window struct {
	kind   WindowFunc
	coeffs []float64
}

// NewWindow precomputes the coefficients of kind for size samples.
func NewWindow(kind WindowFunc, size int) *Window {
	w := &Window{kind: kind}
	if kind == None || size <= 0 {
		return w
	}

	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch kind {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	}
	w.coeffs = coeffs
	return w
}

// Kind reports which window the coefficients belong to.
func (w *Window) Kind() WindowFunc { return w.kind }

// Size is the number of coefficients, 0 for None.
func (w *Window) Size() int { return len(w.coeffs) }

// Apply multiplies samples by the window in place. A None window, or one
// built for a different length, leaves samples untouched.
func (w *Window) Apply(samples []float64) {
	if w == nil || len(w.coeffs) != len(samples) {
		return
	}
	for i, c := range w.coeffs {
		samples[i] *= c
	}
}
