// SPDX-License-Identifier: MIT
package envelope

import (
	"fmt"
	"math"
	"strings"
)

// NormalizationMode selects how raw magnitudes are mapped before smoothing.
type NormalizationMode int

const (
	NormalizeNone NormalizationMode = iota
	NormalizeLog
)

// DefaultLogBase is used when a log normalization has no usable base.
const DefaultLogBase = 10.0

// String returns the configuration name of the mode.
func (m NormalizationMode) String() string {
	switch m {
	case NormalizeNone:
		return "none"
	case NormalizeLog:
		return "log"
	default:
		return "unknown"
	}
}

// ParseNormalizationMode converts a configuration name (case-insensitive) to
// a mode. Unknown names return NormalizeNone and an error.
func ParseNormalizationMode(name string) (NormalizationMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "linear":
		return NormalizeNone, nil
	case "log", "logarithmic":
		return NormalizeLog, nil
	default:
		return NormalizeNone, fmt.Errorf("unknown normalization mode: '%s'", name)
	}
}

// Normalization maps a magnitude to the follower's target value.
type Normalization struct {
	Mode    NormalizationMode
	LogBase float64
}

// Apply returns the target value for magnitude. Log mode computes
// log(1+m)/log(base). Magnitudes at or below zero map to 0 instead of
// producing a domain error, and any non-finite result maps to 0.
func (n Normalization) Apply(magnitude float64) float64 {
	if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return 0
	}
	switch n.Mode {
	case NormalizeLog:
		if magnitude <= 0 {
			return 0
		}
		base := n.LogBase
		if !(base > 0) || base == 1 || math.IsInf(base, 0) {
			base = DefaultLogBase
		}
		v := math.Log1p(magnitude) / math.Log(base)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	default:
		return magnitude
	}
}
