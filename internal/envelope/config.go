// SPDX-License-Identifier: MIT
package envelope

import (
	"strings"

	"butterfly/internal/errs"
)

// Config shapes the follower's response. It is a plain value; swapping it
// between frames is safe because the follower reads it fresh on every update.
type Config struct {
	Name        string  `yaml:"name,omitempty" json:"name,omitempty"`
	AttackTime  float64 `yaml:"attack_time" json:"attackTime"`   // 0-1, smaller attacks faster
	ReleaseTime float64 `yaml:"release_time" json:"releaseTime"` // 0-1, larger releases slower
	CurveShape  float64 `yaml:"curve_shape" json:"curveShape"`   // 1 linear, >1 exponential, <1 sticky
}

// Presets are the built-in envelope characters, in menu order.
var Presets = []Config{
	{Name: "Digital (Linear)", AttackTime: 0.1, ReleaseTime: 0.9, CurveShape: 1.0},
	{Name: "Neon (Exponential)", AttackTime: 0.1, ReleaseTime: 0.95, CurveShape: 2.0},
	{Name: "Viscous (Sticky)", AttackTime: 0.4, ReleaseTime: 0.92, CurveShape: 0.5},
	{Name: "Instant (Raw)", AttackTime: 0.0, ReleaseTime: 0.0, CurveShape: 1.0},
}

// DefaultPreset is the preset a new session starts with.
const DefaultPreset = "Neon (Exponential)"

// Default returns the default preset.
func Default() Config {
	cfg, _ := PresetByName(DefaultPreset)
	return cfg
}

// PresetByName finds a preset by case-insensitive name. The short form before
// the parenthesis also matches, so "neon" finds "Neon (Exponential)".
func PresetByName(name string) (Config, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, p := range Presets {
		full := strings.ToLower(p.Name)
		short, _, _ := strings.Cut(full, " (")
		if want == full || want == short {
			return p, true
		}
	}
	return Config{}, false
}

// NextPreset returns the preset after the one named, wrapping around. An
// unknown name yields the first preset.
func NextPreset(name string) Config {
	for i, p := range Presets {
		if strings.EqualFold(p.Name, name) {
			return Presets[(i+1)%len(Presets)]
		}
	}
	return Presets[0]
}

// Validate checks the documented parameter ranges. The follower itself clamps
// whatever it is given; Validate exists so configuration files fail loudly.
func (c Config) Validate() error {
	if c.AttackTime < 0 || c.AttackTime > 1 {
		return errs.Configurationf("envelope attack_time must be within [0,1], got %v", c.AttackTime)
	}
	if c.ReleaseTime < 0 || c.ReleaseTime > 1 {
		return errs.Configurationf("envelope release_time must be within [0,1], got %v", c.ReleaseTime)
	}
	if !(c.CurveShape > 0) {
		return errs.Configurationf("envelope curve_shape must be positive, got %v", c.CurveShape)
	}
	return nil
}
