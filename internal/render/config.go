// SPDX-License-Identifier: MIT
package render

import (
	"fmt"
	"strings"
	"sync"

	"butterfly/internal/errs"
)

// ColorMode picks the node colouring strategy.
type ColorMode int

const (
	BrightnessMap ColorMode = iota
	PhaseHue
	FreqGradient
)

var colorModeNames = [...]string{
	BrightnessMap: "brightness",
	PhaseHue:      "phase-hue",
	FreqGradient:  "freq-gradient",
}

func (m ColorMode) String() string {
	if m >= 0 && int(m) < len(colorModeNames) {
		return colorModeNames[m]
	}
	return fmt.Sprintf("ColorMode(%d)", int(m))
}

// ParseColorMode accepts the names printed by String.
func ParseColorMode(name string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "brightness", "brightnessmap":
		return BrightnessMap, nil
	case "phase-hue", "phasehue":
		return PhaseHue, nil
	case "freq-gradient", "freqgradient":
		return FreqGradient, nil
	default:
		return BrightnessMap, fmt.Errorf("unknown color mode: '%s'", name)
	}
}

// AllStages selects every stage for display.
const AllStages = -1

// Config is the visual configuration. It is a plain value: copy it to keep
// a snapshot.
type Config struct {
	Name string `yaml:"name"`

	MinSize   float64 `yaml:"min_size"`
	MaxSize   float64 `yaml:"max_size"`
	SizeScale float64 `yaml:"size_scale"`

	ColorMode ColorMode `yaml:"-"`

	// BrightnessMap
	BrightnessR      float64 `yaml:"brightness_r"`
	BrightnessB      float64 `yaml:"brightness_b"`
	BrightnessGScale float64 `yaml:"brightness_g_scale"`

	// PhaseHue
	HueOffset          float64 `yaml:"hue_offset"`      // degrees
	HueRangeRatio      float64 `yaml:"hue_range_ratio"` // -1..1
	HueSaturation      float64 `yaml:"hue_saturation"`  // 0..100
	HueBrightnessScale float64 `yaml:"hue_brightness_scale"`

	// FreqGradient
	FreqHueStart float64 `yaml:"freq_hue_start"`
	FreqHueEnd   float64 `yaml:"freq_hue_end"`

	SelectedStage int `yaml:"selected_stage"` // AllStages or a stage index
	Rotation      int `yaml:"rotation"`       // 0 or 90
}

// Presets are the built-in looks. The first is the default.
var Presets = []Config{
	{
		Name:    "Default (Blue-ish)",
		MinSize: 2, MaxSize: 20, SizeScale: 5,
		ColorMode:   BrightnessMap,
		BrightnessR: 100, BrightnessB: 255, BrightnessGScale: 50,
		HueRangeRatio: 1, HueSaturation: 80, HueBrightnessScale: 100,
		FreqHueStart: 240, FreqHueEnd: 0,
		SelectedStage: AllStages,
	},
	{
		Name:    "Phase -> Hue",
		MinSize: 2, MaxSize: 20, SizeScale: 5,
		ColorMode:   PhaseHue,
		BrightnessR: 100, BrightnessB: 255, BrightnessGScale: 50,
		HueRangeRatio: 1, HueSaturation: 80, HueBrightnessScale: 80,
		FreqHueStart: 240, FreqHueEnd: 0,
		SelectedStage: AllStages,
	},
	{
		Name:    "Freq -> Cool/Warm, Phase -> Bri",
		MinSize: 2, MaxSize: 20, SizeScale: 5,
		ColorMode:     FreqGradient,
		HueRangeRatio: 1, HueSaturation: 90,
		FreqHueStart: 240, FreqHueEnd: 360,
		SelectedStage: AllStages,
	},
}

// DefaultConfig returns the first preset.
func DefaultConfig() Config { return Presets[0] }

// PresetByName finds a preset by case-insensitive name or by its leading
// word ("phase", "freq", "default").
func PresetByName(name string) (Config, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, p := range Presets {
		full := strings.ToLower(p.Name)
		first, _, _ := strings.Cut(full, " ")
		if want == full || want == first {
			return p, true
		}
	}
	return Config{}, false
}

// NodeSize maps a smoothed level to a disc diameter.
func (c Config) NodeSize(level float64) float64 {
	return min(c.MaxSize, c.MinSize+level*c.SizeScale)
}

// Validate rejects configurations the canvas cannot draw.
func (c Config) Validate() error {
	if c.MinSize < 0 || c.MaxSize < c.MinSize {
		return errs.Configurationf("visual sizes must satisfy 0 <= min_size <= max_size, got %v/%v", c.MinSize, c.MaxSize)
	}
	if c.Rotation != 0 && c.Rotation != 90 {
		return errs.Configurationf("visual rotation must be 0 or 90, got %d", c.Rotation)
	}
	if c.SelectedStage < AllStages {
		return errs.Configurationf("visual selected_stage must be -1 or a stage index, got %d", c.SelectedStage)
	}
	if _, ok := colorFuncs[c.ColorMode]; !ok {
		return errs.Configurationf("visual color mode %v has no strategy", c.ColorMode)
	}
	return nil
}

// Settings holds the live visual configuration. The UI edits it while the
// renderer reads it, so access is synchronized.
type Settings struct {
	mu  sync.RWMutex
	cfg Config
}

// NewSettings starts from cfg.
func NewSettings(cfg Config) *Settings {
	return &Settings{cfg: cfg}
}

// Snapshot returns a copy of the current configuration.
func (s *Settings) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Restore replaces the configuration with a previously taken snapshot.
func (s *Settings) Restore(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Update applies fn to a copy and stores the result.
func (s *Settings) Update(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cfg
	fn(&c)
	s.cfg = c
}
