// SPDX-License-Identifier: MIT
package render

import (
	"image/color"
	"math"
	"math/cmplx"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorContext is what a colour strategy knows about one node.
type ColorContext struct {
	Value complex128
	Level float64 // smoothed envelope level
	Index int
	Total int
	Stage int
}

type colorFunc func(ctx ColorContext, cfg *Config) color.RGBA

var colorFuncs = map[ColorMode]colorFunc{
	BrightnessMap: brightnessMapColor,
	PhaseHue:      phaseHueColor,
	FreqGradient:  freqGradientColor,
}

// NodeColor colours one node with the configured strategy. Unknown modes
// fall back to PhaseHue.
func NodeColor(ctx ColorContext, cfg *Config) color.RGBA {
	fn, ok := colorFuncs[cfg.ColorMode]
	if !ok {
		fn = phaseHueColor
	}
	return fn(ctx, cfg)
}

func brightnessMapColor(ctx ColorContext, cfg *Config) color.RGBA {
	g := min(255, ctx.Level*cfg.BrightnessGScale)
	return color.RGBA{R: clamp8(cfg.BrightnessR), G: clamp8(g), B: clamp8(cfg.BrightnessB), A: 255}
}

func phaseHueColor(ctx ColorContext, cfg *Config) color.RGBA {
	hue := degrees(cmplx.Phase(ctx.Value))*cfg.HueRangeRatio + cfg.HueOffset
	bri := min(100, ctx.Level*cfg.HueBrightnessScale)
	return hsv(hue, cfg.HueSaturation, bri)
}

func freqGradientColor(ctx ColorContext, cfg *Config) color.RGBA {
	t := 0.0
	if ctx.Total > 1 {
		t = float64(ctx.Index) / float64(ctx.Total-1)
	}
	hue := cfg.FreqHueStart + (cfg.FreqHueEnd-cfg.FreqHueStart)*t
	normPhase := (cmplx.Phase(ctx.Value) + math.Pi) / (2 * math.Pi)
	return hsv(hue, cfg.HueSaturation, normPhase*100)
}

// hsv converts hue in degrees, saturation and brightness in 0..100.
func hsv(hue, sat, bri float64) color.RGBA {
	hue = math.Mod(hue, 360)
	if hue < 0 {
		hue += 360
	}
	c := colorful.Hsv(hue, clampUnit(sat/100), clampUnit(bri/100))
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func clamp8(v float64) uint8 {
	return uint8(math.Round(clampUnit(v/255) * 255))
}
