// SPDX-License-Identifier: MIT
package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"
)

// GIF collects frames as paletted images and encodes an animated GIF on
// Complete. It needs no external tools, which makes it the fallback when
// ffmpeg is unavailable.
type GIF struct {
	delay int // hundredths of a second
	anim  gif.GIF
	done  bool
}

// NewGIF returns a GIF sink. GIF delays have centisecond resolution, so the
// frame rate is approximated.
func NewGIF(frameRate float64) *GIF {
	delay := 2
	if frameRate > 0 {
		delay = max(1, int(math.Round(100/frameRate)))
	}
	return &GIF{delay: delay}
}

func (g *GIF) AddFrame(img *image.RGBA) error {
	if g.done {
		return fmt.Errorf("gif sink already finished")
	}
	b := img.Bounds()
	p := image.NewPaletted(b, palette.Plan9)
	draw.FloydSteinberg.Draw(p, b, img, b.Min)
	g.anim.Image = append(g.anim.Image, p)
	g.anim.Delay = append(g.anim.Delay, g.delay)
	return nil
}

func (g *GIF) Complete(ctx context.Context) ([]byte, error) {
	if g.done {
		return nil, fmt.Errorf("gif sink already finished")
	}
	g.done = true
	if len(g.anim.Image) == 0 {
		return nil, fmt.Errorf("no frames were added")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, &g.anim); err != nil {
		return nil, fmt.Errorf("encoding gif: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *GIF) Abort() error {
	g.done = true
	g.anim = gif.GIF{}
	return nil
}

// Frames returns the number of frames collected.
func (g *GIF) Frames() int { return len(g.anim.Image) }
