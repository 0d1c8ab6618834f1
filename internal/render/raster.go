// SPDX-License-Identifier: MIT
package render

import (
	"image"
	"image/color"
	"math"
)

// blend composites c over the pixel at (x, y) using c.A as coverage.
func blend(img *image.RGBA, x, y int, c color.RGBA) {
	if !(image.Point{x, y}.In(img.Rect)) {
		return
	}
	i := img.PixOffset(x, y)
	px := img.Pix[i : i+4 : i+4]
	if c.A == 255 {
		px[0], px[1], px[2], px[3] = c.R, c.G, c.B, 255
		return
	}
	a := uint32(c.A)
	inv := 255 - a
	px[0] = uint8((uint32(c.R)*a + uint32(px[0])*inv) / 255)
	px[1] = uint8((uint32(c.G)*a + uint32(px[1])*inv) / 255)
	px[2] = uint8((uint32(c.B)*a + uint32(px[2])*inv) / 255)
	px[3] = 255
}

// fill paints the whole image with c.
func fill(img *image.RGBA, c color.RGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// line draws a one pixel line with Bresenham's algorithm.
func line(img *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA) {
	ax, ay := int(math.Round(x0)), int(math.Round(y0))
	bx, by := int(math.Round(x1)), int(math.Round(y1))
	dx := abs(bx - ax)
	dy := -abs(by - ay)
	sx, sy := 1, 1
	if ax > bx {
		sx = -1
	}
	if ay > by {
		sy = -1
	}
	err := dx + dy
	for {
		blend(img, ax, ay, c)
		if ax == bx && ay == by {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			ax += sx
		}
		if e2 <= dx {
			err += dx
			ay += sy
		}
	}
}

// disc fills a circle of the given diameter centred on (cx, cy).
func disc(img *image.RGBA, cx, cy, diameter float64, c color.RGBA) {
	r := diameter / 2
	if r <= 0 {
		return
	}
	r2 := r * r
	minY, maxY := int(math.Floor(cy-r)), int(math.Ceil(cy+r))
	minX, maxX := int(math.Floor(cx-r)), int(math.Ceil(cx+r))
	for y := minY; y <= maxY; y++ {
		dy := float64(y) + 0.5 - cy
		for x := minX; x <= maxX; x++ {
			dx := float64(x) + 0.5 - cx
			if dx*dx+dy*dy <= r2 {
				blend(img, x, y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
