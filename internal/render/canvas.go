// SPDX-License-Identifier: MIT
package render

import (
	"fmt"
	"image"
	"image/color"

	"butterfly/internal/errs"
)

const canvasMargin = 50

var (
	backgroundColor = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	connectionColor = color.RGBA{R: 100, G: 150, B: 255, A: 100}
)

// Canvas draws the butterfly diagram: one column per stage, one row per
// node, the butterfly connections between consecutive stages and a disc per
// node sized and coloured by its smoothed level.
type Canvas struct {
	settings *Settings
	img      *image.RGBA
}

var _ Surface = (*Canvas)(nil)

// NewCanvas allocates a width x height surface.
func NewCanvas(width, height int, settings *Settings) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.Configurationf("canvas size must be positive, got %dx%d", width, height)
	}
	if settings == nil {
		settings = NewSettings(DefaultConfig())
	}
	return &Canvas{
		settings: settings,
		img:      image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// Pixels returns the backing image. It is overwritten by every Render.
func (c *Canvas) Pixels() *image.RGBA { return c.img }

// Settings returns the live visual configuration.
func (c *Canvas) Settings() *Settings { return c.settings }

type layout struct {
	originX, originY float64
	stageStride      float64
	nodeStride       float64
	rotated          bool
}

func (l layout) point(stage, node int) (float64, float64) {
	a := l.originX + float64(stage)*l.stageStride
	b := l.originY + float64(node)*l.nodeStride
	if l.rotated {
		return b, a
	}
	return a, b
}

func newLayout(w, h, stages, nodes int, rotated bool) layout {
	along, across := float64(w), float64(h)
	if rotated {
		along, across = across, along
	}
	l := layout{originX: canvasMargin, originY: canvasMargin, rotated: rotated}
	if stages > 1 {
		l.stageStride = (along - 2*canvasMargin) / float64(stages-1)
	}
	if nodes > 1 {
		l.nodeStride = (across - 2*canvasMargin) / float64(nodes-1)
	}
	return l
}

// Render draws frame into the backing image.
func (c *Canvas) Render(frame *Frame) error {
	if frame == nil || frame.Snapshot == nil {
		return fmt.Errorf("render: frame has no snapshot")
	}
	cfg := c.settings.Snapshot()
	snap := frame.Snapshot
	stages, nodes := len(snap.Stages), snap.Size()

	b := c.img.Bounds()
	lay := newLayout(b.Dx(), b.Dy(), stages, nodes, cfg.Rotation == 90)
	selected := cfg.SelectedStage
	if selected >= stages {
		selected = AllStages
	}
	visible := func(s int) bool { return selected == AllStages || s == selected }

	fill(c.img, backgroundColor)

	for s := 0; s < stages-1; s++ {
		if !visible(s) && !visible(s+1) {
			continue
		}
		size := 1 << (s + 1)
		half := size >> 1
		for g := 0; g < nodes; g += size {
			for j := range half {
				k, m := g+j, g+j+half
				ka, kb := lay.point(s, k)
				ma, mb := lay.point(s, m)
				ka2, kb2 := lay.point(s+1, k)
				ma2, mb2 := lay.point(s+1, m)
				line(c.img, ka, kb, ka2, kb2, connectionColor)
				line(c.img, ma, mb, ma2, mb2, connectionColor)
				line(c.img, ka, kb, ma2, mb2, connectionColor)
				line(c.img, ma, mb, ka2, kb2, connectionColor)
			}
		}
	}

	for s := range stages {
		if !visible(s) {
			continue
		}
		var levels []float64
		if s < len(frame.Levels) {
			levels = frame.Levels[s]
		}
		for i := range nodes {
			level := 0.0
			if i < len(levels) {
				level = levels[i]
			}
			x, y := lay.point(s, i)
			col := NodeColor(ColorContext{
				Value: snap.Stages[s][i],
				Level: level,
				Index: i,
				Total: nodes,
				Stage: s,
			}, &cfg)
			disc(c.img, x, y, cfg.NodeSize(level), col)
		}
	}
	return nil
}
