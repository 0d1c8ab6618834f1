// SPDX-License-Identifier: MIT

// Package encode turns a sequence of rendered frames into a video artifact.
package encode

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Sink accepts frames in order and produces the finished artifact.
type Sink interface {
	// AddFrame appends one frame. The sink must not retain img after
	// returning; callers reuse it.
	AddFrame(img *image.RGBA) error
	// Complete finalizes the artifact. It is called at most once.
	Complete(ctx context.Context) ([]byte, error)
	// Abort discards everything written so far and releases resources.
	// It is safe to call after Complete or more than once.
	Abort() error
}

// Format names an artifact container.
type Format string

const (
	FormatWebM Format = "webm"
	FormatMP4  Format = "mp4"
	FormatGIF  Format = "gif"
)

// ParseFormat accepts a format name or a file extension (".webm").
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")); f {
	case FormatWebM, FormatMP4, FormatGIF:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format: '%s'", name)
	}
}

// Options are shared by every sink.
type Options struct {
	Format    Format
	FrameRate float64
	Quality   float64 // 0-1, higher is better
	FFmpeg    string  // binary path, empty to search PATH
}

// New builds the sink for opts.Format.
func New(opts Options) (Sink, error) {
	switch opts.Format {
	case FormatGIF:
		return NewGIF(opts.FrameRate), nil
	case FormatWebM, FormatMP4, "":
		return NewFFmpeg(opts)
	default:
		return nil, fmt.Errorf("unknown export format: '%s'", opts.Format)
	}
}
