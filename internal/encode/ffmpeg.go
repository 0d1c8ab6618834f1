// SPDX-License-Identifier: MIT
package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"butterfly/internal/errs"
	"butterfly/internal/log"
)

// FFmpeg pipes raw RGBA frames into an ffmpeg subprocess and collects the
// encoded stream from its stdout. The process starts with the first frame,
// once the frame size is known.
type FFmpeg struct {
	binary string
	opts   Options

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    bytes.Buffer
	stderr bytes.Buffer
	width  int
	height int
	frames int
	done   bool
}

// NewFFmpeg locates the ffmpeg binary. A missing binary is a resource error.
func NewFFmpeg(opts Options) (*FFmpeg, error) {
	name := opts.FFmpeg
	if name == "" {
		name = "ffmpeg"
	}
	binary, err := exec.LookPath(name)
	if err != nil {
		return nil, errs.Resourcef(err, "ffmpeg not found (required for video export)")
	}
	if opts.Format == "" {
		opts.Format = FormatWebM
	}
	if opts.FrameRate <= 0 {
		return nil, errs.Configurationf("export frame rate must be positive, got %v", opts.FrameRate)
	}
	return &FFmpeg{binary: binary, opts: opts}, nil
}

// crf maps quality 0-1 onto the encoder's constant rate factor scale, where
// lower is better.
func crf(quality float64, format Format) int {
	q := math.Max(0, math.Min(1, quality))
	maxCRF := 63.0 // vp9
	if format == FormatMP4 {
		maxCRF = 51.0 // x264
	}
	return int(math.Round(maxCRF * (1 - q)))
}

func (f *FFmpeg) args(width, height int) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(f.opts.FrameRate, 'f', -1, 64),
		"-i", "pipe:0",
	}
	quality := strconv.Itoa(crf(f.opts.Quality, f.opts.Format))
	switch f.opts.Format {
	case FormatMP4:
		args = append(args,
			"-c:v", "libx264", "-pix_fmt", "yuv420p", "-crf", quality,
			"-movflags", "frag_keyframe+empty_moov",
			"-f", "mp4")
	default:
		args = append(args,
			"-c:v", "libvpx-vp9", "-crf", quality, "-b:v", "0",
			"-f", "webm")
	}
	return append(args, "pipe:1")
}

func (f *FFmpeg) start(width, height int) error {
	cmd := exec.Command(f.binary, f.args(width, height)...)
	cmd.Stdout = &f.out
	cmd.Stderr = &f.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errs.Resourcef(err, "ffmpeg stdin")
	}
	if err := cmd.Start(); err != nil {
		return errs.Resourcef(err, "start ffmpeg")
	}
	f.cmd, f.stdin = cmd, stdin
	f.width, f.height = width, height
	log.Debugf("Encode: Started %s %s", f.binary, strings.Join(cmd.Args[1:], " "))
	return nil
}

// AddFrame writes the frame's pixels to ffmpeg. Every frame must have the
// size of the first.
func (f *FFmpeg) AddFrame(img *image.RGBA) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return fmt.Errorf("ffmpeg sink already finished")
	}

	b := img.Bounds()
	if f.cmd == nil {
		if err := f.start(b.Dx(), b.Dy()); err != nil {
			return err
		}
	} else if b.Dx() != f.width || b.Dy() != f.height {
		return errs.Configurationf("frame size changed from %dx%d to %dx%d", f.width, f.height, b.Dx(), b.Dy())
	}

	rowBytes := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := f.stdin.Write(img.Pix[off : off+rowBytes]); err != nil {
			return fmt.Errorf("writing frame %d to ffmpeg: %w (%s)", f.frames, err, strings.TrimSpace(f.stderr.String()))
		}
	}
	f.frames++
	return nil
}

// Complete closes ffmpeg's input, waits for it and returns the container
// bytes.
func (f *FFmpeg) Complete(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return nil, fmt.Errorf("ffmpeg sink already finished")
	}
	f.done = true
	if f.cmd == nil {
		return nil, fmt.Errorf("no frames were added")
	}

	f.stdin.Close()
	waitErr := make(chan error, 1)
	go func() { waitErr <- f.cmd.Wait() }()
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w (%s)", err, strings.TrimSpace(f.stderr.String()))
		}
	case <-ctx.Done():
		f.cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	}
	log.Infof("Encode: Encoded %d frames (%d bytes, %s)", f.frames, f.out.Len(), f.opts.Format)
	return f.out.Bytes(), nil
}

// Abort kills ffmpeg and drops its output.
func (f *FFmpeg) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return nil
	}
	f.done = true
	if f.cmd == nil {
		return nil
	}
	f.stdin.Close()
	f.cmd.Process.Kill()
	f.cmd.Wait()
	f.out.Reset()
	log.Debugf("Encode: Aborted after %d frames", f.frames)
	return nil
}

// Frames returns the number of frames written so far.
func (f *FFmpeg) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}
