package encode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"os/exec"
	"slices"
	"testing"

	"butterfly/internal/errs"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"webm", FormatWebM, true},
		{".MP4", FormatMP4, true},
		{"gif", FormatGIF, true},
		{"avi", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestGIFRoundTrip(t *testing.T) {
	sink := NewGIF(25)
	for _, c := range []color.RGBA{{255, 0, 0, 255}, {0, 0, 255, 255}, {0, 0, 0, 255}} {
		if err := sink.AddFrame(solid(16, 8, c)); err != nil {
			t.Fatal(err)
		}
	}
	if sink.Frames() != 3 {
		t.Fatalf("Frames = %d", sink.Frames())
	}
	data, err := sink.Complete(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(anim.Image) != 3 || anim.Delay[0] != 4 {
		t.Errorf("decoded %d frames, delay %d", len(anim.Image), anim.Delay[0])
	}
	if b := anim.Image[0].Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("frame bounds %v", b)
	}
	if _, err := sink.Complete(context.Background()); err == nil {
		t.Error("second Complete should fail")
	}
}

func TestGIFAbort(t *testing.T) {
	sink := NewGIF(60)
	sink.AddFrame(solid(4, 4, color.RGBA{A: 255}))
	if err := sink.Abort(); err != nil {
		t.Fatal(err)
	}
	if sink.Frames() != 0 {
		t.Error("Abort kept frames")
	}
	if err := sink.AddFrame(solid(4, 4, color.RGBA{A: 255})); err == nil {
		t.Error("AddFrame after Abort should fail")
	}
	if _, err := NewGIF(60).Complete(context.Background()); err == nil {
		t.Error("Complete without frames should fail")
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	_, err := NewFFmpeg(Options{FFmpeg: "/nonexistent/ffmpeg", FrameRate: 30})
	if !errors.Is(err, errs.ErrResource) {
		t.Errorf("NewFFmpeg = %v, want resource error", err)
	}
}

func TestFFmpegArgs(t *testing.T) {
	f := &FFmpeg{binary: "ffmpeg", opts: Options{Format: FormatWebM, FrameRate: 60, Quality: 0.95}}
	args := f.args(640, 360)
	for _, want := range []string{"640x360", "60", "libvpx-vp9", "webm", "pipe:1"} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
	if crf(0.95, FormatWebM) != 3 || crf(0, FormatMP4) != 51 || crf(2, FormatWebM) != 0 {
		t.Errorf("crf mapping wrong: %d %d %d", crf(0.95, FormatWebM), crf(0, FormatMP4), crf(2, FormatWebM))
	}
}

func TestFFmpegEncode(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	sink, err := NewFFmpeg(Options{Format: FormatWebM, FrameRate: 10, Quality: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		if err := sink.AddFrame(solid(32, 32, color.RGBA{R: 200, A: 255})); err != nil {
			t.Fatal(err)
		}
	}
	if err := sink.AddFrame(solid(16, 16, color.RGBA{A: 255})); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("size change accepted: %v", err)
	}
	data, err := sink.Complete(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// WebM files start with the EBML magic.
	if !bytes.HasPrefix(data, []byte{0x1a, 0x45, 0xdf, 0xa3}) {
		t.Errorf("output is not WebM: % x", data[:min(4, len(data))])
	}
}

func TestFFmpegAbort(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	sink, err := NewFFmpeg(Options{FrameRate: 10})
	if err != nil {
		t.Fatal(err)
	}
	sink.AddFrame(solid(8, 8, color.RGBA{A: 255}))
	if err := sink.Abort(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Abort(); err != nil {
		t.Errorf("second Abort = %v", err)
	}
}
