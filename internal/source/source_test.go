package source

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"butterfly/internal/errs"
)

func TestExportableDuration(t *testing.T) {
	tests := []struct {
		name string
		meta Meta
		want bool
	}{
		{"live", Meta{SampleRate: 44100}, false},
		{"finite", Meta{Duration: 2, HasDuration: true}, true},
		{"zero", Meta{Duration: 0, HasDuration: true}, false},
		{"negative", Meta{Duration: -1, HasDuration: true}, false},
		{"infinite", Meta{Duration: math.Inf(1), HasDuration: true}, false},
		{"nan", Meta{Duration: math.NaN(), HasDuration: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ExportableDuration(tt.meta); ok != tt.want {
				t.Errorf("ExportableDuration(%+v) = %v, want %v", tt.meta, ok, tt.want)
			}
		})
	}
}

func TestWindowPadding(t *testing.T) {
	pcm := []float64{1, 2, 3, 4}
	tests := []struct {
		start int
		want  []float64
	}{
		{0, []float64{1, 2, 3}},
		{2, []float64{3, 4, 0}},
		{4, []float64{0, 0, 0}},
		{-1, []float64{0, 1, 2}},
		{-5, []float64{0, 0, 0}},
	}
	for _, tt := range tests {
		got := window(pcm, tt.start, 3)
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("window(start=%d) = %v, want %v", tt.start, got, tt.want)
				break
			}
		}
	}
}

func TestTestSignal(t *testing.T) {
	s := NewTestSignal(64, 44100)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	a := s.NextBuffer()
	b := s.NextBuffer()
	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("buffer lengths %d, %d", len(a), len(b))
	}
	tests := []struct {
		name  string
		got   float64
		phase float64
	}{
		{"first buffer", a[0], 0.1},
		{"second buffer", b[0], 0.2},
	}
	for _, tt := range tests {
		want := math.Sin(tt.phase) + 0.3*math.Sin(-2*tt.phase)
		if math.Abs(tt.got-want) > 1e-12 {
			t.Errorf("%s: sample 0 = %v, want %v", tt.name, tt.got, want)
		}
	}
	x := 2 * math.Pi * 2 * 5 / 64.0
	if want := math.Sin(x+0.1) + 0.3*math.Sin(3.5*x-0.2); math.Abs(a[5]-want) > 1e-12 {
		t.Errorf("a[5] = %v, want %v", a[5], want)
	}
	if _, ok := ExportableDuration(s.MetaInfo()); ok {
		t.Error("test signal must not be exportable")
	}
	s.SetBufferSize(32)
	if got := len(s.NextBuffer()); got != 32 {
		t.Errorf("after resize buffer length = %d, want 32", got)
	}
	var _ Source = s
}

func TestFileBufferAt(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i)
	}
	f := NewFileFromPCM("ramp", &PCM{Samples: samples, SampleRate: 10}, FileOptions{BufferSize: 8})
	var _ Seekable = f

	meta := f.MetaInfo()
	if !meta.HasDuration || meta.Duration != 10 || meta.SampleRate != 10 {
		t.Fatalf("meta = %+v", meta)
	}

	buf := f.BufferAt(2.55)
	if buf[0] != 25 || buf[7] != 32 {
		t.Errorf("BufferAt(2.55) = %v", buf)
	}
	tail := f.BufferAt(9.5)
	if tail[0] != 95 || tail[4] != 99 || tail[5] != 0 {
		t.Errorf("BufferAt(9.5) should zero-pad, got %v", tail)
	}

	f.SetBufferSize(4)
	if got := f.BufferAt(0); len(got) != 4 || got[3] != 3 {
		t.Errorf("after resize BufferAt(0) = %v", got)
	}
}

func TestFilePlaybackClock(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }

	f := NewFileFromPCM("ramp", &PCM{Samples: make([]float64, 40), SampleRate: 10},
		FileOptions{BufferSize: 4, Now: clock})
	if err := f.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer f.Disconnect()

	now = now.Add(1500 * time.Millisecond)
	if got := f.CurrentTime(); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("CurrentTime = %v, want 1.5", got)
	}

	f.Pause()
	now = now.Add(time.Second)
	if got := f.CurrentTime(); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("paused CurrentTime = %v, want 1.5", got)
	}
	if f.Playing() {
		t.Error("Playing after Pause")
	}

	f.Play()
	now = now.Add(3 * time.Second)
	if got := f.CurrentTime(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("playback should loop, CurrentTime = %v, want 0.5", got)
	}

	f.Seek(-1)
	if got := f.CurrentTime(); math.Abs(got-3) > 1e-9 {
		t.Errorf("Seek(-1) = %v, want 3", got)
	}
}

func TestFileDisconnectIdempotent(t *testing.T) {
	f := NewFileFromPCM("x", &PCM{Samples: make([]float64, 10), SampleRate: 10}, FileOptions{BufferSize: 4})
	if err := f.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := f.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if got := f.NextBuffer(); len(got) != 4 {
		t.Errorf("NextBuffer after disconnect returned %d samples", len(got))
	}
}

func TestFileMissing(t *testing.T) {
	f := NewFile("/nonexistent/file.wav", FileOptions{BufferSize: 8})
	err := f.Initialize(context.Background())
	if !errors.Is(err, errs.ErrResource) {
		t.Errorf("Initialize = %v, want resource error", err)
	}
}

func TestLoopReaderWraps(t *testing.T) {
	r := &loopReader{data: []byte{1, 2, 3}}
	p := make([]byte, 7)
	n, err := r.Read(p)
	if err != nil || n != 7 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	want := []byte{1, 2, 3, 1, 2, 3, 1}
	for i := range want {
		if p[i] != want[i] {
			t.Fatalf("Read = %v, want %v", p, want)
		}
	}
	if pos, _ := r.Seek(-1, 1); pos != 0 {
		t.Errorf("Seek(-1, current) = %d, want 0", pos)
	}
}
