// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"butterfly/internal/errs"
	"butterfly/internal/log"
)

// FileOptions configures a File source.
type FileOptions struct {
	BufferSize int
	// Speaker plays the file through the default output device. Without it
	// the playhead follows the wall clock.
	Speaker bool
	// Now overrides the clock of the silent playhead, for tests.
	Now func() time.Time
}

// File is a decoded media file. It loops during live playback and supports
// random access for export.
type File struct {
	path string
	opts FileOptions
	pcm  *PCM
	head playhead
}

// NewFile prepares a source for path. Nothing is read until Initialize.
func NewFile(path string, opts FileOptions) *File {
	return &File{path: path, opts: opts}
}

// NewFileFromPCM wraps already decoded samples.
func NewFileFromPCM(name string, pcm *PCM, opts FileOptions) *File {
	return &File{path: name, opts: opts, pcm: pcm}
}

// Initialize decodes the file (once) and starts playback.
func (f *File) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Resourcef(err, "open %s", f.path)
	}
	if f.pcm == nil {
		pcm, err := DecodeFile(f.path)
		if err != nil {
			return errs.Resourcef(err, "decode %s", f.path)
		}
		f.pcm = pcm
	}
	if f.pcm.SampleRate <= 0 {
		return errs.Resourcef(nil, "%s has no sample rate", f.path)
	}

	if f.head == nil {
		f.head = f.newPlayhead()
	}
	f.head.Play()
	log.Infof("Source: Loaded %s (%.2fs @ %d Hz)", filepath.Base(f.path), f.pcm.Duration(), f.pcm.SampleRate)
	return nil
}

func (f *File) newPlayhead() playhead {
	if f.opts.Speaker {
		head, err := newSpeakerPlayhead(f.pcm)
		if err == nil {
			return head
		}
		log.Warnf("Source: Speaker output unavailable, playing silently: %v", err)
	}
	return newClockPlayhead(f.pcm.Duration(), f.opts.Now)
}

// NextBuffer returns the buffer at the current playhead.
func (f *File) NextBuffer() []float64 {
	if f.head == nil {
		return make([]float64, f.opts.BufferSize)
	}
	return f.BufferAt(f.head.Position())
}

// BufferAt returns BufferSize samples starting at floor(t*rate), zero-padded
// past the end of the file.
func (f *File) BufferAt(t float64) []float64 {
	if f.pcm == nil {
		return make([]float64, f.opts.BufferSize)
	}
	start := int(math.Floor(t * float64(f.pcm.SampleRate)))
	return window(f.pcm.Samples, start, f.opts.BufferSize)
}

// SetBufferSize changes how many samples NextBuffer and BufferAt return.
func (f *File) SetBufferSize(n int) { f.opts.BufferSize = n }

func (f *File) MetaInfo() Meta {
	m := Meta{Name: filepath.Base(f.path)}
	if f.pcm != nil {
		m.SampleRate = float64(f.pcm.SampleRate)
		m.Duration = f.pcm.Duration()
		m.HasDuration = true
	}
	return m
}

// Play resumes playback.
func (f *File) Play() {
	if f.head != nil {
		f.head.Play()
	}
}

// Pause freezes the playhead.
func (f *File) Pause() {
	if f.head != nil {
		f.head.Pause()
	}
}

// Playing reports whether the playhead is moving.
func (f *File) Playing() bool {
	return f.head != nil && f.head.Playing()
}

// Seek moves the playhead to t seconds, wrapped into the file.
func (f *File) Seek(t float64) {
	if f.head != nil {
		f.head.Seek(t)
	}
}

// CurrentTime returns the playhead position in seconds.
func (f *File) CurrentTime() float64 {
	if f.head == nil {
		return 0
	}
	return f.head.Position()
}

// Disconnect stops playback. Decoded samples are kept so the source can be
// initialized again cheaply.
func (f *File) Disconnect() error {
	if f.head == nil {
		return nil
	}
	head := f.head
	f.head = nil
	return head.Close()
}
