// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// playhead tracks the playback position of a looping file.
type playhead interface {
	Play()
	Pause()
	Playing() bool
	Seek(t float64)
	Position() float64 // seconds, always within [0, duration)
	Close() error
}

// clockPlayhead advances with wall-clock time. It is used when no speaker
// output is wanted.
type clockPlayhead struct {
	mu       sync.Mutex
	now      func() time.Time
	duration float64
	offset   float64
	started  time.Time
	playing  bool
}

func newClockPlayhead(duration float64, now func() time.Time) *clockPlayhead {
	if now == nil {
		now = time.Now
	}
	return &clockPlayhead{duration: duration, now: now}
}

func (c *clockPlayhead) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.started = c.now()
	c.playing = true
}

func (c *clockPlayhead) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.offset = c.positionLocked()
	c.playing = false
}

func (c *clockPlayhead) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *clockPlayhead) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = wrapTime(t, c.duration)
	c.started = c.now()
}

func (c *clockPlayhead) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *clockPlayhead) positionLocked() float64 {
	pos := c.offset
	if c.playing {
		pos += c.now().Sub(c.started).Seconds()
	}
	return wrapTime(pos, c.duration)
}

func (c *clockPlayhead) Close() error { return nil }

// wrapTime folds t into [0, duration) so playback loops.
func wrapTime(t, duration float64) float64 {
	if duration <= 0 || math.IsNaN(t) {
		return 0
	}
	t = math.Mod(t, duration)
	if t < 0 {
		t += duration
	}
	return t
}

// loopReader serves a byte slice forever, wrapping at the end.
type loopReader struct {
	mu   sync.Mutex
	data []byte
	pos  int64
}

func (r *loopReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		if r.pos >= int64(len(r.data)) {
			r.pos = 0
		}
		c := copy(p[n:], r.data[r.pos:])
		n += c
		r.pos += int64(c)
	}
	return n, nil
}

func (r *loopReader) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = r.pos + offset
	case io.SeekEnd:
		pos = int64(len(r.data)) + offset
	}
	if size := int64(len(r.data)); size > 0 {
		pos %= size
		if pos < 0 {
			pos += size
		}
	}
	r.pos = pos
	return pos, nil
}

func (r *loopReader) offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

var (
	speakerCtx     *oto.Context
	speakerRate    int
	speakerOnce    sync.Once
	speakerInitErr error
)

// speakerContext returns the process-wide output context. The audio backend
// allows a single context per process, so the first caller fixes its rate.
func speakerContext(sampleRate int) (*oto.Context, error) {
	speakerOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		speakerCtx, ready, speakerInitErr = oto.NewContext(op)
		if speakerInitErr == nil {
			<-ready
			speakerRate = sampleRate
		}
	})
	if speakerInitErr != nil {
		return nil, speakerInitErr
	}
	if speakerRate != sampleRate {
		return nil, fmt.Errorf("speaker already opened at %d Hz, cannot play %d Hz", speakerRate, sampleRate)
	}
	return speakerCtx, nil
}

// speakerPlayhead plays the file through the default output device and
// derives the position from what the device has consumed.
type speakerPlayhead struct {
	reader   *loopReader
	player   *oto.Player
	duration float64
	rate     int
}

func newSpeakerPlayhead(pcm *PCM) (*speakerPlayhead, error) {
	ctx, err := speakerContext(pcm.SampleRate)
	if err != nil {
		return nil, err
	}
	reader := &loopReader{data: encodeInt16(pcm.Samples)}
	return &speakerPlayhead{
		reader:   reader,
		player:   ctx.NewPlayer(reader),
		duration: pcm.Duration(),
		rate:     pcm.SampleRate,
	}, nil
}

func (s *speakerPlayhead) Play()         { s.player.Play() }
func (s *speakerPlayhead) Pause()        { s.player.Pause() }
func (s *speakerPlayhead) Playing() bool { return s.player.IsPlaying() }

func (s *speakerPlayhead) Seek(t float64) {
	frame := int64(wrapTime(t, s.duration) * float64(s.rate))
	if _, err := s.player.Seek(frame*2, io.SeekStart); err != nil {
		// The player only fails when the reader does; fall back to the reader.
		s.reader.Seek(frame*2, io.SeekStart)
	}
}

func (s *speakerPlayhead) Position() float64 {
	consumed := s.reader.offset() - int64(s.player.BufferedSize())
	return wrapTime(float64(consumed/2)/float64(s.rate), s.duration)
}

func (s *speakerPlayhead) Close() error {
	s.player.Pause()
	return s.player.Close()
}
