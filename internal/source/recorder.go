// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder tees raw 32-bit capture buffers into a WAV file.
type Recorder struct {
	sampleRate int
	channels   int

	mu         sync.Mutex
	recording  atomic.Bool
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer
}

// NewRecorder returns an idle recorder for interleaved buffers with the given
// layout.
func NewRecorder(sampleRate, channels int) *Recorder {
	return &Recorder{sampleRate: sampleRate, channels: channels}
}

// Start opens filename and begins accepting writes.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording.Load() {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, 32, r.channels, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: r.channels,
			SampleRate:  r.sampleRate,
		},
		SourceBitDepth: 32,
	}
	r.recording.Store(true)
	return nil
}

// Recording reports whether Start has been called without a matching Stop.
func (r *Recorder) Recording() bool { return r.recording.Load() }

// Write appends an interleaved buffer. It is a no-op when not recording.
func (r *Recorder) Write(buffer []int32) error {
	if !r.recording.Load() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(buffer) {
		r.sampleBuf.Data = make([]int, len(buffer))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(buffer)]
	for i, sample := range buffer {
		r.sampleBuf.Data[i] = int(sample)
	}
	return r.wavEncoder.Write(r.sampleBuf)
}

// Stop finalizes the WAV header and closes the file. Stopping an idle
// recorder does nothing.
func (r *Recorder) Stop() error {
	if !r.recording.Swap(false) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}
	return nil
}
