// SPDX-License-Identifier: MIT
package source

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"butterfly/internal/errs"
	"butterfly/internal/log"
)

// int32 full scale, for converting captured samples to [-1, 1).
const int32Scale = 1.0 / float64(1<<31)

// MicrophoneOptions configures live capture.
type MicrophoneOptions struct {
	DeviceID        int // DefaultDeviceID for the system default
	BufferSize      int // samples per NextBuffer
	SampleRate      float64
	Channels        int
	FramesPerBuffer int
	LowLatency      bool
	GateThreshold   float64 // 0 disables the gate
	RecordFile      string  // optional WAV tee
}

// Microphone captures from a PortAudio input device. The audio callback
// writes the first channel into a ring; NextBuffer copies out the most recent
// BufferSize samples.
type Microphone struct {
	opts     MicrophoneOptions
	gate     *Gate
	recorder *Recorder

	stream      *portaudio.Stream
	inputBuffer []int32
	initialized bool

	mu    sync.Mutex
	ring  []float64
	write int
}

// NewMicrophone prepares a capture source. No device is touched until
// Initialize.
func NewMicrophone(opts MicrophoneOptions) *Microphone {
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.FramesPerBuffer <= 0 {
		opts.FramesPerBuffer = opts.BufferSize
	}
	m := &Microphone{
		opts: opts,
		ring: make([]float64, opts.BufferSize),
		gate: NewGate(opts.GateThreshold),
	}
	if opts.GateThreshold <= 0 {
		m.gate.Disable()
	}
	return m
}

// Gate exposes the noise gate for live adjustment.
func (m *Microphone) Gate() *Gate { return m.gate }

// SetGateThreshold retunes the noise gate while capturing. Zero turns the
// gate off.
func (m *Microphone) SetGateThreshold(threshold float64) {
	m.gate.SetThreshold(threshold)
	if threshold > 0 {
		m.gate.Enable()
	} else {
		m.gate.Disable()
	}
}

// Recording reports whether captured audio is being written to a WAV file.
func (m *Microphone) Recording() bool {
	return m.recorder != nil && m.recorder.Recording()
}

// SetBufferSize resizes the capture ring. History is dropped, so the next
// buffers are partly silent until the ring refills.
func (m *Microphone) SetBufferSize(n int) {
	m.mu.Lock()
	m.ring = make([]float64, n)
	m.write = 0
	m.mu.Unlock()
}

// Initialize opens and starts the input stream.
func (m *Microphone) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Resourcef(err, "microphone")
	}
	if m.initialized {
		return nil
	}
	if err := InitializeAudio(); err != nil {
		return errs.Resourcef(err, "microphone")
	}

	device, err := inputDevice(m.opts.DeviceID)
	if err != nil {
		TerminateAudio()
		return errs.Resourcef(err, "microphone device %d", m.opts.DeviceID)
	}
	if m.opts.SampleRate <= 0 {
		m.opts.SampleRate = device.DefaultSampleRate
	}
	latency := device.DefaultHighInputLatency
	if m.opts.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	m.inputBuffer = make([]int32, m.opts.FramesPerBuffer*m.opts.Channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: m.opts.Channels,
			Device:   device,
			Latency:  latency,
		},
		FramesPerBuffer: m.opts.FramesPerBuffer,
		SampleRate:      m.opts.SampleRate,
	}
	stream, err := portaudio.OpenStream(params, m.processInputStream)
	if err != nil {
		TerminateAudio()
		return errs.Resourcef(err, "open input stream on %s", device.Name)
	}

	if m.opts.RecordFile != "" {
		m.recorder = NewRecorder(int(m.opts.SampleRate), m.opts.Channels)
		if err := m.recorder.Start(m.opts.RecordFile); err != nil {
			stream.Close()
			TerminateAudio()
			return errs.Resourcef(err, "record to %s", m.opts.RecordFile)
		}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		if m.recorder != nil {
			m.recorder.Stop()
		}
		TerminateAudio()
		return errs.Resourcef(err, "start input stream")
	}
	m.stream = stream
	m.initialized = true
	log.Infof("Source: Capturing from %s (%.0f Hz, %d ch, latency %v)",
		device.Name, m.opts.SampleRate, m.opts.Channels, latency.Round(time.Millisecond))
	return nil
}

// processInputStream runs on the PortAudio thread.
func (m *Microphone) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(m.inputBuffer, in)
	if m.recorder != nil {
		if err := m.recorder.Write(m.inputBuffer); err != nil {
			log.Errorf("Source: Error writing to WAV file: %v", err)
		}
	}
	m.capture(m.inputBuffer, m.opts.Channels)
}

// capture pushes channel 0 of an interleaved buffer into the ring, or
// silence when the gate is closed.
func (m *Microphone) capture(buffer []int32, channels int) {
	open := m.gate.Open(buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ring) == 0 {
		return
	}
	for i := 0; i < len(buffer); i += channels {
		v := 0.0
		if open {
			v = float64(buffer[i]) * int32Scale
		}
		m.ring[m.write] = v
		m.write = (m.write + 1) % len(m.ring)
	}
}

// NextBuffer returns the most recent BufferSize samples, oldest first.
func (m *Microphone) NextBuffer() []float64 {
	out := make([]float64, len(m.ring))
	m.mu.Lock()
	n := copy(out, m.ring[m.write:])
	copy(out[n:], m.ring[:m.write])
	m.mu.Unlock()
	return out
}

func (m *Microphone) MetaInfo() Meta {
	return Meta{Name: "Microphone", SampleRate: m.opts.SampleRate}
}

// Disconnect stops capture and any recording.
func (m *Microphone) Disconnect() error {
	if !m.initialized {
		return nil
	}
	m.initialized = false

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.stream != nil {
		keep(m.stream.Stop())
		keep(m.stream.Close())
		m.stream = nil
	}
	if m.recorder != nil {
		keep(m.recorder.Stop())
	}
	keep(TerminateAudio())
	log.Infof("Source: Microphone disconnected")
	return firstErr
}
