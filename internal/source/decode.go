// SPDX-License-Identifier: MIT
package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// PCM is a fully decoded mono signal.
type PCM struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the signal in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// SupportedExtensions lists the file types DecodeFile understands.
var SupportedExtensions = []string{".wav", ".mp3", ".flac", ".ogg"}

// DecodeFile decodes the whole file at path, detecting the format by
// extension. Multi-channel audio keeps only the first channel.
func DecodeFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, filepath.Ext(path))
}

// Decode decodes r as the format named by ext (".wav", ".mp3", ...).
func Decode(r io.ReadSeeker, ext string) (*PCM, error) {
	switch strings.ToLower(ext) {
	case ".wav":
		return decodeWAV(r)
	case ".mp3":
		return decodeMP3(r)
	case ".flac":
		return decodeFLAC(r)
	case ".ogg":
		return decodeOGG(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}
}

func decodeWAV(r io.ReadSeeker) (*PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	depth := int(dec.BitDepth)
	scale := 1.0 / float64(int64(1)<<(depth-1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range samples {
		v := buf.Data[i*channels]
		if depth == 8 {
			// 8-bit WAV is unsigned.
			v -= 128
		}
		samples[i] = float64(v) * scale
	}
	return &PCM{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

func decodeMP3(r io.ReadSeeker) (*PCM, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	// go-mp3 always emits 16-bit little-endian stereo.
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	const frameSize = 4
	samples := make([]float64, len(raw)/frameSize)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*frameSize:]))
		samples[i] = float64(v) / 32768.0
	}
	return &PCM{Samples: samples, SampleRate: dec.SampleRate()}, nil
}

func decodeFLAC(r io.ReadSeeker) (*PCM, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	scale := 1.0 / float64(int64(1)<<(info.BitsPerSample-1))
	samples := make([]float64, 0, info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding FLAC frame: %w", err)
		}
		for _, s := range frame.Subframes[0].Samples {
			samples = append(samples, float64(s)*scale)
		}
	}
	return &PCM{Samples: samples, SampleRate: int(info.SampleRate)}, nil
}

func decodeOGG(r io.ReadSeeker) (*PCM, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	channels := format.Channels
	if channels <= 0 {
		channels = 1
	}
	samples := make([]float64, len(data)/channels)
	for i := range samples {
		samples[i] = float64(data[i*channels])
	}
	return &PCM{Samples: samples, SampleRate: format.SampleRate}, nil
}

// encodeInt16 renders mono samples as signed 16-bit little-endian PCM, the
// format the speaker output consumes.
func encodeInt16(samples []float64) []byte {
	var buf bytes.Buffer
	buf.Grow(len(samples) * 2)
	var b [2]byte
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(b[:], uint16(int16(s*32767)))
		buf.Write(b[:])
	}
	return buf.Bytes()
}
