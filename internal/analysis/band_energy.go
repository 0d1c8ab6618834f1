// SPDX-License-Identifier: MIT
package analysis

import "math"

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// BandLevel is the measured level of one band in [0,1].
type BandLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// DefaultBands mirror the usual sub-to-treble split. The treble band is open
// ended and absorbs everything up to Nyquist.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandEnergy summarizes a spectrum into a handful of band levels.
type BandEnergy struct {
	bands      []FrequencyBand
	sampleRate float64
	sums       []float64
	counts     []int
	levels     []BandLevel
}

// NewBandEnergy returns a summarizer for spectra sampled at sampleRate. A nil
// bands slice selects DefaultBands.
func NewBandEnergy(sampleRate float64, bands []FrequencyBand) *BandEnergy {
	if bands == nil {
		bands = DefaultBands
	}
	levels := make([]BandLevel, len(bands))
	for i, b := range bands {
		levels[i].Name = b.Name
	}
	return &BandEnergy{
		bands:      bands,
		sampleRate: sampleRate,
		sums:       make([]float64, len(bands)),
		counts:     make([]int, len(bands)),
		levels:     levels,
	}
}

// FrequencyForBin returns the center frequency (Hz) of bin for an fftSize
// point transform.
func (b *BandEnergy) FrequencyForBin(bin, fftSize int) float64 {
	if bin < 0 || fftSize <= 0 {
		return 0
	}
	return float64(bin) * b.sampleRate / float64(fftSize)
}

// Measure computes band levels from the magnitudes of a full N-point complex
// spectrum. Only bins up to Nyquist are read. Each level is the RMS magnitude
// of the band divided by N/2, so a full-scale sine lands near 1, then clamped.
// The returned slice is reused by the next call.
func (b *BandEnergy) Measure(magnitudes []float64) []BandLevel {
	n := len(magnitudes)
	for i := range b.bands {
		b.sums[i] = 0
		b.counts[i] = 0
	}
	if n == 0 {
		for i := range b.levels {
			b.levels[i].Level = 0
		}
		return b.levels
	}

	for bin := 0; bin <= n/2 && bin < n; bin++ {
		freq := b.FrequencyForBin(bin, n)
		for i, band := range b.bands {
			if freq >= band.LowHz && freq < band.HighHz {
				b.sums[i] += magnitudes[bin] * magnitudes[bin]
				b.counts[i]++
				break
			}
		}
	}

	scale := 2.0 / float64(n)
	for i := range b.bands {
		level := 0.0
		if b.counts[i] > 0 {
			level = math.Sqrt(b.sums[i]/float64(b.counts[i])) * scale
		}
		if math.IsNaN(level) {
			level = 0
		}
		b.levels[i].Level = math.Min(1.0, level)
	}
	return b.levels
}
