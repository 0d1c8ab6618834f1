// SPDX-License-Identifier: MIT

// Package utils holds deterministic signal generators and small spectrum
// helpers shared by tests and the synthetic audio source. Samples are
// float64 in [-1, 1].
package utils

import "math"

// GenerateComplexWave returns a 440Hz fundamental with its second and third
// harmonics, peaking at 0.9 full scale.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency Hz, peaking at 0.9 full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// GenerateConstant returns size copies of value.
func GenerateConstant(size int, value float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude within
// [startBin, endBin], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
