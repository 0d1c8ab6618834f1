// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"os"
	"testing"
)

const testSize = 1024

var testMagnitudes []float64

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testSize)

	// A "hill" with its peak at testSize/4.
	for i := range testMagnitudes {
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	os.Exit(m.Run())
}

func TestGenerateComplexWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateComplexWave(tt.size, tt.sampleRate)

			if len(result) != tt.size {
				t.Errorf("GenerateComplexWave() buffer size = %d, want %d", len(result), tt.size)
			}

			hasNonZero := false
			for _, v := range result {
				if v != 0 {
					hasNonZero = true
				}
				if math.Abs(v) > 1 {
					t.Fatalf("sample %v outside [-1, 1]", v)
				}
			}
			if !hasNonZero {
				t.Errorf("GenerateComplexWave() produced all zeros")
			}
		})
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 44100, 440.0},
		{"Middle C", 44100, 261.63},
		{"High Sample Rate", 192000, 440.0},
		{"Low Sample Rate", 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(testSize, tt.sampleRate, tt.frequency)
			if len(result) != testSize {
				t.Fatalf("GenerateSineWave() buffer size = %d, want %d", len(result), testSize)
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			crossCount := 0
			for i := 1; i < testSize; i++ {
				if (result[i-1] < 0) != (result[i] < 0) {
					crossCount++
				}
			}

			// Two crossings per cycle, 20% slack for phase alignment.
			expected := float64(testSize) / (samplesPerCycle / 2)
			if math.Abs(float64(crossCount)-expected) > 0.2*expected {
				t.Errorf("zero crossings = %d, expected approximately %.1f", crossCount, expected)
			}
		})
	}
}

func TestGenerateConstant(t *testing.T) {
	buf := GenerateConstant(8, 0.25)
	for i, v := range buf {
		if v != 0.25 {
			t.Errorf("sample %d = %v, want 0.25", i, v)
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FindPeakBin(tt.mags, tt.start, tt.end); result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})
	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}
