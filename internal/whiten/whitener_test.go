// SPDX-License-Identifier: MIT
package whiten

import (
	"fmt"
	"math"
	"testing"

	"butterfly/pkg/utils"
)

func TestSetAmountClamps(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.5, 0.0},
		{0.0, 0.0},
		{0.6, 0.6},
		{1.0, 1.0},
		{3.0, 1.0},
		{math.NaN(), 0.0},
	}

	w := New()
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.input), func(t *testing.T) {
			w.SetAmount(tt.input)
			if w.Amount() != tt.expected {
				t.Errorf("Amount() = %v, want %v", w.Amount(), tt.expected)
			}
			if want := 0.95 * tt.expected; math.Abs(w.Coefficient()-want) > 1e-15 {
				t.Errorf("Coefficient() = %v, want %v", w.Coefficient(), want)
			}
		})
	}
}

func TestZeroAmountIsIdentity(t *testing.T) {
	w := New()
	w.SetAmount(0)
	input := utils.GenerateComplexWave(256, 44100)

	for pass := range 3 {
		out := w.Whiten(input)
		for i := range input {
			if out[i] != input[i] {
				t.Fatalf("pass %d sample %d: got %v, want %v", pass, i, out[i], input[i])
			}
		}
	}
}

func TestWhitenFormula(t *testing.T) {
	w := New()
	w.SetAmount(1)
	c := 0.95

	out := w.Whiten([]float64{1, 2, 3})
	want := []float64{1, 2 - c*1, 3 - c*2}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d: got %v, want %v", i, out[i], want[i])
		}
	}

	// The memory carries the last input sample into the next call.
	out = w.Whiten([]float64{0})
	if math.Abs(out[0]-(-c*3)) > 1e-12 {
		t.Errorf("continuation sample: got %v, want %v", out[0], -c*3)
	}
}

func TestMemoryTracksInputNotOutput(t *testing.T) {
	w := New()
	w.SetAmount(0.5)
	c := w.Coefficient()

	w.Whiten([]float64{0.25, -0.75})
	out := w.Whiten([]float64{0.5})
	if want := 0.5 - c*(-0.75); math.Abs(out[0]-want) > 1e-12 {
		t.Errorf("got %v, want %v", out[0], want)
	}
}

func TestWhitenDoesNotMutateInput(t *testing.T) {
	w := New()
	w.SetAmount(0.8)
	input := []float64{0.1, 0.2, 0.3, 0.4}
	original := append([]float64(nil), input...)

	out := w.Whiten(input)
	for i := range input {
		if input[i] != original[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
	out[0] = 99
	if input[0] == 99 {
		t.Fatal("output aliases input")
	}
}

func TestResetMatchesFreshWhitener(t *testing.T) {
	input := utils.GenerateSineWave(64, 8000, 300)

	used := New()
	used.SetAmount(0.6)
	used.Whiten(utils.GenerateConstant(32, 0.9))
	used.Reset()

	fresh := New()
	fresh.SetAmount(0.6)

	a := used.Whiten(input)
	b := fresh.Whiten(input)
	if a[0] != b[0] {
		t.Errorf("first sample after Reset = %v, fresh whitener gives %v", a[0], b[0])
	}
}

func TestEmptyInputKeepsMemory(t *testing.T) {
	w := New()
	w.SetAmount(1)
	w.Whiten([]float64{0.5})

	if out := w.Whiten(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %d samples", len(out))
	}
	out := w.Whiten([]float64{0})
	if math.Abs(out[0]-(-0.95*0.5)) > 1e-12 {
		t.Errorf("memory lost across empty call: got %v", out[0])
	}
}

func BenchmarkWhiten(b *testing.B) {
	w := New()
	w.SetAmount(0.6)
	input := utils.GenerateComplexWave(1024, 44100)

	b.ReportAllocs()
	for b.Loop() {
		w.Whiten(input)
	}
}
