// SPDX-License-Identifier: MIT
package errs

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConfigurationf(t *testing.T) {
	err := Configurationf("fft size must be a power of 2, got %d", 6)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration in chain, got %v", err)
	}
	if errors.Is(err, ErrResource) {
		t.Error("configuration error should not match ErrResource")
	}
	if !strings.Contains(err.Error(), "got 6") {
		t.Errorf("message lost formatting: %q", err.Error())
	}
}

func TestResourcefKeepsCause(t *testing.T) {
	err := Resourcef(io.ErrUnexpectedEOF, "open %s", "song.wav")
	if !errors.Is(err, ErrResource) {
		t.Errorf("expected ErrResource in chain, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected cause in chain, got %v", err)
	}

	err = Resourcef(nil, "permission denied")
	if !errors.Is(err, ErrResource) {
		t.Errorf("expected ErrResource without cause, got %v", err)
	}
}
