// SPDX-License-Identifier: MIT

// Package errs defines the two failure classes surfaced by the pipeline.
// Construction-time validation problems wrap ErrConfiguration, failures to
// acquire an external resource (device, file, encoder) wrap ErrResource.
// Callers match them with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an invalid size, a buffer length mismatch or a
	// capability that a driver requires but its collaborator lacks.
	ErrConfiguration = errors.New("configuration error")

	// ErrResource reports a collaborator that could not be initialized.
	ErrResource = errors.New("resource error")
)

// Configurationf returns a formatted error wrapping ErrConfiguration.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Resourcef returns a formatted error wrapping ErrResource. A trailing error
// argument is kept in the chain so the cause stays inspectable.
func Resourcef(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrResource, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrResource, msg, cause)
}
