// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded at link time: application
// name, build timestamp, Git commit hash and semantic version.
//
//	go build -ldflags "-X butterfly/pkg/build.buildName=butterfly \
//	  -X butterfly/pkg/build.buildVersion=0.1.0 ..."
//
// Development builds run without them and report "unknown".
package build

import (
	"errors"
	"fmt"
	"strings"
)

// Description is the one-line summary shown by the CLI.
const Description = "Staged FFT butterfly visualizer with realtime and offline video export"

// DefaultName is used when the binary was built without ldflags.
const DefaultName = "butterfly"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values of "unknown" are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    DefaultName,
		Time:    "unknown",
		Commit:  "unknown",
		Version: "unknown",
	}
)

// ErrDevelopmentBuild is returned by Initialize when no ldflags were set.
var ErrDevelopmentBuild = errors.New("development build")

// Initialize copies the ldflags variables into the build information. A
// binary built without any of them reports ErrDevelopmentBuild; a partial set
// names every missing flag. The defaults stay in place on error.
func Initialize() error {
	values := []struct {
		name  string
		value string
	}{
		{"buildName", buildName},
		{"buildTime", buildTime},
		{"buildCommit", buildCommit},
		{"buildVersion", buildVersion},
	}

	var missing []error
	for _, v := range values {
		if v.value == "" {
			missing = append(missing, fmt.Errorf("%s is required", v.name))
		}
	}
	switch len(missing) {
	case 0:
	case len(values):
		return ErrDevelopmentBuild
	default:
		return errors.Join(missing...)
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// Describe renders the version line, e.g. "0.1.0 (commit abcdef1, built 2025-04-13)".
func (f *ldFlags) Describe() string {
	commit := f.Commit
	if len(commit) > 7 && !strings.EqualFold(commit, "unknown") {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, commit, f.Time)
}
