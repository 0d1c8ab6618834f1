package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"butterfly/cmd"
	applog "butterfly/internal/log"
	"butterfly/pkg/build"
)

// main wires build information and hands over to the command tree.
// Startup and shutdown of the audio devices, the host loop and the
// transports happen inside the commands so each one owns exactly what it
// opened.
func main() {
	if err := build.Initialize(); err != nil && !errors.Is(err, build.ErrDevelopmentBuild) {
		applog.Warnf("Build: Incomplete ldflags, using development build info: %v", err)
	}

	if err := cmd.Execute(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", build.GetBuildFlags().Name, err)
		os.Exit(1)
	}
}
