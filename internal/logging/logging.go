// Package logging builds the hclog loggers used across nwbuild.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
)

// Options selects logger output.
type Options struct {
	Level hclog.Level
	JSON  bool
	// Output defaults to stderr.
	Output io.Writer
}

// New returns a named logger. Text output is colored when the output is a
// terminal and colors are not disabled.
func New(name string, opts Options) hclog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := opts.Level
	if level == hclog.NoLevel {
		level = hclog.Warn
	}
	colorOpt := hclog.ColorOff
	if !opts.JSON && !color.NoColor && out == os.Stderr {
		colorOpt = hclog.AutoColor
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		JSONFormat: opts.JSON,
		Output:     out,
		Color:      colorOpt,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}
