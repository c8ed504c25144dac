// Package logging builds the process logger from settings.
package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"

	"clipmix/internal/domain"
)

// Options overrides the destination of New.
type Options struct {
	Name   string
	Output io.Writer
}

// New returns a named hclog logger honoring the configured level and format.
// Unknown levels fall back to info. Colour is only used on a terminal.
func New(settings domain.Settings, opts Options) hclog.Logger {
	name := opts.Name
	if name == "" {
		name = "clipmix"
	}
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	level := hclog.LevelFromString(settings.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	color := hclog.ColorOff
	if f, ok := output.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		color = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     output,
		JSONFormat: settings.LogFormat == "json",
		Color:      color,
	})
}
