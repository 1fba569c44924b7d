// Package logging configures the logrus logger shared across the kernel,
// its worlds and the demo command, so every component's log lines carry
// the same formatter and level instead of each constructing its own.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Level parses as a logrus level name ("debug", "info", "warn", ...);
	// empty defaults to "info".
	Level string
	// JSON selects the JSON formatter (for log aggregation) over the
	// default text formatter (for local/interactive use).
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a *logrus.Logger from opts, falling back to safe defaults for
// any unset or unparseable field.
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return l
}
