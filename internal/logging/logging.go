// Package logging provides component loggers for diagnostic output.
// User-facing status lines are printed by the status package; this is for
// the things a user only wants to see when debugging.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultLevel keeps diagnostics quiet unless something goes wrong
const DefaultLevel = logrus.WarnLevel

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(DefaultLevel)
	return l
}

// Logger is the field logger handed to components
type Logger interface {
	logrus.FieldLogger
}

// New returns a logger tagged with the given component name. Loggers share
// one output and level, so Configure affects loggers created before it.
func New(component string) Logger {
	return base.WithField("component", component)
}

// Configure sends diagnostics to w at the named level. An empty level means
// DefaultLevel; an unknown one also falls back to it and is reported.
func Configure(w io.Writer, level string) error {
	base.SetOutput(w)
	if level == "" {
		base.SetLevel(DefaultLevel)
		return nil
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		base.SetLevel(DefaultLevel)
		return errors.Wrapf(err, "log level %q", level)
	}
	base.SetLevel(lvl)
	return nil
}
