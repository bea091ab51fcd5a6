// Package logging builds the structured loggers shared by the sampler, the
// control worker and the config watcher.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Options selects level and destination.
type Options struct {
	Level string
	// File, when set, receives JSON lines through a rotating writer.
	File string
	// Quiet discards output when no File is set, for when the terminal UI owns
	// the screen.
	Quiet bool
}

// ParseLevel maps a config level name onto a phuslu level.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger and a closer for its destination.
func New(opts Options) (log.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return Discard(), nopCloser{}, err
	}
	if opts.File != "" {
		fw := &log.FileWriter{
			Filename:     opts.File,
			MaxSize:      10 << 20,
			MaxBackups:   3,
			EnsureFolder: true,
		}
		return log.Logger{Level: level, Writer: fw}, fw, nil
	}
	if opts.Quiet {
		return Discard(), nopCloser{}, nil
	}
	return NewWithWriter(level, os.Stderr), nopCloser{}, nil
}

// NewWithWriter logs JSON lines at level to w.
func NewWithWriter(level log.Level, w io.Writer) log.Logger {
	return log.Logger{Level: level, Writer: &log.IOWriter{Writer: w}}
}

// Discard returns a logger that drops everything.
func Discard() log.Logger {
	return log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
