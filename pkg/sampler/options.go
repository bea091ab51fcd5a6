package sampler

import (
	"runtime"
	"time"

	"github.com/phuslu/log"

	"github.com/srodi/proctop/pkg/types"
)

const (
	// DefaultInterval is the pause between cycles.
	DefaultInterval = 2 * time.Second
	// MinInterval is the floor applied to any requested interval.
	MinInterval = 100 * time.Millisecond
	// DefaultReadTimeout bounds a single process read.
	DefaultReadTimeout = 250 * time.Millisecond
)

// Settings are the parameters that may change while the sampler runs. A new
// value takes effect at the start of the next cycle.
type Settings struct {
	Interval      time.Duration
	HistoryLength int
}

// Normalize applies the interval floor and history bounds.
func (s Settings) Normalize() Settings {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.Interval < MinInterval {
		s.Interval = MinInterval
	}
	if s.HistoryLength < 1 {
		s.HistoryLength = types.DefaultHistoryLength
	}
	return s
}

// Option configures a Sampler at construction.
type Option func(*Sampler)

// WithLogger sets the logger; the default discards output.
func WithLogger(l log.Logger) Option {
	return func(s *Sampler) { s.log = l }
}

// WithSettings sets the initial interval and history length.
func WithSettings(st Settings) Option {
	return func(s *Sampler) {
		st = st.Normalize()
		s.settings.Store(&st)
	}
}

// WithReadTimeout bounds each per-process read.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

// WithWorkers limits how many processes are read in parallel.
func WithWorkers(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.workers = n
		}
	}
}

func defaultWorkers() int {
	return runtime.NumCPU()
}
