// Package sampler runs the periodic poll cycle that reads every visible
// process, derives percentages from counter deltas and publishes one batch per
// cycle to a dispatch channel.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"

	"github.com/srodi/proctop/pkg/collector"
	"github.com/srodi/proctop/pkg/dispatch"
	"github.com/srodi/proctop/pkg/history"
	"github.com/srodi/proctop/pkg/logging"
	"github.com/srodi/proctop/pkg/types"
)

var (
	// ErrStopped is returned when starting a sampler that has already stopped.
	ErrStopped = errors.New("sampler stopped")
	// ErrRunning is returned by RunOnce while the background loop is active.
	ErrRunning = errors.New("sampler running")
)

// State is the lifecycle position of the sampling loop.
type State int32

const (
	StateIdle State = iota
	StateSampling
	StatePublishing
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StatePublishing:
		return "publishing"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Stats are cumulative counters since construction.
type Stats struct {
	Cycles       uint64
	Vanished     uint64
	Denied       uint64
	Skipped      uint64
	Overflows    uint64
	LastDuration time.Duration
}

// Sampler owns the previous-sample caches; nothing outside the loop reads
// them. Control reaches it through Reconfigure and Stop only.
type Sampler struct {
	provider    collector.Provider
	out         *dispatch.Channel
	log         log.Logger
	readTimeout time.Duration
	workers     int

	settings atomic.Pointer[Settings]
	updates  chan Settings

	// loop-owned
	applied    Settings
	prevRaw    map[int32]types.RawSample
	last       map[int32]types.ProcessSnapshot
	prevSys    types.SystemSample
	hasPrevSys bool
	lastCPU    float64
	lastCores  []float64
	history    []*history.Ring[float64]
	seq        uint64

	state     atomic.Int32
	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	fatal     chan error
	fatalOnce sync.Once

	cycles       atomic.Uint64
	vanished     atomic.Uint64
	denied       atomic.Uint64
	skipped      atomic.Uint64
	lastDuration atomic.Int64
}

// New returns an idle sampler reading from provider and publishing to out.
func New(provider collector.Provider, out *dispatch.Channel, opts ...Option) *Sampler {
	s := &Sampler{
		provider:    provider,
		out:         out,
		log:         logging.Discard(),
		readTimeout: DefaultReadTimeout,
		workers:     defaultWorkers(),
		updates:     make(chan Settings, 1),
		prevRaw:     make(map[int32]types.RawSample),
		last:        make(map[int32]types.ProcessSnapshot),
		fatal:       make(chan error, 1),
	}
	initial := Settings{}.Normalize()
	s.settings.Store(&initial)
	for _, opt := range opts {
		opt(s)
	}
	s.applied = s.Settings()
	return s
}

// Start launches the loop. Calling Start on a running sampler is a no-op.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateStopped {
		return ErrStopped
	}
	if s.done != nil {
		return nil
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.log.Debug().Dur("interval", s.Settings().Interval).Int("workers", s.workers).Msg("sampler started")
	return nil
}

// Stop requests shutdown and waits up to timeout for the loop to exit. It is
// safe to call more than once.
func (s *Sampler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if done == nil {
		s.state.Store(int32(StateStopped))
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("sampler did not stop within %s", timeout)
	}
}

// State reports where the loop currently is.
func (s *Sampler) State() State {
	return State(s.state.Load())
}

// Settings returns the most recently requested settings.
func (s *Sampler) Settings() Settings {
	return *s.settings.Load()
}

// Reconfigure queues new settings for the next cycle. Only the latest request
// is kept; it never blocks.
func (s *Sampler) Reconfigure(st Settings) {
	st = st.Normalize()
	s.settings.Store(&st)
	for {
		select {
		case s.updates <- st:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// Fatal delivers the error that stopped the sampler, at most once.
func (s *Sampler) Fatal() <-chan error {
	return s.fatal
}

// Stats returns cumulative counters.
func (s *Sampler) Stats() Stats {
	st := Stats{
		Cycles:       s.cycles.Load(),
		Vanished:     s.vanished.Load(),
		Denied:       s.denied.Load(),
		Skipped:      s.skipped.Load(),
		LastDuration: time.Duration(s.lastDuration.Load()),
	}
	if s.out != nil {
		st.Overflows = s.out.Overflows()
	}
	return st
}

// RunOnce performs a single cycle and returns the batch without publishing it.
// It fails with ErrRunning while the background loop is active.
func (s *Sampler) RunOnce(ctx context.Context) (*types.Batch, error) {
	s.mu.Lock()
	running := s.done != nil
	s.mu.Unlock()
	if running {
		return nil, ErrRunning
	}
	s.applyUpdates()
	return s.cycle(ctx)
}

func (s *Sampler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.state.Store(int32(StateStopped))

	for {
		if ctx.Err() != nil {
			s.log.Debug().Msg("sampler stopping")
			return
		}
		s.applyUpdates()
		start := time.Now()

		s.state.Store(int32(StateSampling))
		batch, err := s.cycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(err)
			return
		}

		s.state.Store(int32(StatePublishing))
		if dropped := s.out.Push(batch); dropped {
			s.log.Trace().Uint64("seq", batch.Seq).Msg("dropped stale batch")
		}

		s.state.Store(int32(StateSleeping))
		wait := s.applied.Interval - time.Since(start)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		s.state.Store(int32(StateIdle))
	}
}

func (s *Sampler) fail(err error) {
	s.fatalOnce.Do(func() {
		s.log.Error().Err(err).Msg("sampler failed")
		s.state.Store(int32(StateStopped))
		s.fatal <- err
	})
}

func (s *Sampler) applyUpdates() {
	select {
	case st := <-s.updates:
		s.applied = st
		for _, ring := range s.history {
			ring.Resize(st.HistoryLength)
		}
		s.log.Debug().Dur("interval", st.Interval).Int("history", st.HistoryLength).Msg("settings applied")
	default:
	}
}
