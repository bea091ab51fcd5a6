// Package collectortest provides an in-memory collector.Provider for tests.
package collectortest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/srodi/proctop/pkg/collector"
	"github.com/srodi/proctop/pkg/types"
)

// Synthetic serves scripted samples. Tests mutate it between cycles with the
// Set*/Deny/Remove helpers; all methods are safe for concurrent use.
type Synthetic struct {
	mu      sync.Mutex
	procs   map[int32]types.RawSample
	denied  map[int32]bool
	vanish  map[int32]bool
	delays  map[int32]time.Duration
	system  types.SystemSample
	listErr error
	sysErr  error
	reads   map[int32]int
}

// New returns an empty synthetic provider with a single-core system sample.
func New() *Synthetic {
	return &Synthetic{
		procs:  make(map[int32]types.RawSample),
		denied: make(map[int32]bool),
		vanish: make(map[int32]bool),
		delays: make(map[int32]time.Duration),
		reads:  make(map[int32]int),
		system: types.SystemSample{
			PerCore:  []types.CPUTimes{{}},
			MemTotal: 1 << 30,
		},
	}
}

// SetProcess installs or replaces the sample returned for raw.PID.
func (s *Synthetic) SetProcess(raw types.RawSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[raw.PID] = raw
	delete(s.denied, raw.PID)
	delete(s.vanish, raw.PID)
}

// Remove drops a process from enumeration entirely.
func (s *Synthetic) Remove(pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.procs, pid)
}

// Deny makes reads of pid fail with ErrAccessDenied while keeping it enumerated.
func (s *Synthetic) Deny(pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[pid] = true
}

// Vanish keeps pid in the enumeration but makes its read report that it exited.
func (s *Synthetic) Vanish(pid int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vanish[pid] = true
}

// Delay makes reads of pid block for d or until the read context ends.
func (s *Synthetic) Delay(pid int32, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[pid] = d
}

// SetSystem replaces the system sample.
func (s *Synthetic) SetSystem(sys types.SystemSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = sys
}

// FailList makes PIDs return err until cleared with nil.
func (s *Synthetic) FailList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

// FailSystem makes FetchSystem return err until cleared with nil.
func (s *Synthetic) FailSystem(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sysErr = err
}

// Reads reports how many times pid was fetched.
func (s *Synthetic) Reads(pid int32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[pid]
}

func (s *Synthetic) PIDs(ctx context.Context) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	pids := make([]int32, 0, len(s.procs))
	for pid := range s.procs {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}

func (s *Synthetic) FetchProcess(ctx context.Context, pid int32) (types.RawSample, error) {
	s.mu.Lock()
	s.reads[pid]++
	raw, ok := s.procs[pid]
	denied := s.denied[pid]
	vanished := s.vanish[pid]
	delay := s.delays[pid]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.RawSample{}, ctx.Err()
		}
	}
	if !ok || vanished {
		return types.RawSample{}, fmt.Errorf("pid %d: %w", pid, collector.ErrProcessVanished)
	}
	if denied {
		return types.RawSample{PID: pid, Name: raw.Name}, fmt.Errorf("pid %d: %w", pid, collector.ErrAccessDenied)
	}
	if raw.Timestamp.IsZero() {
		raw.Timestamp = time.Now()
	}
	return raw, nil
}

func (s *Synthetic) FetchSystem(ctx context.Context) (types.SystemSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sysErr != nil {
		return types.SystemSample{}, s.sysErr
	}
	sys := s.system
	sys.PerCore = append([]types.CPUTimes(nil), s.system.PerCore...)
	if sys.Timestamp.IsZero() {
		sys.Timestamp = time.Now()
	}
	return sys, nil
}

var _ collector.Provider = (*Synthetic)(nil)
