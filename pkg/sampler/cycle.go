package sampler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/srodi/proctop/pkg/collector"
	"github.com/srodi/proctop/pkg/history"
	"github.com/srodi/proctop/pkg/report"
	"github.com/srodi/proctop/pkg/types"
)

type readResult struct {
	raw     types.RawSample
	err     error
	outcome collector.Outcome
}

// cycle reads every process and the system, then assembles a complete batch.
// Only a failure to enumerate processes is returned as an error.
func (s *Sampler) cycle(ctx context.Context) (*types.Batch, error) {
	start := time.Now()

	pids, err := s.provider.PIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating processes: %w", err)
	}

	results := make([]readResult, len(pids))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, pid := range pids {
		i, pid := i, pid
		g.Go(func() error {
			results[i] = s.read(ctx, pid)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sys, sysOK := s.readSystem(ctx)
	cpu, perCore := s.lastCPU, s.lastCores
	if sysOK {
		cpu, perCore = report.SystemCPU(s.prevSys, sys, s.hasPrevSys)
		// The first sample has no baseline, so it carries no reading.
		if s.hasPrevSys {
			s.recordHistory(perCore)
		}
		s.prevSys, s.hasPrevSys = sys, true
		s.lastCPU, s.lastCores = cpu, perCore
	} else {
		sys = s.prevSys
	}

	var stats types.CycleStats
	procs := make([]types.ProcessSnapshot, 0, len(pids))
	nextRaw := make(map[int32]types.RawSample, len(pids))
	nextLast := make(map[int32]types.ProcessSnapshot, len(pids))
	for i, pid := range pids {
		r := results[i]
		switch r.outcome {
		case collector.OutcomeOK:
			prev, hasPrev := s.prevRaw[pid]
			snap := report.BuildSnapshot(r.raw, report.ProcessCPUPercent(prev, r.raw, hasPrev), sys.MemTotal)
			procs = append(procs, snap)
			nextRaw[pid] = r.raw
			nextLast[pid] = snap
		case collector.OutcomeAccessDenied:
			last, hasLast := s.last[pid]
			snap := report.StaleSnapshot(pid, r.raw, last, hasLast)
			procs = append(procs, snap)
			if prev, ok := s.prevRaw[pid]; ok {
				nextRaw[pid] = prev
			}
			nextLast[pid] = snap
			stats.Denied++
		case collector.OutcomeVanished:
			stats.Vanished++
		default:
			// Slow or unreadable this cycle: leave it out but keep its
			// history so the next successful read still has a baseline.
			if prev, ok := s.prevRaw[pid]; ok {
				nextRaw[pid] = prev
			}
			if last, ok := s.last[pid]; ok {
				nextLast[pid] = last
			}
			stats.Skipped++
			s.log.Trace().Int32("pid", pid).Str("outcome", r.outcome.String()).Err(r.err).Msg("process skipped")
		}
	}
	s.prevRaw, s.last = nextRaw, nextLast

	for _, p := range procs {
		if p.Status == types.StatusRunning {
			stats.Running++
		}
	}
	stats.Tasks = len(procs)
	stats.Duration = time.Since(start)

	s.seq++
	batch := &types.Batch{
		Seq:        s.seq,
		Timestamp:  time.Now(),
		Processes:  procs,
		System:     sys,
		CPUPercent: cpu,
		PerCore:    append([]float64(nil), perCore...),
		History:    s.historyValues(),
		Stats:      stats,
	}

	s.cycles.Add(1)
	s.vanished.Add(uint64(stats.Vanished))
	s.denied.Add(uint64(stats.Denied))
	s.skipped.Add(uint64(stats.Skipped))
	s.lastDuration.Store(int64(stats.Duration))
	if stats.Vanished+stats.Denied+stats.Skipped > 0 {
		s.log.Debug().
			Int("vanished", stats.Vanished).
			Int("denied", stats.Denied).
			Int("skipped", stats.Skipped).
			Msg("cycle recovered read failures")
	}
	return batch, nil
}

// read fetches one process under the per-read budget. A provider that ignores
// its context is abandoned once the budget runs out.
func (s *Sampler) read(ctx context.Context, pid int32) readResult {
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	ch := make(chan readResult, 1)
	go func() {
		raw, err := s.provider.FetchProcess(ctx, pid)
		ch <- readResult{raw: raw, err: err, outcome: collector.Classify(err)}
	}()
	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return readResult{err: ctx.Err(), outcome: collector.Classify(ctx.Err())}
	}
}

func (s *Sampler) readSystem(ctx context.Context) (types.SystemSample, bool) {
	sys, err := s.provider.FetchSystem(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("system read failed, reusing previous sample")
		return types.SystemSample{}, false
	}
	return sys, true
}

func (s *Sampler) recordHistory(perCore []float64) {
	if len(s.history) != len(perCore) {
		length := s.applied.HistoryLength
		rings := make([]*history.Ring[float64], len(perCore))
		for i := range rings {
			if i < len(s.history) {
				rings[i] = s.history[i]
				continue
			}
			rings[i] = history.New[float64](length)
		}
		s.history = rings
	}
	for i, v := range perCore {
		s.history[i].Append(v)
	}
}

func (s *Sampler) historyValues() [][]float64 {
	out := make([][]float64, len(s.history))
	for i, ring := range s.history {
		out[i] = ring.Values()
	}
	return out
}
