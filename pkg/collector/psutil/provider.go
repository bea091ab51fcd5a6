// Package psutil reads process and system counters through gopsutil.
package psutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/srodi/proctop/pkg/collector"
	"github.com/srodi/proctop/pkg/types"
)

// Provider is the portable collector.Provider.
type Provider struct {
	now func() time.Time
}

// New returns a gopsutil-backed provider.
func New() *Provider {
	return &Provider{now: time.Now}
}

func (p *Provider) PIDs(ctx context.Context) ([]int32, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	return pids, nil
}

func (p *Provider) FetchProcess(ctx context.Context, pid int32) (types.RawSample, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return types.RawSample{}, wrap(pid, err)
	}

	raw := types.RawSample{PID: pid}
	raw.Name, _ = proc.NameWithContext(ctx)

	times, err := proc.TimesWithContext(ctx)
	if err != nil {
		return raw, wrap(pid, err)
	}
	raw.Timestamp = p.now()
	raw.UserTime = times.User
	raw.SystemTime = times.System

	memInfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return raw, wrap(pid, err)
	}
	raw.RSSBytes = memInfo.RSS

	// Metadata below is best effort; a failure leaves the zero value.
	if statuses, err := proc.StatusWithContext(ctx); err == nil && len(statuses) > 0 {
		raw.Status = types.ParseStatus(statuses[0])
	}
	if user, err := proc.UsernameWithContext(ctx); err == nil {
		raw.User = user
	}
	if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
		raw.Threads = threads
	}
	if nice, err := proc.NiceWithContext(ctx); err == nil {
		raw.Nice = nice
	}
	if cmdline, err := proc.CmdlineWithContext(ctx); err == nil {
		raw.Cmdline = cmdline
	}
	if raw.Cmdline == "" {
		raw.Cmdline = raw.Name
	}
	return raw, nil
}

func (p *Provider) FetchSystem(ctx context.Context) (types.SystemSample, error) {
	sys := types.SystemSample{}

	perCore, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return sys, fmt.Errorf("reading cpu times: %w", err)
	}
	sys.Timestamp = p.now()
	sys.PerCore = make([]types.CPUTimes, 0, len(perCore))
	for _, t := range perCore {
		sys.PerCore = append(sys.PerCore, types.CPUTimes{
			User:    t.User,
			System:  t.System,
			Nice:    t.Nice,
			Idle:    t.Idle,
			Iowait:  t.Iowait,
			IRQ:     t.Irq,
			SoftIRQ: t.Softirq,
			Steal:   t.Steal,
		})
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return sys, fmt.Errorf("reading memory: %w", err)
	}
	sys.MemTotal = vm.Total
	sys.MemAvailable = vm.Available

	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		sys.SwapTotal = swap.Total
		sys.SwapUsed = swap.Used
	}
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		sys.Load1, sys.Load5, sys.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		sys.UptimeSeconds = float64(up)
	}
	return sys, nil
}

func wrap(pid int32, err error) error {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning):
		return fmt.Errorf("pid %d: %w", pid, collector.ErrProcessVanished)
	case collector.Classify(err) == collector.OutcomeVanished:
		return fmt.Errorf("pid %d: %w: %w", pid, collector.ErrProcessVanished, err)
	case collector.Classify(err) == collector.OutcomeAccessDenied:
		return fmt.Errorf("pid %d: %w: %w", pid, collector.ErrAccessDenied, err)
	}
	return fmt.Errorf("pid %d: %w", pid, err)
}

var _ collector.Provider = (*Provider)(nil)
