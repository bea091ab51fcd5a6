//go:build linux
// +build linux

package procfs

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"

	"github.com/srodi/proctop/pkg/collector"
	"github.com/srodi/proctop/pkg/types"
)

// Provider reads /proc directly through prometheus/procfs.
type Provider struct {
	fs    procfs.FS
	users *userCache
	now   func() time.Time
}

// New opens the proc filesystem at mountPoint ("" means /proc).
func New(mountPoint string) (*Provider, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", mountPoint, err)
	}
	return &Provider{fs: fs, users: newUserCache(), now: time.Now}, nil
}

func (p *Provider) PIDs(ctx context.Context) ([]int32, error) {
	procs, err := p.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	pids := make([]int32, 0, len(procs))
	for _, proc := range procs {
		pids = append(pids, int32(proc.PID))
	}
	return pids, nil
}

func (p *Provider) FetchProcess(ctx context.Context, pid int32) (types.RawSample, error) {
	raw := types.RawSample{PID: pid}

	proc, err := p.fs.Proc(int(pid))
	if err != nil {
		return raw, wrap(pid, err)
	}
	stat, err := proc.Stat()
	if err != nil {
		return raw, wrap(pid, err)
	}
	raw.Timestamp = p.now()
	raw.Name = stat.Comm
	raw.Status = types.ParseStatus(stat.State)
	raw.UserTime = ticksToSeconds(stat.UTime)
	raw.SystemTime = ticksToSeconds(stat.STime)
	raw.RSSBytes = uint64(stat.ResidentMemory())
	raw.Threads = int32(stat.NumThreads)
	raw.Nice = int32(stat.Nice)

	if status, err := proc.NewStatus(); err == nil {
		raw.User = p.users.name(fmt.Sprint(status.UIDs[0]))
	}
	if args, err := proc.CmdLine(); err == nil {
		raw.Cmdline = joinCmdline(args)
	}
	if raw.Cmdline == "" {
		raw.Cmdline = raw.Name
	}
	return raw, nil
}

func (p *Provider) FetchSystem(ctx context.Context) (types.SystemSample, error) {
	sys := types.SystemSample{}

	st, err := p.fs.Stat()
	if err != nil {
		return sys, fmt.Errorf("reading /proc/stat: %w", err)
	}
	sys.Timestamp = p.now()
	cores := make([]indexedCPU[procfs.CPUStat], 0, len(st.CPU))
	for i, c := range st.CPU {
		cores = append(cores, indexedCPU[procfs.CPUStat]{index: int64(i), times: c})
	}
	for _, c := range orderedCores(cores) {
		sys.PerCore = append(sys.PerCore, types.CPUTimes{
			User:    c.User,
			System:  c.System,
			Nice:    c.Nice,
			Idle:    c.Idle,
			Iowait:  c.Iowait,
			IRQ:     c.IRQ,
			SoftIRQ: c.SoftIRQ,
			Steal:   c.Steal,
		})
	}
	if st.BootTime > 0 {
		sys.UptimeSeconds = sys.Timestamp.Sub(time.Unix(int64(st.BootTime), 0)).Seconds()
	}

	mi, err := p.fs.Meminfo()
	if err != nil {
		return sys, fmt.Errorf("reading /proc/meminfo: %w", err)
	}
	sys.MemTotal = kib(mi.MemTotal)
	sys.MemAvailable = kib(mi.MemAvailable)
	sys.SwapTotal = kib(mi.SwapTotal)
	if free := kib(mi.SwapFree); free <= sys.SwapTotal {
		sys.SwapUsed = sys.SwapTotal - free
	}

	if avg, err := p.fs.LoadAvg(); err == nil && avg != nil {
		sys.Load1, sys.Load5, sys.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	return sys, nil
}

func kib(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v * 1024
}

func wrap(pid int32, err error) error {
	switch collector.Classify(err) {
	case collector.OutcomeVanished:
		return fmt.Errorf("pid %d: %w: %w", pid, collector.ErrProcessVanished, err)
	case collector.OutcomeAccessDenied:
		return fmt.Errorf("pid %d: %w: %w", pid, collector.ErrAccessDenied, err)
	}
	return fmt.Errorf("pid %d: %w", pid, err)
}

var _ collector.Provider = (*Provider)(nil)
