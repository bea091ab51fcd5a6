package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultHistoryLength is how many aggregate CPU readings are retained for sparklines.
const DefaultHistoryLength = 60

// Status is the scheduler state of a process, reduced to a small closed set.
type Status uint8

const (
	// StatusUnknown is the sentinel used for stale snapshots that have no prior data.
	StatusUnknown Status = iota
	StatusRunning
	StatusSleeping
	StatusDiskWait
	StatusStopped
	StatusZombie
)

// Code returns the one-letter code shown in process tables.
func (s Status) Code() string {
	switch s {
	case StatusRunning:
		return "R"
	case StatusSleeping:
		return "S"
	case StatusDiskWait:
		return "D"
	case StatusStopped:
		return "T"
	case StatusZombie:
		return "Z"
	default:
		return "?"
	}
}

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSleeping:
		return "sleeping"
	case StatusDiskWait:
		return "disk-wait"
	case StatusStopped:
		return "stopped"
	case StatusZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// ParseStatus maps kernel state letters ("R", "S", "D", ...) and gopsutil state
// names ("running", "sleep", "blocked", ...) onto Status.
func ParseStatus(raw string) Status {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StatusUnknown
	}
	switch strings.ToLower(raw) {
	case "r", "running", "runnable":
		return StatusRunning
	case "s", "sleep", "sleeping", "i", "idle", "lock":
		return StatusSleeping
	case "d", "u", "blocked", "wait", "disk-wait":
		return StatusDiskWait
	case "t", "stop", "stopped", "tracing stop":
		return StatusStopped
	case "z", "x", "zombie", "dead":
		return StatusZombie
	}
	return StatusUnknown
}

// CPUTimes holds cumulative CPU seconds spent in each mode.
type CPUTimes struct {
	User    float64
	System  float64
	Nice    float64
	Idle    float64
	Iowait  float64
	IRQ     float64
	SoftIRQ float64
	Steal   float64
}

// Busy is the time spent doing work: everything except idle and iowait.
func (t CPUTimes) Busy() float64 {
	return t.User + t.System + t.Nice + t.IRQ + t.SoftIRQ + t.Steal
}

// Total is Busy plus idle and iowait.
func (t CPUTimes) Total() float64 {
	return t.Busy() + t.Idle + t.Iowait
}

// RawSample is one read of a process's counters together with the metadata
// returned by the same read.
type RawSample struct {
	PID        int32
	Name       string
	User       string
	Status     Status
	UserTime   float64 // cumulative seconds in user mode
	SystemTime float64 // cumulative seconds in kernel mode
	RSSBytes   uint64
	Threads    int32
	Nice       int32
	Cmdline    string
	Timestamp  time.Time
}

// CPUSeconds is the cumulative user+system time of the process.
func (r RawSample) CPUSeconds() float64 {
	return r.UserTime + r.SystemTime
}

// SystemSample captures whole-machine counters for one cycle.
type SystemSample struct {
	PerCore       []CPUTimes
	MemTotal      uint64
	MemAvailable  uint64
	SwapTotal     uint64
	SwapUsed      uint64
	Load1         float64
	Load5         float64
	Load15        float64
	UptimeSeconds float64
	Timestamp     time.Time
}

// Cores returns the logical core count, never less than one.
func (s SystemSample) Cores() int {
	if len(s.PerCore) == 0 {
		return 1
	}
	return len(s.PerCore)
}

// Aggregate sums the per-core counters.
func (s SystemSample) Aggregate() CPUTimes {
	var total CPUTimes
	for _, c := range s.PerCore {
		total.User += c.User
		total.System += c.System
		total.Nice += c.Nice
		total.Idle += c.Idle
		total.Iowait += c.Iowait
		total.IRQ += c.IRQ
		total.SoftIRQ += c.SoftIRQ
		total.Steal += c.Steal
	}
	return total
}

// MemUsed is total minus available memory.
func (s SystemSample) MemUsed() uint64 {
	if s.MemAvailable > s.MemTotal {
		return 0
	}
	return s.MemTotal - s.MemAvailable
}

// MemPercent is used memory as a percentage of the total.
func (s SystemSample) MemPercent() float64 {
	if s.MemTotal == 0 {
		return 0
	}
	return 100 * float64(s.MemUsed()) / float64(s.MemTotal)
}

// SwapPercent is used swap as a percentage of the total.
func (s SystemSample) SwapPercent() float64 {
	if s.SwapTotal == 0 {
		return 0
	}
	return 100 * float64(s.SwapUsed) / float64(s.SwapTotal)
}

// ProcessSnapshot is the published, read-only view of one process for one cycle.
// It is passed and stored by value; nothing in the core mutates one after it is built.
type ProcessSnapshot struct {
	PID        int32
	Name       string
	User       string
	Status     Status
	CPUPercent float64 // relative to one core; may exceed 100 for multi-threaded processes
	MemPercent float64
	RSSBytes   uint64
	Threads    int32
	Nice       int32
	Cmdline    string
	Stale      bool
}

// CycleStats counts what happened to individual processes during one cycle.
type CycleStats struct {
	Tasks    int
	Running  int
	Vanished int
	Denied   int
	Skipped  int
	Duration time.Duration
}

// Batch is one complete poll cycle. Processes are ordered by ascending PID,
// which is the enumeration order the sort engine falls back to on ties.
type Batch struct {
	Seq        uint64
	Timestamp  time.Time
	Processes  []ProcessSnapshot
	System     SystemSample
	CPUPercent float64   // aggregate across all cores, 0-100
	PerCore    []float64 // per-core percent, 0-100
	History    [][]float64
	Stats      CycleStats
}

// SortKey selects the primary ordering of the process view.
type SortKey uint8

const (
	SortByCPU SortKey = iota
	SortByMem
	SortByPID
	SortByUser
)

var sortKeyNames = [...]string{"CPU", "MEM", "PID", "USER"}

func (k SortKey) String() string {
	if int(k) < len(sortKeyNames) {
		return sortKeyNames[k]
	}
	return fmt.Sprintf("SortKey(%d)", k)
}

// Next cycles CPU -> MEM -> PID -> USER -> CPU.
func (k SortKey) Next() SortKey {
	return (k + 1) % SortKey(len(sortKeyNames))
}

// ParseSortKey accepts cpu, mem/memory, pid and user in any case.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu":
		return SortByCPU, nil
	case "mem", "memory":
		return SortByMem, nil
	case "pid":
		return SortByPID, nil
	case "user":
		return SortByUser, nil
	}
	return SortByCPU, fmt.Errorf("unknown sort key %q", s)
}

// ViewState is owned by the consumer side and drives the sort/filter engine.
type ViewState struct {
	Sort   SortKey
	Filter string
}
