// Package collector defines the capability the sampler uses to read process
// and system counters, and how read failures are classified.
package collector

import (
	"context"
	"errors"
	"io/fs"
	"syscall"

	"github.com/srodi/proctop/pkg/types"
)

var (
	// ErrAccessDenied reports that a process exists but its counters or metadata may not be read.
	ErrAccessDenied = errors.New("access denied")
	// ErrProcessVanished reports that a process exited between enumeration and read.
	ErrProcessVanished = errors.New("process vanished")
	// ErrUnsupported is returned by providers that cannot run on this platform.
	ErrUnsupported = errors.New("provider not supported on this platform")
)

// Provider reads raw OS counters. Implementations must be safe for concurrent
// FetchProcess calls; the sampler reads several processes in parallel.
type Provider interface {
	// PIDs enumerates the currently visible processes. An error here means the
	// process table itself is unavailable.
	PIDs(ctx context.Context) ([]int32, error)
	// FetchProcess reads one process's counters and metadata in a single pass.
	// On ErrAccessDenied the returned sample may carry whatever fields were readable.
	FetchProcess(ctx context.Context, pid int32) (types.RawSample, error)
	// FetchSystem reads per-core CPU times, memory, swap, load and uptime.
	FetchSystem(ctx context.Context) (types.SystemSample, error)
}

// Outcome is the classified result of a single process read.
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	OutcomeAccessDenied
	OutcomeVanished
	OutcomeTimedOut
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAccessDenied:
		return "access-denied"
	case OutcomeVanished:
		return "vanished"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return "failed"
	}
}

// Classify maps a read error onto an Outcome. Providers are expected to wrap
// with ErrAccessDenied or ErrProcessVanished, but raw errno and fs errors are
// recognised too.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrProcessVanished),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, syscall.ESRCH):
		return OutcomeVanished
	case errors.Is(err, ErrAccessDenied),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.EACCES):
		return OutcomeAccessDenied
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimedOut
	}
	return OutcomeFailed
}
