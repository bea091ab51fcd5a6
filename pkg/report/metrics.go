// Package report turns raw counter reads into published process snapshots and
// orders them for display.
package report

import (
	"github.com/srodi/proctop/pkg/types"
)

// unknownName stands in for metadata that could not be read.
const unknownName = "?"

// BuildSnapshot assembles the published record for one fresh read. Name, user
// and command line come from the same read as the counters.
func BuildSnapshot(raw types.RawSample, cpuPercent float64, memTotal uint64) types.ProcessSnapshot {
	snap := types.ProcessSnapshot{
		PID:        raw.PID,
		Name:       raw.Name,
		User:       raw.User,
		Status:     raw.Status,
		CPUPercent: cpuPercent,
		MemPercent: memPercent(raw.RSSBytes, memTotal),
		RSSBytes:   raw.RSSBytes,
		Threads:    raw.Threads,
		Nice:       raw.Nice,
		Cmdline:    raw.Cmdline,
	}
	if snap.Name == "" {
		snap.Name = unknownName
	}
	if snap.User == "" {
		snap.User = unknownName
	}
	if snap.Cmdline == "" {
		snap.Cmdline = snap.Name
	}
	if snap.CPUPercent < 0 {
		snap.CPUPercent = 0
	}
	return snap
}

// StaleSnapshot builds the record for a process that exists but could not be
// read this cycle. The last published values are carried over when present;
// otherwise numeric fields are zero and status is StatusUnknown. Whatever the
// partial read did return fills in missing identity fields.
func StaleSnapshot(pid int32, partial types.RawSample, last types.ProcessSnapshot, hasLast bool) types.ProcessSnapshot {
	var snap types.ProcessSnapshot
	if hasLast {
		snap = last
	} else {
		snap = types.ProcessSnapshot{Status: types.StatusUnknown}
	}
	snap.PID = pid
	snap.Stale = true
	if snap.Name == "" || snap.Name == unknownName {
		snap.Name = partial.Name
	}
	if snap.User == "" || snap.User == unknownName {
		snap.User = partial.User
	}
	if snap.Cmdline == "" {
		snap.Cmdline = partial.Cmdline
	}
	if snap.Name == "" {
		snap.Name = unknownName
	}
	if snap.User == "" {
		snap.User = unknownName
	}
	if snap.Cmdline == "" {
		snap.Cmdline = snap.Name
	}
	return snap
}

func memPercent(rss, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return clampPercent(100 * float64(rss) / float64(total))
}
