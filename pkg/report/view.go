package report

import (
	"regexp"
	"sort"
	"strings"

	"github.com/srodi/proctop/pkg/types"
)

// View sorts the batch by the view's key and then applies its filter. The
// batch itself is never modified.
func View(batch *types.Batch, view types.ViewState) []types.ProcessSnapshot {
	if batch == nil {
		return nil
	}
	return Filter(Sort(batch.Processes, view.Sort), CompileFilter(view.Filter))
}

// Sort returns a new slice ordered by key. Ties on the primary key are broken
// by ascending PID and then by position in procs, so the result is a total
// order that repeated sorting cannot change.
func Sort(procs []types.ProcessSnapshot, key types.SortKey) []types.ProcessSnapshot {
	order := make([]int, len(procs))
	for i := range order {
		order[i] = i
	}

	primary := func(a, b int) int {
		pa, pb := &procs[a], &procs[b]
		switch key {
		case types.SortByCPU:
			return compareDesc(pa.CPUPercent, pb.CPUPercent)
		case types.SortByMem:
			if c := compareDesc(pa.MemPercent, pb.MemPercent); c != 0 {
				return c
			}
			return compareDesc(float64(pa.RSSBytes), float64(pb.RSSBytes))
		case types.SortByUser:
			return strings.Compare(pa.User, pb.User)
		}
		return 0
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if c := primary(a, b); c != 0 {
			return c < 0
		}
		if procs[a].PID != procs[b].PID {
			return procs[a].PID < procs[b].PID
		}
		return a < b
	})

	out := make([]types.ProcessSnapshot, len(order))
	for i, idx := range order {
		out[i] = procs[idx]
	}
	return out
}

// CompileFilter builds the case-insensitive predicate for pattern. A pattern
// that is not a valid regular expression is matched literally. An empty
// pattern returns nil, which Filter treats as match-all.
func CompileFilter(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(pattern))
	}
	return re
}

// Filter keeps the entries whose name or command line matches re, preserving
// their order. A nil re returns procs unchanged.
func Filter(procs []types.ProcessSnapshot, re *regexp.Regexp) []types.ProcessSnapshot {
	if re == nil {
		return procs
	}
	kept := make([]types.ProcessSnapshot, 0, len(procs))
	for _, p := range procs {
		if re.MatchString(p.Name) || re.MatchString(p.Cmdline) {
			kept = append(kept, p)
		}
	}
	return kept
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
