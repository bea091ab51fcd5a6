package report

import (
	"math"
	"time"

	"github.com/srodi/proctop/pkg/types"
)

// CPUPercent converts a counter delta (seconds of CPU time) over elapsed wall
// time into a percentage, divided by scaling. A scaling of 1 expresses the
// value relative to a single core, so busy multi-threaded processes exceed 100.
// Missing or reset counters and a zero interval all yield 0.
func CPUPercent(prev, cur float64, elapsed time.Duration, scaling int) float64 {
	if elapsed <= 0 {
		return 0
	}
	delta := cur - prev
	if delta <= 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0
	}
	if scaling < 1 {
		scaling = 1
	}
	return 100 * delta / elapsed.Seconds() / float64(scaling)
}

// ProcessCPUPercent computes the single-core relative CPU percent of a process
// between two reads. Elapsed time comes from the sample timestamps rather than
// the poll interval so time spent reading other processes does not skew it.
func ProcessCPUPercent(prev, cur types.RawSample, hasPrev bool) float64 {
	if !hasPrev {
		return 0
	}
	return CPUPercent(prev.CPUSeconds(), cur.CPUSeconds(), cur.Timestamp.Sub(prev.Timestamp), 1)
}

// SystemCPU returns the aggregate CPU percent (0-100, normalized by core
// count) and one 0-100 value per core. Without a previous sample every value
// is 0.
func SystemCPU(prev, cur types.SystemSample, hasPrev bool) (float64, []float64) {
	perCore := make([]float64, len(cur.PerCore))
	if !hasPrev {
		return 0, perCore
	}
	elapsed := cur.Timestamp.Sub(prev.Timestamp)
	for i, c := range cur.PerCore {
		if i >= len(prev.PerCore) {
			break
		}
		perCore[i] = clampPercent(CPUPercent(prev.PerCore[i].Busy(), c.Busy(), elapsed, 1))
	}
	aggregate := CPUPercent(prev.Aggregate().Busy(), cur.Aggregate().Busy(), elapsed, cur.Cores())
	return clampPercent(aggregate), perCore
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
