package report

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/srodi/proctop/pkg/types"
)

func pids(rows []types.ProcessSnapshot) []int32 {
	out := make([]int32, len(rows))
	for i, r := range rows {
		out[i] = r.PID
	}
	return out
}

func sampleRows() []types.ProcessSnapshot {
	return []types.ProcessSnapshot{
		{PID: 1, Name: "init", User: "root", CPUPercent: 0.1, MemPercent: 0.5, Cmdline: "/sbin/init"},
		{PID: 20, Name: "nginx", User: "www", CPUPercent: 30, MemPercent: 2, Cmdline: "nginx: worker process"},
		{PID: 21, Name: "nginx", User: "www", CPUPercent: 30, MemPercent: 2, Cmdline: "nginx: worker process"},
		{PID: 5, Name: "postgres", User: "Postgres", CPUPercent: 75, MemPercent: 12, Cmdline: "postgres -D /data"},
		{PID: 300, Name: "bash", User: "alice", CPUPercent: 0, MemPercent: 0.2, Cmdline: "-bash"},
	}
}

func TestSortKeys(t *testing.T) {
	cases := []struct {
		key      types.SortKey
		expected []int32
	}{
		{types.SortByCPU, []int32{5, 20, 21, 1, 300}},
		{types.SortByMem, []int32{5, 20, 21, 1, 300}},
		{types.SortByPID, []int32{1, 5, 20, 21, 300}},
		{types.SortByUser, []int32{5, 300, 1, 20, 21}},
	}
	for _, tc := range cases {
		t.Run(tc.key.String(), func(t *testing.T) {
			if got := pids(Sort(sampleRows(), tc.key)); !reflect.DeepEqual(got, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestSortDoesNotModifyInput(t *testing.T) {
	rows := sampleRows()
	before := pids(rows)
	Sort(rows, types.SortByCPU)
	if got := pids(rows); !reflect.DeepEqual(got, before) {
		t.Fatalf("input reordered: %v", got)
	}
}

func TestSortStableAcrossRepeats(t *testing.T) {
	rows := make([]types.ProcessSnapshot, 0, 50)
	for i := 0; i < 50; i++ {
		rows = append(rows, types.ProcessSnapshot{PID: int32(i + 1), User: "same", CPUPercent: float64(i % 3)})
	}
	first := pids(Sort(rows, types.SortByCPU))
	again := pids(Sort(Sort(rows, types.SortByCPU), types.SortByCPU))
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("re-sorting changed order:\n%v\n%v", first, again)
	}
	// Equal keys keep enumeration (ascending pid) order.
	byUser := pids(Sort(rows, types.SortByUser))
	for i := 1; i < len(byUser); i++ {
		if byUser[i-1] > byUser[i] {
			t.Fatalf("ties not in enumeration order: %v", byUser)
		}
	}
}

func TestFilterMatchesNameAndCmdline(t *testing.T) {
	cases := []struct {
		name     string
		pattern  string
		expected []int32
	}{
		{"empty", "", []int32{1, 20, 21, 5, 300}},
		{"byName", "NGINX", []int32{20, 21}},
		{"byCmdline", "/data", []int32{5}},
		{"regexp", "^(init|bash)$", []int32{1, 300}},
		{"invalidRegexpIsLiteral", "-D /data(", nil},
		{"literalFallbackMatches", "worker process(", nil},
		{"noMatch", "zzz", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := pids(Filter(sampleRows(), CompileFilter(tc.pattern)))
			if len(got) == 0 && len(tc.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}

	rows := []types.ProcessSnapshot{{PID: 4, Name: "a", Cmdline: "python app.py ("}}
	if got := Filter(rows, CompileFilter("app.py (")); len(got) != 1 {
		t.Fatalf("invalid pattern should match literally, got %v", got)
	}
}

func TestViewFilterRoundTrip(t *testing.T) {
	batch := &types.Batch{Processes: sampleRows()}
	sorted := View(batch, types.ViewState{Sort: types.SortByMem})
	if !reflect.DeepEqual(sorted, Sort(batch.Processes, types.SortByMem)) {
		t.Fatalf("empty filter must equal plain sort")
	}

	filtered := View(batch, types.ViewState{Sort: types.SortByMem, Filter: "nginx"})
	if len(filtered) != 2 {
		t.Fatalf("expected 2 filtered rows, got %d", len(filtered))
	}
	cleared := View(batch, types.ViewState{Sort: types.SortByMem})
	if !reflect.DeepEqual(cleared, sorted) {
		t.Fatalf("clearing the filter changed order: %v vs %v", pids(cleared), pids(sorted))
	}
	if View(nil, types.ViewState{}) != nil {
		t.Fatalf("nil batch should produce nil view")
	}
}

func TestSortFiveThousandByMemory(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	rows := make([]types.ProcessSnapshot, 5000)
	for i := range rows {
		rows[i] = types.ProcessSnapshot{
			PID:        int32(i + 1),
			Name:       fmt.Sprintf("proc-%d", i),
			MemPercent: float64(rng.Intn(1000)) / 10,
		}
	}

	start := time.Now()
	sorted := Sort(rows, types.SortByMem)
	elapsed := time.Since(start)

	if len(sorted) != 5000 {
		t.Fatalf("expected 5000 rows, got %d", len(sorted))
	}
	for i := 1; i < len(sorted); i++ {
		a, b := sorted[i-1], sorted[i]
		if a.MemPercent < b.MemPercent || (a.MemPercent == b.MemPercent && a.PID > b.PID) {
			t.Fatalf("rows %d/%d out of order: %+v %+v", i-1, i, a, b)
		}
	}
	if elapsed > 250*time.Millisecond {
		t.Fatalf("sorting 5000 rows took %s", elapsed)
	}
}
