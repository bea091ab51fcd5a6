package store

import (
	"sync"
	"testing"

	"github.com/srodi/proctop/pkg/dispatch"
	"github.com/srodi/proctop/pkg/types"
)

func batchOf(seq uint64, n int) *types.Batch {
	procs := make([]types.ProcessSnapshot, n)
	for i := range procs {
		procs[i] = types.ProcessSnapshot{PID: int32(i + 1), Name: "p", CPUPercent: float64(seq)}
	}
	return &types.Batch{Seq: seq, Processes: procs}
}

func TestPublishAndCurrent(t *testing.T) {
	s := New(types.ViewState{})
	if s.Current() != nil || s.Rows() != nil {
		t.Fatalf("expected empty store")
	}
	b := batchOf(1, 3)
	s.Publish(b)
	if s.Current() != b || s.Version() != 1 {
		t.Fatalf("publish not visible: version=%d", s.Version())
	}
	s.Publish(nil)
	if s.Current() != b || s.Version() != 1 {
		t.Fatalf("nil publish must be ignored")
	}
}

func TestRefreshFromChannel(t *testing.T) {
	s := New(types.ViewState{})
	ch := dispatch.New(2)
	if s.Refresh(ch) {
		t.Fatalf("refresh on empty channel should report no update")
	}
	ch.Push(batchOf(1, 1))
	ch.Push(batchOf(2, 1))
	if !s.Refresh(ch) {
		t.Fatalf("expected an update")
	}
	if s.Current().Seq != 2 {
		t.Fatalf("expected newest batch, got seq %d", s.Current().Seq)
	}
}

func TestViewStateIndependentOfBatch(t *testing.T) {
	s := New(types.ViewState{Sort: types.SortByPID, Filter: "x"})
	s.Publish(batchOf(1, 2))
	s.SetSortKey(types.SortByMem)
	if v := s.View(); v.Sort != types.SortByMem || v.Filter != "x" {
		t.Fatalf("unexpected view %+v", v)
	}
	if next := s.CycleSort(); next != types.SortByPID {
		t.Fatalf("expected PID after MEM, got %s", next)
	}
	s.SetFilter("")
	if v := s.View(); v.Filter != "" || v.Sort != types.SortByPID {
		t.Fatalf("unexpected view %+v", v)
	}
	if s.Current().Seq != 1 {
		t.Fatalf("view changes must not touch the batch")
	}
}

func TestRowsAppliesView(t *testing.T) {
	s := New(types.ViewState{Sort: types.SortByPID})
	s.Publish(&types.Batch{Processes: []types.ProcessSnapshot{
		{PID: 3, Name: "vim", Cmdline: "vim notes"},
		{PID: 1, Name: "init", Cmdline: "/sbin/init"},
		{PID: 2, Name: "vi", Cmdline: "vi x"},
	}})
	rows := s.Rows()
	if len(rows) != 3 || rows[0].PID != 1 || rows[2].PID != 3 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	s.SetFilter("^vi")
	rows = s.Rows()
	if len(rows) != 2 || rows[0].PID != 2 || rows[1].PID != 3 {
		t.Fatalf("unexpected filtered rows %+v", rows)
	}
	s.SetFilter("")
	if rows = s.Rows(); len(rows) != 3 {
		t.Fatalf("clearing the filter should restore all rows, got %d", len(rows))
	}
}

func TestConcurrentReadersSeeWholeBatches(t *testing.T) {
	s := New(types.ViewState{})
	const size = 200
	s.Publish(batchOf(0, size))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				b := s.Current()
				if len(b.Processes) != size {
					t.Errorf("partial batch: %d processes", len(b.Processes))
					return
				}
				want := b.Processes[0].CPUPercent
				for _, p := range b.Processes {
					if p.CPUPercent != want {
						t.Errorf("mixed batch: seq %d saw %.0f and %.0f", b.Seq, want, p.CPUPercent)
						return
					}
				}
			}
		}()
	}
	for i := uint64(1); i <= 500; i++ {
		s.Publish(batchOf(i, size))
	}
	close(stop)
	wg.Wait()
	if s.Version() != 501 {
		t.Fatalf("expected 501 publishes, got %d", s.Version())
	}
}

func TestConcurrentViewUpdates(t *testing.T) {
	s := New(types.ViewState{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.CycleSort()
			}
		}()
	}
	wg.Wait()
	// 800 cycles over four keys returns to the start.
	if got := s.View().Sort; got != types.SortByCPU {
		t.Fatalf("lost view updates, ended on %s", got)
	}
}
