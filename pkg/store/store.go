// Package store holds the latest published batch and the consumer's view state.
package store

import (
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/srodi/proctop/pkg/dispatch"
	"github.com/srodi/proctop/pkg/report"
	"github.com/srodi/proctop/pkg/types"
)

// Store is written by one goroutine (the dispatch consumer) and read by any
// number of goroutines. Batches are swapped by pointer, so a reader sees either
// the previous batch or the new one, never a mix, and never waits on a writer.
type Store struct {
	batch   atomic.Pointer[types.Batch]
	view    atomic.Pointer[types.ViewState]
	version atomic.Uint64

	filterMu sync.Mutex
	filterOf string
	filterRe *regexp.Regexp
}

// New returns an empty store using initial as the view state.
func New(initial types.ViewState) *Store {
	s := &Store{}
	s.view.Store(&initial)
	return s
}

// Publish makes b the current batch. b must not be modified afterwards.
func (s *Store) Publish(b *types.Batch) {
	if b == nil {
		return
	}
	s.batch.Store(b)
	s.version.Add(1)
}

// Current returns the latest batch, or nil before the first publish.
func (s *Store) Current() *types.Batch {
	return s.batch.Load()
}

// Version increases by one on every publish.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Refresh publishes the newest batch waiting on ch, if any, without blocking.
func (s *Store) Refresh(ch *dispatch.Channel) bool {
	b, ok := ch.Latest()
	if !ok {
		return false
	}
	s.Publish(b)
	return true
}

// View returns the current sort key and filter.
func (s *Store) View() types.ViewState {
	return *s.view.Load()
}

// SetSortKey replaces the sort key, keeping the filter.
func (s *Store) SetSortKey(key types.SortKey) {
	s.updateView(func(v *types.ViewState) { v.Sort = key })
}

// CycleSort advances to the next sort key and returns it.
func (s *Store) CycleSort() types.SortKey {
	var next types.SortKey
	s.updateView(func(v *types.ViewState) {
		v.Sort = v.Sort.Next()
		next = v.Sort
	})
	return next
}

// SetFilter replaces the filter pattern, keeping the sort key.
func (s *Store) SetFilter(pattern string) {
	s.updateView(func(v *types.ViewState) { v.Filter = pattern })
}

func (s *Store) updateView(fn func(*types.ViewState)) {
	for {
		old := s.view.Load()
		next := *old
		fn(&next)
		if s.view.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Rows is the current batch sorted and filtered by the current view.
func (s *Store) Rows() []types.ProcessSnapshot {
	b := s.Current()
	if b == nil {
		return nil
	}
	v := s.View()
	return report.Filter(report.Sort(b.Processes, v.Sort), s.compiled(v.Filter))
}

// compiled caches the last filter so repeated renders skip regexp compilation.
func (s *Store) compiled(pattern string) *regexp.Regexp {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()
	if pattern != s.filterOf || (pattern != "" && s.filterRe == nil) {
		s.filterOf = pattern
		s.filterRe = report.CompileFilter(pattern)
	}
	return s.filterRe
}
