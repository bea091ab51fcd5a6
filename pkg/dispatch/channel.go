// Package dispatch hands batches from the sampler to the state store.
package dispatch

import (
	"sync/atomic"

	"github.com/srodi/proctop/pkg/types"
)

const (
	// MinCapacity and MaxCapacity bound the number of pending batches.
	MinCapacity = 1
	MaxCapacity = 2
)

// Channel is a bounded single-producer/single-consumer queue that never blocks
// either side. When full, Push discards the oldest pending batch.
type Channel struct {
	ch        chan *types.Batch
	overflows atomic.Uint64
	pushed    atomic.Uint64
}

// New returns a channel holding up to capacity batches, clamped to 1..2.
func New(capacity int) *Channel {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	return &Channel{ch: make(chan *types.Batch, capacity)}
}

// Push enqueues b and reports whether an older batch was dropped to make room.
func (c *Channel) Push(b *types.Batch) (dropped bool) {
	c.pushed.Add(1)
	for {
		select {
		case c.ch <- b:
			return dropped
		default:
		}
		// Full: evict the oldest. The consumer may have drained it already,
		// in which case the next send succeeds.
		select {
		case <-c.ch:
			dropped = true
			c.overflows.Add(1)
		default:
		}
	}
}

// Poll returns the oldest pending batch, or false when nothing is waiting.
func (c *Channel) Poll() (*types.Batch, bool) {
	select {
	case b := <-c.ch:
		return b, true
	default:
		return nil, false
	}
}

// Latest drains the channel and returns the newest pending batch.
func (c *Channel) Latest() (*types.Batch, bool) {
	var latest *types.Batch
	found := false
	for {
		b, ok := c.Poll()
		if !ok {
			return latest, found
		}
		latest, found = b, true
	}
}

// Overflows counts batches discarded because the consumer fell behind.
func (c *Channel) Overflows() uint64 { return c.overflows.Load() }

// Pushed counts all batches handed to Push.
func (c *Channel) Pushed() uint64 { return c.pushed.Load() }

// Cap is the configured capacity.
func (c *Channel) Cap() int { return cap(c.ch) }
