package filesystem

import (
	"sync/atomic"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"
)

// ProgressCell holds the most recent progress snapshot. Writers swap in a
// fresh immutable value, so readers never observe a torn update.
type ProgressCell struct {
	latest atomic.Pointer[types.ScanProgress]
}

// Store publishes p as the latest snapshot
func (c *ProgressCell) Store(p types.ScanProgress) {
	c.latest.Store(&p)
}

// Load returns the latest snapshot and whether one was ever stored
func (c *ProgressCell) Load() (types.ScanProgress, bool) {
	p := c.latest.Load()
	if p == nil {
		return types.ScanProgress{}, false
	}
	return *p, true
}

// progressFeed is a single-slot channel where a new value replaces an
// unread older one. Send never blocks.
type progressFeed struct {
	ch chan types.ScanProgress
}

func newProgressFeed() *progressFeed {
	return &progressFeed{ch: make(chan types.ScanProgress, 1)}
}

// send must only be called from one goroutine at a time
func (f *progressFeed) send(p types.ScanProgress) {
	for {
		select {
		case f.ch <- p:
			return
		default:
		}
		// Slot full: drop the stale value and retry
		select {
		case <-f.ch:
		default:
		}
	}
}

func (f *progressFeed) close() {
	close(f.ch)
}
