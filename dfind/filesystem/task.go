package filesystem

import (
	"context"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	"github.com/google/uuid"
)

// ScanTask is a scan running on its own goroutine. Progress and the final
// result are the only values that cross from the worker to the caller.
type ScanTask struct {
	ID uuid.UUID

	cancel context.CancelFunc
	cell   ProgressCell
	feed   *progressFeed
	done   chan struct{}

	result *types.ScanResult
	err    error
}

// Start launches a scan of root in the background
func (s *Scanner) Start(ctx context.Context, root string) *ScanTask {
	ctx, cancel := context.WithCancel(ctx)

	task := &ScanTask{
		ID:     uuid.New(),
		cancel: cancel,
		feed:   newProgressFeed(),
		done:   make(chan struct{}),
	}

	go task.run(ctx, s, root)
	return task
}

func (t *ScanTask) run(ctx context.Context, s *Scanner, root string) {
	defer close(t.done)
	defer t.feed.close()
	defer t.cancel()

	t.result, t.err = s.Scan(ctx, root, func(p types.ScanProgress) {
		t.cell.Store(p)
		t.feed.send(p)
	})
}

// Updates delivers progress snapshots. Unread snapshots are replaced by
// newer ones, so a slow reader sees the latest state rather than a backlog.
// The channel is closed when the scan ends.
func (t *ScanTask) Updates() <-chan types.ScanProgress {
	return t.feed.ch
}

// Progress returns the latest snapshot, if any file has been attempted yet
func (t *ScanTask) Progress() (types.ScanProgress, bool) {
	return t.cell.Load()
}

// Cancel stops the scan at the next file boundary
func (t *ScanTask) Cancel() {
	t.cancel()
}

// Done is closed when the scan has finished
func (t *ScanTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the scan finishes. A cancelled scan returns
// common.ErrScanCancelled and no result.
func (t *ScanTask) Wait() (*types.ScanResult, error) {
	<-t.done
	return t.result, t.err
}
