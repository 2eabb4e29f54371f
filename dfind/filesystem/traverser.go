package filesystem

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/common"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/options"
	"github.com/ZanzyTHEbar/dupe-finder/dfind/filesystem/types"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// Traverser walks a directory tree and groups regular files by size.
// Directories of one BFS level are listed concurrently using conc pools.
// Only metadata is read; file content is never opened.
type Traverser struct {
	fs        afero.Fs
	opts      options.ScanOptions
	pathUtils *common.PathUtils
	timeUtils *common.TimeUtils
}

// TraversalStats tracks what one traversal saw
type TraversalStats struct {
	DirsProcessed int64
	FilesFound    int64
	Excluded      int64
	ErrorsFound   int64
	StartTime     int64
	EndTime       int64
}

// Collection is the complete output of one traversal
type Collection struct {
	Index   types.SizeIndex
	Skipped []types.SkippedFile
	Stats   TraversalStats
}

// NewTraverser creates a traverser reading from fs
func NewTraverser(fs afero.Fs, opts options.ScanOptions) *Traverser {
	return &Traverser{
		fs:        fs,
		opts:      opts.Normalize(),
		pathUtils: common.NewPathUtils(),
		timeUtils: common.NewTimeUtils(),
	}
}

// Collect returns the size index of every included file under root.
// A root that is missing, unreadable or not a directory yields an empty index.
func (t *Traverser) Collect(ctx context.Context, root string) types.SizeIndex {
	return t.Traverse(ctx, root).Index
}

// Traverse is Collect plus the skipped entries and traversal statistics
func (t *Traverser) Traverse(ctx context.Context, root string) *Collection {
	coll := &Collection{
		Index: make(types.SizeIndex),
		Stats: TraversalStats{StartTime: t.timeUtils.GetCurrentTime()},
	}
	defer func() {
		coll.Stats.EndTime = t.timeUtils.GetCurrentTime()
		t.logPerformanceStats(root, &coll.Stats)
	}()

	if err := common.ResolveDirectory(t.fs, root); err != nil {
		slog.Warn("Scan root unavailable", "path", root, "error", err)
		return coll
	}

	matcher := t.loadIgnore(root)

	var mu sync.Mutex
	currentLevel := []string{root}

	for len(currentLevel) > 0 {
		if ctx.Err() != nil {
			slog.Debug("Traversal cancelled", "path", root)
			return coll
		}

		nextLevel := make([]string, 0)
		levelPool := pool.New().WithMaxGoroutines(t.opts.TraversalWorkers).WithContext(ctx)

		for _, dir := range currentLevel {
			levelPool.Go(func(ctx context.Context) error {
				if ctx.Err() != nil {
					return nil
				}

				children, files, skipped := t.processDirectory(root, dir, matcher, &coll.Stats)

				mu.Lock()
				nextLevel = append(nextLevel, children...)
				for _, rec := range files {
					coll.Index.Add(rec)
				}
				coll.Skipped = append(coll.Skipped, skipped...)
				mu.Unlock()
				return nil
			})
		}

		if err := levelPool.Wait(); err != nil {
			slog.Error("Error traversing level", "path", root, "error", err)
		}

		currentLevel = nextLevel
	}

	return coll
}

// processDirectory lists one directory and classifies its entries
func (t *Traverser) processDirectory(root, dir string, matcher *ignore.GitIgnore, stats *TraversalStats) ([]string, []types.FileRecord, []types.SkippedFile) {
	entries, err := afero.ReadDir(t.fs, dir)
	if err != nil {
		atomic.AddInt64(&stats.ErrorsFound, 1)
		slog.Warn("Failed to read directory",
			"path", dir,
			"error", err)
		return nil, nil, []types.SkippedFile{{Path: dir, Stage: types.StageTraverse, Err: err.Error()}}
	}
	atomic.AddInt64(&stats.DirsProcessed, 1)

	children := make([]string, 0)
	files := make([]types.FileRecord, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		childPath := filepath.Join(dir, name)

		if t.pathUtils.IsHidden(name) {
			atomic.AddInt64(&stats.Excluded, 1)
			if entry.IsDir() {
				slog.Debug("Skipping hidden directory", "path", childPath)
			}
			continue
		}

		if matcher != nil && t.isIgnored(matcher, root, childPath, entry.IsDir()) {
			atomic.AddInt64(&stats.Excluded, 1)
			slog.Debug("Ignoring path", "path", childPath)
			continue
		}

		if entry.IsDir() {
			children = append(children, childPath)
			continue
		}

		// Only non-empty regular files are candidates; symlinks are never followed
		if !entry.Mode().IsRegular() || entry.Size() == 0 {
			atomic.AddInt64(&stats.Excluded, 1)
			continue
		}

		files = append(files, types.FileRecord{Path: childPath, Size: entry.Size()})
	}

	atomic.AddInt64(&stats.FilesFound, int64(len(files)))
	return children, files, nil
}

func (t *Traverser) isIgnored(matcher *ignore.GitIgnore, root, path string, isDir bool) bool {
	rel := filepath.ToSlash(t.pathUtils.RelativeTo(root, path))
	if matcher.MatchesPath(rel) {
		return true
	}
	return isDir && matcher.MatchesPath(rel+"/")
}

// loadIgnore compiles the ignore file in root, if there is one
func (t *Traverser) loadIgnore(root string) *ignore.GitIgnore {
	if t.opts.IgnoreFile == "" {
		return nil
	}

	path := filepath.Join(root, t.opts.IgnoreFile)
	content, err := afero.ReadFile(t.fs, path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to read ignore file",
				"path", path,
				"error", err)
		}
		return nil
	}

	slog.Debug("Loaded ignore file", "path", path)
	return ignore.CompileIgnoreLines(strings.Split(string(content), "\n")...)
}

func (t *Traverser) logPerformanceStats(root string, stats *TraversalStats) {
	slog.Debug("Traversal completed",
		"root", root,
		"dirs_processed", atomic.LoadInt64(&stats.DirsProcessed),
		"files_found", atomic.LoadInt64(&stats.FilesFound),
		"excluded", atomic.LoadInt64(&stats.Excluded),
		"errors_found", atomic.LoadInt64(&stats.ErrorsFound),
		"duration", t.timeUtils.FormatDuration(msDuration(stats.EndTime-stats.StartTime)))
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
